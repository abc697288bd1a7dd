// Package api exposes the CRM facade over HTTP with JSON bodies.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/safar/crm-service/internal/crm"
)

const RequestIDHeader = "X-Request-ID"

type Handler struct {
	svc    *crm.Service
	logger logrus.FieldLogger
}

// NewRouter wires every route of the service behind the request logging
// middleware.
func NewRouter(svc *crm.Service, logger logrus.FieldLogger) *mux.Router {
	h := &Handler{svc: svc, logger: logger}

	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/report", h.report).Methods(http.MethodGet)

	r.HandleFunc("/customers", h.createCustomer).Methods(http.MethodPost)
	r.HandleFunc("/customers", h.listCustomers).Methods(http.MethodGet)
	r.HandleFunc("/customers/bulk", h.bulkCreateCustomers).Methods(http.MethodPost)
	r.HandleFunc("/customers/{id:[0-9]+}", h.getCustomer).Methods(http.MethodGet)

	r.HandleFunc("/products", h.createProduct).Methods(http.MethodPost)
	r.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/products/restock", h.restockProducts).Methods(http.MethodPost)
	r.HandleFunc("/products/{id:[0-9]+}", h.getProduct).Methods(http.MethodGet)

	r.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id:[0-9]+}", h.getOrder).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
