package api

import (
	"net/http"

	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
)

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.Hello(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("health check failed")
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"hello": msg})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Report(r.Context())
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in models.CustomerInput
	if err := decodeBody(r, &in, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload := h.svc.CreateCustomer(r.Context(), in)
	respondCreated(w, payload.Customer != nil, payload)
}

func (h *Handler) bulkCreateCustomers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Customers []models.CustomerInput `json:"customers"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload := h.svc.BulkCreateCustomers(r.Context(), req.Customers)
	respondCreated(w, len(payload.Customers) > 0, payload)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid customer ID")
		return
	}

	customer, err := h.svc.GetCustomer(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	f, err := filter.ParseCustomerFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.svc.ListCustomers(r.Context(), f, p)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if err := decodeBody(r, &in, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload := h.svc.CreateProduct(r.Context(), in)
	respondCreated(w, payload.Product != nil, payload)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f, err := filter.ParseProductFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.svc.ListProducts(r.Context(), f, p)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// RestockRequest is the optional body of POST /products/restock. Zero
// values take the service defaults.
type RestockRequest struct {
	Threshold int `json:"threshold,omitempty"`
	Increment int `json:"increment,omitempty"`
}

func (h *Handler) restockProducts(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if err := decodeBody(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload, err := h.svc.UpdateLowStockProducts(r.Context(), req.Threshold, req.Increment)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in models.OrderInput
	if err := decodeBody(r, &in, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload := h.svc.CreateOrder(r.Context(), in)
	respondCreated(w, payload.Order != nil, payload)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := filter.ParseOrderFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.svc.ListOrders(r.Context(), f, p)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}
