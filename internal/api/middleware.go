package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger tags every request with an id, echoes it in the response
// and writes one access log line. Panics in handlers become 500s.
func requestLogger(logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			entry := logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				if p := recover(); p != nil {
					entry.WithField("panic", p).Error("handler panicked")
					respondError(rec, http.StatusInternalServerError, "internal error")
				}
				entry.WithFields(logrus.Fields{
					"status":   rec.status,
					"duration": time.Since(start),
				}).Info("request handled")
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
