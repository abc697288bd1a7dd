package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Fprintf(w, `{"error":%q}`, err.Error())
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondCreated answers 201 when the mutation produced an entity and 200
// with the failure payload otherwise.
func respondCreated(w http.ResponseWriter, created bool, payload interface{}) {
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, payload)
}

// respondLookupError maps errors of query operations to status codes.
func (h *Handler) respondLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case database.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidCursor):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes the JSON body into dst. An empty body is accepted
// when allowEmpty is set.
func decodeBody(r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func parsePagination(r *http.Request) (store.Pagination, error) {
	q := r.URL.Query()
	p := store.Pagination{After: q.Get("after")}

	if raw := q.Get("first"); raw != "" {
		first, err := strconv.Atoi(raw)
		if err != nil || first < 0 {
			return p, fmt.Errorf("invalid first: %q", raw)
		}
		p.First = first
	}

	return p, nil
}
