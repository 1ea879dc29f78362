package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alxcrm/crm/internal/crm"
	"github.com/alxcrm/crm/internal/log"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes a pre-marshalled JSON body.
func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// writeError writes a 400 Bad Request response.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// writeUnauthorized writes a 401 Unauthorized response.
func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

// writeNotFound writes a 404 Not Found response.
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

var validationErrs = []error{
	crm.ErrNameRequired,
	crm.ErrNameTooLong,
	crm.ErrInvalidEmail,
	crm.ErrInvalidPhone,
	crm.ErrNonPositivePrice,
	crm.ErrNegativeStock,
	crm.ErrUnknownCustomer,
	crm.ErrUnknownProduct,
	crm.ErrEmptyOrder,
}

// writeStoreError maps domain errors to status codes: 404 for missing
// entities, 409 for duplicate emails, 400 for validation failures and
// 500 for everything else.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, crm.ErrNotFound):
		writeNotFound(w)
		return
	case errors.Is(err, crm.ErrDuplicateEmail):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			writeError(w, err)
			return
		}
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Error().Err(err).
		Str("event", "api.internal_error").
		Str("path", r.URL.Path).
		Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
