package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	"github.com/iho/coopledger/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError writes err with the status its sentinel maps to.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, mapDomainError(err), message, err.Error())
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrMemberNotFound),
		errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrMaturityNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoQualifyingDeposits):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// pathParam returns a required URL parameter, writing a 400 when it is empty.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := chi.URLParam(r, name)
	if v == "" {
		writeError(w, http.StatusBadRequest, "missing "+name, "")
		return "", false
	}
	return v, true
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseDateQuery parses an optional date query parameter. A missing value is
// the zero time.
func parseDateQuery(r *http.Request, key string) (time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return time.Time{}, nil
	}
	return dto.ParseDate(key, val)
}
