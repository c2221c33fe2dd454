package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/iho/badbank/internal/adapter/http/dto"
	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/infrastructure/logger"
)

// retryAfterSeconds is sent with 503 responses for busy accounts.
const retryAfterSeconds = "1"

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// decodeJSON decodes the request body into dst and runs struct validation.
// It writes a 400 response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}

	if err := dto.Validate(dst); err != nil {
		var verr *dto.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:  "validation failed",
				Fields: verr.Fields,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return false
	}
	return true
}

// respondError maps err onto a status code and writes it. Storage and
// unknown failures are logged and answered with a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapDomainError(err)

	switch status {
	case http.StatusInternalServerError:
		logger.FromContext(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, status, "internal error", "")
		return
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	writeError(w, status, errorTitle(err), err.Error())
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserExists), errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrVersionConflict):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError
	}

	switch domain.Classify(err) {
	case domain.ClassValidation:
		return http.StatusBadRequest
	case domain.ClassAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// errorTitle returns the short error label for err.
func errorTitle(err error) string {
	switch domain.Classify(err) {
	case domain.ClassValidation:
		return "validation failed"
	case domain.ClassState:
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return "insufficient funds"
		}
		if errors.Is(err, domain.ErrUserExists) || errors.Is(err, domain.ErrUsernameTaken) {
			return "user exists"
		}
		return "not found"
	case domain.ClassConcurrency:
		return "busy"
	case domain.ClassAuth:
		return "unauthorized"
	default:
		return "internal error"
	}
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
