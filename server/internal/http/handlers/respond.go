package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/domain/services"
)

// writeJSON writes a JSON response body with the given status
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError maps service and repository errors to HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repositories.ErrUserNotFound),
		errors.Is(err, repositories.ErrProjectNotFound),
		errors.Is(err, repositories.ErrHashtagNotFound),
		errors.Is(err, repositories.ErrPostNotFound),
		errors.Is(err, repositories.ErrIdentityNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repositories.ErrDuplicateEmail),
		errors.Is(err, repositories.ErrDuplicateIdentity),
		errors.Is(err, repositories.ErrAlreadyLinked),
		errors.Is(err, services.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody parses a JSON request body into dst
func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
