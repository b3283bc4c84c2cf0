package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/observability"
)

// outcome names the failure class of err for metrics and error bodies.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, domain.ErrInvalid):
		return "invalid"
	default:
		return "server_error"
	}
}

func record(operation string, err error) {
	observability.RecordOperation(operation, outcome(err))
}

func statusFor(err error) int {
	switch outcome(err) {
	case "not_found":
		return http.StatusNotFound
	case "conflict", "capacity_exceeded", "already_exists", "invalid":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), outcome(err), domain.Message(err))
}

// WriteAuthError renders admin gate failures in the API error format.
func WriteAuthError(w http.ResponseWriter, status int, err error) {
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	writeError(w, status, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
