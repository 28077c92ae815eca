package httpserver

import (
	"encoding/json"
	"net/http"
)

const (
	ErrInvalidBody      = "invalid body"
	ErrMissingID        = "missing id"
	ErrInvalidID        = "invalid id"
	ErrDependency       = "dependency error"
	ErrNotFound         = "not found"
	ErrNotConfigured    = "verification not configured"
	ErrInvalidSignature = "invalid signature"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
