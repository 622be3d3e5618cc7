package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/projectcraftbeer/PendoSmart/internal/smartling"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// upstreamError maps sync/platform failures onto the response taxonomy:
// missing or rejected credentials are the operator's problem (401), anything
// else is an upstream failure (502).
func upstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, smartling.ErrAuthRequired) {
		httpError(w, http.StatusUnauthorized, "authentication_error",
			"platform authentication failed: configure valid keys and retry")
		return
	}
	httpError(w, http.StatusBadGateway, "api_error", "upstream error: %v", err)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
