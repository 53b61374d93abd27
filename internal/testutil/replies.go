package testutil

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ReplyJSON writes a JSON payload with the given status.
func ReplyJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ReplyError writes an Azure DevOps-shaped error body.
func ReplyError(w http.ResponseWriter, status int, message string) {
	ReplyJSON(w, status, map[string]any{
		"message": message,
		"typeKey": "TestError",
	})
}

// ReplyRetryAfter writes a throttled response with a Retry-After header.
func ReplyRetryAfter(w http.ResponseWriter, status, seconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	ReplyError(w, status, "throttled")
}

// ReplyText writes a plain-text body (build log content).
func ReplyText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}
