package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/example/stream-platform/internal/platform/api"
)

// decodeJSON decodes the request body into dst, writing the error response
// itself on failure. Bodies are capped at 1 MiB.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, requestID string, dst *T) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Request body is not valid JSON", requestID, nil)
		return false
	}
	return true
}
