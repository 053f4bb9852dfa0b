package handlers

import (
	"errors"
	"net/http"

	"github.com/example/stream-platform/internal/platform/api"
	"github.com/example/stream-platform/services/history/internal/store"
	"github.com/example/stream-platform/services/history/internal/tracker"
)

// writeServiceError maps tracker and store errors onto the shared error
// envelope. Anything unrecognized is a 500.
func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	var verr *tracker.ValidationError
	if errors.As(err, &verr) {
		details := make(map[string]any, len(verr.Violations))
		for field, reason := range verr.Violations {
			details[field] = reason
		}
		api.BadRequest(w, "INVALID_ARGUMENT", "Invalid progress input", requestID, details)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		api.NotFound(w, "NOT_FOUND", "No progress recorded for this item", requestID)
		return
	}
	api.Internal(w, requestID)
}
