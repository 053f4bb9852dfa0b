// Package handlers exposes the history service's HTTP surface on top of the
// tracker service.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/stream-platform/internal/platform/api"
	"github.com/example/stream-platform/internal/platform/auth"
	"github.com/example/stream-platform/internal/platform/httpserver"
	"github.com/example/stream-platform/services/history/internal/store"
	"github.com/example/stream-platform/services/history/internal/tracker"
)

type upsertProgressRequest struct {
	MediaID         string  `json:"media_id"`
	MediaType       string  `json:"media_type"`
	PositionSeconds float64 `json:"position_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	SeasonNumber    *int    `json:"season_number"`
	EpisodeNumber   *int    `json:"episode_number"`
	Quality         string  `json:"quality"`
}

type listResponse struct {
	Items []store.ProgressRecord `json:"items"`
	Limit int                    `json:"limit"`
}

// UpsertProgress records a player progress report for the authenticated user.
func UpsertProgress(svc *tracker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUserID(w, r, rid)
		if !ok {
			return
		}

		var req upsertProgressRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}

		rec, err := svc.Upsert(r.Context(), uid, tracker.UpsertInput{
			MediaID:         req.MediaID,
			MediaType:       req.MediaType,
			PositionSeconds: req.PositionSeconds,
			DurationSeconds: req.DurationSeconds,
			SeasonNumber:    req.SeasonNumber,
			EpisodeNumber:   req.EpisodeNumber,
			Quality:         req.Quality,
		})
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, rec)
	}
}

// GetProgress returns the user's record for one catalog item.
func GetProgress(svc *tracker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUserID(w, r, rid)
		if !ok {
			return
		}

		rec, err := svc.Get(r.Context(), uid, chi.URLParam(r, "media_id"), chi.URLParam(r, "media_type"))
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, rec)
	}
}

// ContinueWatching lists the user's resumable items, newest first.
func ContinueWatching(svc *tracker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUserID(w, r, rid)
		if !ok {
			return
		}

		limit := tracker.ResolveLimit(parseLimit(r.URL.Query().Get("limit")))
		recs, err := svc.ContinueWatching(r.Context(), uid, r.URL.Query().Get("media_type"), limit)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		writeList(w, recs, limit)
	}
}

// History lists everything the user has played, completed items included.
func History(svc *tracker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUserID(w, r, rid)
		if !ok {
			return
		}

		limit := tracker.ResolveLimit(parseLimit(r.URL.Query().Get("limit")))
		recs, err := svc.History(r.Context(), uid, limit)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		writeList(w, recs, limit)
	}
}

// AdminUserHistory lists any user's history. Mounted behind the admin role
// gate for support and abuse investigations.
func AdminUserHistory(svc *tracker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
		if userID == "" {
			api.BadRequest(w, "INVALID_ARGUMENT", "user_id is required", rid, nil)
			return
		}

		limit := tracker.ResolveLimit(parseLimit(r.URL.Query().Get("limit")))
		recs, err := svc.History(r.Context(), userID, limit)
		if err != nil {
			writeServiceError(w, rid, err)
			return
		}
		writeList(w, recs, limit)
	}
}

func requireUserID(w http.ResponseWriter, r *http.Request, requestID string) (string, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || strings.TrimSpace(uid) == "" {
		api.Unauthorized(w, "AUTH_MISSING", "Missing auth", requestID)
		return "", false
	}
	return uid, true
}

// parseLimit is forgiving: absent or unparsable limits fall back to the
// service default.
func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func writeList(w http.ResponseWriter, recs []store.ProgressRecord, limit int) {
	if recs == nil {
		recs = []store.ProgressRecord{}
	}
	api.WriteJSON(w, http.StatusOK, listResponse{Items: recs, Limit: limit})
}
