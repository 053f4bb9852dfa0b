// Package tracker implements the watch-progress rules: input validation,
// progress derivation, catalog snapshotting on first write, and the
// continue-watching and history views.
package tracker

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/stream-platform/internal/platform/events"
	"github.com/example/stream-platform/services/history/internal/catalog"
	"github.com/example/stream-platform/services/history/internal/metrics"
	"github.com/example/stream-platform/services/history/internal/store"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// Service owns every read and write path for watch progress. All writers,
// HTTP and event consumer alike, go through Upsert so derivation happens in
// exactly one place.
type Service struct {
	store   store.ProgressStore
	catalog catalog.Provider
	events  *events.Publisher
	log     *zap.Logger
}

func New(st store.ProgressStore, cat catalog.Provider, pub *events.Publisher, log *zap.Logger) *Service {
	return &Service{store: st, catalog: cat, events: pub, log: log}
}

// UpsertInput is one progress report from a player.
type UpsertInput struct {
	MediaID         string
	MediaType       string
	PositionSeconds float64
	DurationSeconds float64
	SeasonNumber    *int
	EpisodeNumber   *int
	Quality         string
}

// Upsert validates in, derives progress and completion, and writes the
// record for (userID, media). The first write for a tuple snapshots title
// and poster from the catalog and falls back to the catalog runtime when the
// player did not report a duration. Later writes never touch the snapshot or
// the original watched_at.
func (s *Service) Upsert(ctx context.Context, userID string, in UpsertInput) (store.ProgressRecord, error) {
	userID = strings.TrimSpace(userID)
	mediaID := strings.TrimSpace(in.MediaID)
	mt := store.MediaType(strings.TrimSpace(in.MediaType))

	violations := map[string]string{}
	if userID == "" {
		violations["user_id"] = "must not be empty"
	}
	if mediaID == "" {
		violations["media_id"] = "must not be empty"
	}
	if !mt.Valid() {
		violations["media_type"] = "must be 'movie' or 'tv'"
	}
	if in.PositionSeconds < 0 {
		violations["position_seconds"] = "must not be negative"
	}
	if in.DurationSeconds < 0 {
		violations["duration_seconds"] = "must not be negative"
	}
	if in.SeasonNumber != nil && *in.SeasonNumber < 0 {
		violations["season_number"] = "must not be negative"
	}
	if in.EpisodeNumber != nil && *in.EpisodeNumber < 0 {
		violations["episode_number"] = "must not be negative"
	}
	if len(violations) > 0 {
		return store.ProgressRecord{}, &ValidationError{Violations: violations}
	}

	creating := false
	var previous store.ProgressRecord
	prev, err := s.store.Get(ctx, userID, mediaID, mt)
	switch {
	case err == nil:
		previous = prev
	case errors.Is(err, store.ErrNotFound):
		creating = true
	default:
		return store.ProgressRecord{}, err
	}

	var snap store.Snapshot
	duration := in.DurationSeconds
	if creating {
		meta := s.lookupSnapshot(ctx, mediaID, string(mt))
		snap = store.Snapshot{Title: meta.Title, PosterPath: meta.PosterPath}
		if duration == 0 && meta.RuntimeMinutes > 0 {
			duration = float64(meta.RuntimeMinutes) * 60
		}
	}

	percent, completed := store.Derive(in.PositionSeconds, duration)

	rec, err := s.store.Upsert(ctx, store.UpsertParams{
		UserID:          userID,
		MediaID:         mediaID,
		MediaType:       mt,
		PositionSeconds: in.PositionSeconds,
		DurationSeconds: duration,
		ProgressPercent: percent,
		Completed:       completed,
		SeasonNumber:    in.SeasonNumber,
		EpisodeNumber:   in.EpisodeNumber,
		Quality:         strings.TrimSpace(in.Quality),
		Snapshot:        snap,
		LastPlayedAt:    time.Now().UTC(),
	})
	if err != nil {
		return store.ProgressRecord{}, err
	}

	metrics.ProgressUpsertsTotal.WithLabelValues(string(mt)).Inc()
	s.events.Publish(events.SubjectProgressRecorded, "history_progress_recorded", userID, map[string]any{
		"media_id":         rec.MediaID,
		"media_type":       string(rec.MediaType),
		"progress_percent": rec.ProgressPercent,
	})
	if rec.Completed && (creating || !previous.Completed) {
		metrics.MediaCompletedTotal.Inc()
		s.events.Publish(events.SubjectMediaCompleted, "history_media_completed", userID, map[string]any{
			"media_id":   rec.MediaID,
			"media_type": string(rec.MediaType),
		})
	}
	return rec, nil
}

// lookupSnapshot resolves display metadata for a first write. A catalog
// failure only costs the snapshot, never the write itself.
func (s *Service) lookupSnapshot(ctx context.Context, mediaID, mediaType string) catalog.Snapshot {
	if s.catalog == nil {
		return catalog.Snapshot{}
	}
	meta, err := s.catalog.Snapshot(ctx, mediaID, mediaType)
	if err != nil {
		s.log.Warn("catalog snapshot lookup failed",
			zap.String("media_id", mediaID),
			zap.String("media_type", mediaType),
			zap.Error(err))
		return catalog.Snapshot{}
	}
	return meta
}

// Get returns the user's record for one catalog item.
func (s *Service) Get(ctx context.Context, userID, mediaID, mediaType string) (store.ProgressRecord, error) {
	mt := store.MediaType(strings.TrimSpace(mediaType))
	if !mt.Valid() {
		return store.ProgressRecord{}, &ValidationError{
			Violations: map[string]string{"media_type": "must be 'movie' or 'tv'"},
		}
	}
	return s.store.Get(ctx, strings.TrimSpace(userID), strings.TrimSpace(mediaID), mt)
}

// ContinueWatching returns the user's resumable items, newest first: started
// but not yet past the completion threshold. mediaType filters when non-empty.
func (s *Service) ContinueWatching(ctx context.Context, userID, mediaType string, limit int) ([]store.ProgressRecord, error) {
	var mt store.MediaType
	if v := strings.TrimSpace(mediaType); v != "" {
		mt = store.MediaType(v)
		if !mt.Valid() {
			return nil, &ValidationError{
				Violations: map[string]string{"media_type": "must be 'movie' or 'tv'"},
			}
		}
	}

	metrics.ContinueWatchingQueriesTotal.Inc()
	return s.store.List(ctx, strings.TrimSpace(userID), store.Query{
		MediaType:  mt,
		InProgress: true,
		Limit:      ResolveLimit(limit),
	})
}

// History returns everything the user has played, newest first, completed
// items included.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]store.ProgressRecord, error) {
	return s.store.List(ctx, strings.TrimSpace(userID), store.Query{
		Limit: ResolveLimit(limit),
	})
}

// ResolveLimit clamps a caller-supplied page size: non-positive values take
// the default, oversized ones the maximum.
func ResolveLimit(v int) int {
	if v <= 0 {
		return defaultListLimit
	}
	if v > maxListLimit {
		return maxListLimit
	}
	return v
}
