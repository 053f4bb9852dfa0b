package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps progress records in a map. Development and tests only.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]ProgressRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]ProgressRecord)}
}

func recordKey(userID, mediaID string, mediaType MediaType) string {
	return userID + ":" + string(mediaType) + ":" + mediaID
}

func (s *MemoryStore) Upsert(_ context.Context, p UpsertParams) (ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(p.UserID, p.MediaID, p.MediaType)
	rec, ok := s.records[key]
	if !ok {
		rec = ProgressRecord{
			UserID:     p.UserID,
			MediaID:    p.MediaID,
			MediaType:  p.MediaType,
			Title:      p.Snapshot.Title,
			PosterPath: p.Snapshot.PosterPath,
			WatchedAt:  p.LastPlayedAt,
		}
	}
	rec.PositionSeconds = p.PositionSeconds
	rec.DurationSeconds = p.DurationSeconds
	rec.ProgressPercent = p.ProgressPercent
	rec.Completed = p.Completed
	rec.LastPlayedAt = p.LastPlayedAt
	if p.SeasonNumber != nil {
		n := *p.SeasonNumber
		rec.SeasonNumber = &n
	}
	if p.EpisodeNumber != nil {
		n := *p.EpisodeNumber
		rec.EpisodeNumber = &n
	}
	if p.Quality != "" {
		rec.Quality = p.Quality
	}
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, mediaID string, mediaType MediaType) (ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey(userID, mediaID, mediaType)]
	if !ok {
		return ProgressRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context, userID string, q Query) ([]ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProgressRecord, 0)
	for _, rec := range s.records {
		if rec.UserID != userID {
			continue
		}
		if q.MediaType != "" && rec.MediaType != q.MediaType {
			continue
		}
		if q.InProgress && !InProgressBand(rec) {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastPlayedAt.Equal(out[j].LastPlayedAt) {
			return out[i].LastPlayedAt.After(out[j].LastPlayedAt)
		}
		return out[i].MediaID > out[j].MediaID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }
