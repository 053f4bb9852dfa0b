// Package catalog resolves display metadata for media items so progress
// records can carry a title and poster without a join at read time.
package catalog

import "context"

// Snapshot is the display metadata captured for a progress record on its
// first write.
type Snapshot struct {
	Title          string `json:"title"`
	PosterPath     string `json:"poster_path"`
	RuntimeMinutes int    `json:"runtime_minutes"`
}

// Provider fetches media display metadata.
type Provider interface {
	Snapshot(ctx context.Context, mediaID, mediaType string) (Snapshot, error)
}

// Static serves snapshots from a fixed map keyed mediaType + ":" + mediaID.
// Missing entries yield an empty snapshot, not an error. Used in tests and
// when no catalog credentials are configured.
type Static struct {
	Items map[string]Snapshot
}

func (s Static) Snapshot(_ context.Context, mediaID, mediaType string) (Snapshot, error) {
	return s.Items[mediaType+":"+mediaID], nil
}
