package store

import (
	"math"
	"time"
)

// MediaType identifies the kind of catalog item a progress record tracks.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Valid reports whether mt is one of the known media types.
func (mt MediaType) Valid() bool {
	return mt == MediaTypeMovie || mt == MediaTypeTV
}

// completedThresholdPercent is the watch percentage above which a record
// counts as completed. Strictly greater-than: exactly 90% is not completed.
const completedThresholdPercent = 90

// ProgressRecord is one user's watch state for one catalog item.
// There is exactly one record per (user_id, media_id, media_type).
type ProgressRecord struct {
	UserID          string    `json:"user_id"`
	MediaID         string    `json:"media_id"`
	MediaType       MediaType `json:"media_type"`
	Title           string    `json:"title,omitempty"`
	PosterPath      string    `json:"poster_path,omitempty"`
	PositionSeconds float64   `json:"position_seconds"`
	DurationSeconds float64   `json:"duration_seconds"`
	ProgressPercent int       `json:"progress_percent"`
	Completed       bool      `json:"completed"`
	SeasonNumber    *int      `json:"season_number,omitempty"`
	EpisodeNumber   *int      `json:"episode_number,omitempty"`
	Quality         string    `json:"quality,omitempty"`
	WatchedAt       time.Time `json:"watched_at"`
	LastPlayedAt    time.Time `json:"last_played_at"`
}

// Derive computes the progress percentage and completion flag from a playhead
// position and total duration. A non-positive duration yields zero progress.
func Derive(positionSeconds, durationSeconds float64) (percent int, completed bool) {
	if durationSeconds <= 0 {
		return 0, false
	}
	p := int(math.Round(positionSeconds / durationSeconds * 100))
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p, p > completedThresholdPercent
}

// Snapshot is the denormalized catalog display data captured when a record is
// first created. It is never refreshed by later writes.
type Snapshot struct {
	Title      string
	PosterPath string
}

// UpsertParams carries one fully derived write. ProgressPercent and Completed
// are computed by the caller (see Derive); stores persist them as given.
type UpsertParams struct {
	UserID          string
	MediaID         string
	MediaType       MediaType
	PositionSeconds float64
	DurationSeconds float64
	ProgressPercent int
	Completed       bool
	// SeasonNumber and EpisodeNumber overwrite stored values only when
	// non-nil; nil leaves existing values untouched.
	SeasonNumber  *int
	EpisodeNumber *int
	// Quality overwrites the stored value only when non-empty.
	Quality string
	// Snapshot is applied on record creation only.
	Snapshot Snapshot
	// LastPlayedAt becomes the record's last_played_at; on creation it also
	// becomes watched_at.
	LastPlayedAt time.Time
}

// Query selects records for a user's list views. Results are always ordered
// by last_played_at descending.
type Query struct {
	// MediaType filters by kind when non-empty.
	MediaType MediaType
	// InProgress restricts results to the continue-watching band:
	// not completed and strictly between 0% and 90%.
	InProgress bool
	// Limit bounds the result size; non-positive means no explicit bound.
	Limit int
}

// InProgressBand reports whether a record falls into the continue-watching
// band. Both bounds are exclusive: untouched and fully watched items are out.
func InProgressBand(r ProgressRecord) bool {
	return !r.Completed && r.ProgressPercent > 0 && r.ProgressPercent < completedThresholdPercent
}
