package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists progress records in Postgres.
//
// Table watch_progress must exist with a unique constraint on
// (user_id, media_id, media_type) (see the history migrations).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const progressColumns = `user_id, media_id, media_type, title, poster_path,
	position_seconds, duration_seconds, progress_percent, completed,
	season_number, episode_number, quality, watched_at, last_played_at`

func (s *PostgresStore) Upsert(ctx context.Context, p UpsertParams) (ProgressRecord, error) {
	q := `
INSERT INTO watch_progress (user_id, media_id, media_type, title, poster_path,
	position_seconds, duration_seconds, progress_percent, completed,
	season_number, episode_number, quality, watched_at, last_played_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
ON CONFLICT (user_id, media_id, media_type) DO UPDATE SET
	position_seconds = EXCLUDED.position_seconds,
	duration_seconds = EXCLUDED.duration_seconds,
	progress_percent = EXCLUDED.progress_percent,
	completed        = EXCLUDED.completed,
	season_number    = COALESCE(EXCLUDED.season_number, watch_progress.season_number),
	episode_number   = COALESCE(EXCLUDED.episode_number, watch_progress.episode_number),
	quality          = CASE WHEN EXCLUDED.quality = '' THEN watch_progress.quality ELSE EXCLUDED.quality END,
	last_played_at   = EXCLUDED.last_played_at
RETURNING ` + progressColumns

	row := s.pool.QueryRow(ctx, q,
		p.UserID, p.MediaID, string(p.MediaType), p.Snapshot.Title, p.Snapshot.PosterPath,
		p.PositionSeconds, p.DurationSeconds, p.ProgressPercent, p.Completed,
		p.SeasonNumber, p.EpisodeNumber, p.Quality, p.LastPlayedAt,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return ProgressRecord{}, storageErr("upsert", err)
	}
	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, mediaID string, mediaType MediaType) (ProgressRecord, error) {
	q := `SELECT ` + progressColumns + `
FROM watch_progress
WHERE user_id = $1 AND media_id = $2 AND media_type = $3`

	rec, err := scanRecord(s.pool.QueryRow(ctx, q, userID, mediaID, string(mediaType)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProgressRecord{}, ErrNotFound
		}
		return ProgressRecord{}, storageErr("get", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, q Query) ([]ProgressRecord, error) {
	sql := `SELECT ` + progressColumns + ` FROM watch_progress WHERE user_id = $1`
	args := []any{userID}

	if q.MediaType != "" {
		args = append(args, string(q.MediaType))
		sql += " AND media_type = $" + strconv.Itoa(len(args))
	}
	if q.InProgress {
		sql += " AND completed = false AND progress_percent > 0 AND progress_percent < " +
			strconv.Itoa(completedThresholdPercent)
	}
	sql += " ORDER BY last_played_at DESC, media_id DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()

	out := make([]ProgressRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storageErr("list", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ProgressRecord, error) {
	var rec ProgressRecord
	var mediaType string
	err := row.Scan(
		&rec.UserID, &rec.MediaID, &mediaType, &rec.Title, &rec.PosterPath,
		&rec.PositionSeconds, &rec.DurationSeconds, &rec.ProgressPercent, &rec.Completed,
		&rec.SeasonNumber, &rec.EpisodeNumber, &rec.Quality, &rec.WatchedAt, &rec.LastPlayedAt,
	)
	if err != nil {
		return ProgressRecord{}, err
	}
	rec.MediaType = MediaType(mediaType)
	rec.WatchedAt = rec.WatchedAt.UTC()
	rec.LastPlayedAt = rec.LastPlayedAt.UTC()
	return rec, nil
}
