// Package worker consumes player progress events from JetStream and applies
// them through the tracker, so clients that batch-report offline progress
// share the exact write path of the HTTP API.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/stream-platform/services/history/internal/idempotency"
	"github.com/example/stream-platform/services/history/internal/metrics"
	"github.com/example/stream-platform/services/history/internal/store"
	"github.com/example/stream-platform/services/history/internal/tracker"
)

const (
	progressSubject = "history.progress"
	progressDurable = "history_progress"
)

// ProgressEvent is the payload players publish to history.progress.
type ProgressEvent struct {
	EventID         string  `json:"event_id"`
	UserID          string  `json:"user_id"`
	MediaID         string  `json:"media_id"`
	MediaType       string  `json:"media_type"`
	PositionSeconds float64 `json:"position_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	SeasonNumber    *int    `json:"season_number,omitempty"`
	EpisodeNumber   *int    `json:"episode_number,omitempty"`
	Quality         string  `json:"quality,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// Tracker is the slice of the tracker service the consumer needs.
type Tracker interface {
	Upsert(ctx context.Context, userID string, in tracker.UpsertInput) (store.ProgressRecord, error)
}

// StartProgressConsumer subscribes to the progress subject and applies events
// in fetched batches until ctx is cancelled. Startup failures are logged and
// leave the HTTP write path as the only ingest.
func StartProgressConsumer(ctx context.Context, nc *nats.Conn, svc Tracker, dedupe idempotency.Store, log *zap.Logger) {
	js, err := nc.JetStream()
	if err != nil {
		log.Error("progress consumer: jetstream", zap.Error(err))
		return
	}
	sub, err := js.PullSubscribe(progressSubject, progressDurable)
	if err != nil {
		log.Error("progress consumer: subscribe", zap.Error(err))
		return
	}
	log.Info("progress consumer started",
		zap.String("subject", progressSubject),
		zap.String("durable", progressDurable))

	go func() {
		batchSize := envInt("WORKER_BATCH_SIZE", 100)
		batchWait := time.Duration(envInt("WORKER_BATCH_INTERVAL_MS", 2000)) * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(batchSize, nats.MaxWait(batchWait))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				log.Warn("progress consumer: fetch", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			for _, m := range msgs {
				handleMessage(ctx, m, svc, dedupe, log)
			}
		}
	}()
}

func handleMessage(ctx context.Context, m *nats.Msg, svc Tracker, dedupe idempotency.Store, log *zap.Logger) {
	var ev ProgressEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		// Malformed payloads never become valid; drop instead of requeueing.
		log.Warn("progress consumer: invalid json", zap.Error(err))
		metrics.EventsConsumedTotal.WithLabelValues("invalid").Inc()
		ack(m, log)
		return
	}

	// Redeliveries bypass the duplicate check: an apply that failed after
	// the event was marked must still land, and progress upserts are
	// idempotent so a repeat apply is harmless.
	if dedupe != nil && ev.EventID != "" && !redelivered(m) {
		dup, err := dedupe.Check(ctx, ev.EventID)
		if err != nil {
			log.Warn("progress consumer: dedupe check", zap.String("event_id", ev.EventID), zap.Error(err))
			nak(m, log)
			return
		}
		if dup {
			metrics.EventsConsumedTotal.WithLabelValues("duplicate").Inc()
			ack(m, log)
			return
		}
	}

	_, err := svc.Upsert(ctx, ev.UserID, tracker.UpsertInput{
		MediaID:         ev.MediaID,
		MediaType:       ev.MediaType,
		PositionSeconds: ev.PositionSeconds,
		DurationSeconds: ev.DurationSeconds,
		SeasonNumber:    ev.SeasonNumber,
		EpisodeNumber:   ev.EpisodeNumber,
		Quality:         ev.Quality,
	})
	if err != nil {
		var verr *tracker.ValidationError
		if errors.As(err, &verr) {
			// Invalid events stay invalid on redelivery; drop them.
			log.Warn("progress consumer: rejected event",
				zap.String("event_id", ev.EventID),
				zap.String("user_id", ev.UserID),
				zap.Error(err))
			metrics.EventsConsumedTotal.WithLabelValues("invalid").Inc()
			ack(m, log)
			return
		}
		log.Warn("progress consumer: upsert failed",
			zap.String("event_id", ev.EventID),
			zap.Error(err))
		metrics.EventsConsumedTotal.WithLabelValues("failed").Inc()
		nak(m, log)
		return
	}

	metrics.EventsConsumedTotal.WithLabelValues("applied").Inc()
	ack(m, log)
}

func redelivered(m *nats.Msg) bool {
	md, err := m.Metadata()
	return err == nil && md.NumDelivered > 1
}

func ack(m *nats.Msg, log *zap.Logger) {
	if err := m.Ack(); err != nil {
		log.Warn("progress consumer: ack", zap.Error(err))
	}
}

func nak(m *nats.Msg, log *zap.Logger) {
	if err := m.Nak(); err != nil {
		log.Warn("progress consumer: nak", zap.Error(err))
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
