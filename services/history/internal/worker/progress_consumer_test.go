package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/stream-platform/internal/platform/events"
	"github.com/example/stream-platform/services/history/internal/catalog"
	"github.com/example/stream-platform/services/history/internal/idempotency"
	"github.com/example/stream-platform/services/history/internal/store"
	"github.com/example/stream-platform/services/history/internal/tracker"
)

type fakeTracker struct {
	mu      sync.Mutex
	applied []tracker.UpsertInput
	err     error
}

func (f *fakeTracker) Upsert(_ context.Context, userID string, in tracker.UpsertInput) (store.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return store.ProgressRecord{}, f.err
	}
	f.applied = append(f.applied, in)
	return store.ProgressRecord{UserID: userID, MediaID: in.MediaID}, nil
}

func (f *fakeTracker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

func (f *fakeTracker) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newDedupe(t *testing.T) idempotency.Store {
	t.Helper()
	s, err := idempotency.NewStore(context.Background(), "", "", time.Minute, false, zap.NewNop())
	if err != nil {
		t.Fatalf("dedupe store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// newMsg builds a message carrying a JetStream ack reply so Metadata reports
// the given delivery count.
func newMsg(t *testing.T, ev ProgressEvent, delivered int) *nats.Msg {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &nats.Msg{
		Subject: progressSubject,
		Data:    b,
		Reply:   fmt.Sprintf("$JS.ACK.history.%s.%d.1.1.1700000000000000000.0", progressDurable, delivered),
		Sub:     &nats.Subscription{},
	}
}

func validEvent(id string) ProgressEvent {
	return ProgressEvent{
		EventID:         id,
		UserID:          "user-1",
		MediaID:         "603",
		MediaType:       "movie",
		PositionSeconds: 1800,
		DurationSeconds: 3600,
	}
}

func TestHandleMessageAppliesEvent(t *testing.T) {
	svc := &fakeTracker{}

	handleMessage(context.Background(), newMsg(t, validEvent("evt-1"), 1), svc, newDedupe(t), zap.NewNop())

	if svc.count() != 1 {
		t.Fatalf("applied %d events, want 1", svc.count())
	}
	in := svc.applied[0]
	if in.MediaID != "603" || in.MediaType != "movie" || in.PositionSeconds != 1800 {
		t.Fatalf("input mapping: %+v", in)
	}
}

func TestHandleMessageDuplicateSkipped(t *testing.T) {
	svc := &fakeTracker{}
	dedupe := newDedupe(t)

	handleMessage(context.Background(), newMsg(t, validEvent("evt-1"), 1), svc, dedupe, zap.NewNop())
	handleMessage(context.Background(), newMsg(t, validEvent("evt-1"), 1), svc, dedupe, zap.NewNop())

	if svc.count() != 1 {
		t.Fatalf("applied %d events, want 1 after duplicate", svc.count())
	}
}

func TestHandleMessageMissingEventIDAlwaysApplies(t *testing.T) {
	svc := &fakeTracker{}
	dedupe := newDedupe(t)

	handleMessage(context.Background(), newMsg(t, validEvent(""), 1), svc, dedupe, zap.NewNop())
	handleMessage(context.Background(), newMsg(t, validEvent(""), 1), svc, dedupe, zap.NewNop())

	if svc.count() != 2 {
		t.Fatalf("applied %d events, want 2 without event ids", svc.count())
	}
}

func TestHandleMessageInvalidJSONDropped(t *testing.T) {
	svc := &fakeTracker{}
	m := &nats.Msg{Subject: progressSubject, Data: []byte("{broken"), Sub: &nats.Subscription{}}

	handleMessage(context.Background(), m, svc, newDedupe(t), zap.NewNop())

	if svc.count() != 0 {
		t.Fatalf("malformed payload reached the tracker")
	}
}

func TestHandleMessageRetryAfterFailureStillApplies(t *testing.T) {
	svc := &fakeTracker{}
	svc.setErr(errors.New("store down"))
	dedupe := newDedupe(t)

	// First delivery marks the event but the apply fails.
	handleMessage(context.Background(), newMsg(t, validEvent("evt-9"), 1), svc, dedupe, zap.NewNop())
	if svc.count() != 0 {
		t.Fatal("failed apply should not count")
	}

	// The redelivery must not be swallowed by the duplicate mark.
	svc.setErr(nil)
	handleMessage(context.Background(), newMsg(t, validEvent("evt-9"), 2), svc, dedupe, zap.NewNop())
	if svc.count() != 1 {
		t.Fatalf("applied %d events after redelivery, want 1", svc.count())
	}
}

func TestHandleMessageEndToEnd(t *testing.T) {
	st := store.NewMemoryStore()
	svc := tracker.New(st, catalog.Static{}, events.New(nil, zap.NewNop()), zap.NewNop())

	handleMessage(context.Background(), newMsg(t, validEvent("evt-1"), 1), svc, newDedupe(t), zap.NewNop())

	rec, err := st.Get(context.Background(), "user-1", "603", store.MediaTypeMovie)
	if err != nil {
		t.Fatalf("record not written: %v", err)
	}
	if rec.ProgressPercent != 50 {
		t.Fatalf("progress_percent = %d, want 50", rec.ProgressPercent)
	}
}

func TestHandleMessageValidationRejectedDropped(t *testing.T) {
	st := store.NewMemoryStore()
	svc := tracker.New(st, catalog.Static{}, events.New(nil, zap.NewNop()), zap.NewNop())

	ev := validEvent("evt-bad")
	ev.MediaType = "betamax"
	handleMessage(context.Background(), newMsg(t, ev, 1), svc, newDedupe(t), zap.NewNop())

	if recs, _ := st.List(context.Background(), "user-1", store.Query{Limit: 10}); len(recs) != 0 {
		t.Fatalf("invalid event reached storage: %+v", recs)
	}
}

func TestEnvInt(t *testing.T) {
	if got := envInt("WORKER_TEST_UNSET", 7); got != 7 {
		t.Fatalf("unset: got %d", got)
	}
	t.Setenv("WORKER_TEST_SET", "42")
	if got := envInt("WORKER_TEST_SET", 7); got != 42 {
		t.Fatalf("set: got %d", got)
	}
	t.Setenv("WORKER_TEST_JUNK", "many")
	if got := envInt("WORKER_TEST_JUNK", 7); got != 7 {
		t.Fatalf("junk: got %d", got)
	}
	t.Setenv("WORKER_TEST_NEG", "-3")
	if got := envInt("WORKER_TEST_NEG", 7); got != 7 {
		t.Fatalf("negative: got %d", got)
	}
}
