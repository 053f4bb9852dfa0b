// Package run owns process lifecycle: signal handling and exit codes.
package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// shutdownGrace bounds how long a service may keep draining after a
// termination signal before the runner stops waiting for it.
const shutdownGrace = 15 * time.Second

type Runner struct {
	Logger *zap.Logger
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log}
}

// WithSignals runs start until it returns or the process receives SIGINT or
// SIGTERM. On a signal the context passed to start is cancelled and the
// runner waits up to shutdownGrace for start to return, so deferred cleanup
// in the caller only runs once the service has actually stopped. A nil error
// and http.ErrServerClosed both map to exit code 0.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- start(ctx) }()

	select {
	case err := <-errCh:
		return r.exitCode(err)
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
	}

	select {
	case err := <-errCh:
		return r.exitCode(err)
	case <-time.After(shutdownGrace):
		r.Logger.Warn("shutdown grace period elapsed, exiting anyway")
		return 1
	}
}

func (r *Runner) exitCode(err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

func Exit(code int) {
	os.Exit(code)
}
