// Package job provides the bounded, shutdown-aware alternative to spawning
// unsupervised goroutines from request handlers. Every background task
// kicked off outside a request's own lifetime (the ingestion pipeline, async
// memory extraction) goes through a Supervisor instead of a bare `go func`.
package job

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/quill/internal/pkg/logging"
	"go.uber.org/zap"
)

// Supervisor bounds concurrent background tasks and blocks shutdown until
// in-flight work drains or a deadline passes.
type Supervisor struct {
	sem      chan struct{}
	group    *errgroup.Group
	groupCtx context.Context
	cancel   context.CancelFunc
}

// NewSupervisor creates a supervisor allowing up to maxConcurrent tasks to
// run at once. Tasks submitted beyond that bound block the caller until a
// slot frees up.
func NewSupervisor(maxConcurrent int) *Supervisor {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	return &Supervisor{
		sem:      make(chan struct{}, maxConcurrent),
		group:    group,
		groupCtx: groupCtx,
		cancel:   cancel,
	}
}

// Spawn runs fn on a supervised goroutine. It blocks the caller only long
// enough to acquire a concurrency slot, not for fn's duration. A task
// receives a context derived from the supervisor's own lifetime, not the
// caller's request context, so it survives the request that started it but
// is cancelled on Shutdown.
func (s *Supervisor) Spawn(name string, fn func(ctx context.Context) error) {
	select {
	case s.sem <- struct{}{}:
	case <-s.groupCtx.Done():
		return
	}
	s.group.Go(func() error {
		defer func() { <-s.sem }()
		logger := logging.From(s.groupCtx).With(zap.String("task", name))
		start := time.Now()
		err := fn(s.groupCtx)
		if err != nil {
			logger.Error("background task failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
			return nil // one task's failure must not cancel siblings via errgroup
		}
		logger.Debug("background task finished", zap.Duration("duration", time.Since(start)))
		return nil
	})
}

// Shutdown cancels outstanding tasks' context and waits up to timeout for
// them to observe cancellation and return.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	s.cancel()
	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}
