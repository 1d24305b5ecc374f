package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

const defaultSweepBatch = 100

// SweepObserver receives per-run sweeper signals.
type SweepObserver interface {
	StartSweep()
	FinishSweep(duration time.Duration, swept int, err error)
}

// StaleSweeper fails records left in processing longer than staleAfter.
// It covers submissions whose client went away before the watch resolved.
type StaleSweeper struct {
	store      ports.RecordStore
	lifecycle  *RecordLifecycle
	messages   domain.Messages
	staleAfter time.Duration
	batch      int
	observer   SweepObserver
	now        func() time.Time
}

func NewStaleSweeper(
	store ports.RecordStore,
	lifecycle *RecordLifecycle,
	messages domain.Messages,
	staleAfter time.Duration,
	observer SweepObserver,
) *StaleSweeper {
	if staleAfter <= 0 {
		staleAfter = 2 * DefaultWatchTimeout
	}
	return &StaleSweeper{
		store:      store,
		lifecycle:  lifecycle,
		messages:   messages,
		staleAfter: staleAfter,
		batch:      defaultSweepBatch,
		observer:   observer,
		now:        time.Now,
	}
}

// SweepOnce fails one batch of stale records and reports how many it touched.
func (s *StaleSweeper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	if s.observer != nil {
		s.observer.StartSweep()
	}

	swept, err := s.sweep(ctx)

	if s.observer != nil {
		s.observer.FinishSweep(time.Since(start), swept, err)
	}
	return swept, err
}

func (s *StaleSweeper) sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	ids, err := s.store.ListStale(ctx, cutoff, s.batch)
	if err != nil {
		return 0, err
	}

	message := s.messages.Get(domain.MsgWatchTimeout)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return len(ids), err
		}
		s.lifecycle.MarkFailed(ctx, id, message)
	}
	if len(ids) > 0 {
		slog.Info("stale_records_swept", "count", len(ids), "cutoff", cutoff)
	}
	return len(ids), nil
}

// Run sweeps on every interval tick until ctx is done.
func (s *StaleSweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("sweep_error", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
