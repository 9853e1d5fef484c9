// Package scheduler drives recurring background jobs on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"NewsPublisher/internal/ports"
)

// Interval runs a job immediately and then once per period.
type Interval struct {
	period time.Duration
	stop   chan struct{}
}

var _ ports.Scheduler = (*Interval)(nil)

// NewInterval builds a scheduler; period must be positive.
func NewInterval(period time.Duration) *Interval {
	return &Interval{period: period}
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (s *Interval) Start(ctx context.Context, job func(context.Context)) error {
	if job == nil || s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()
		job(ctx)
		for {
			select {
			case <-ticker.C:
				job(ctx)
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (s *Interval) Stop(context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}
