package bookings

import (
	"context"
	"time"

	"github.com/needtofly/dodoktora/pkg/logging"
)

// Sweeper periodically cancels abandoned payment holds so slots free up even
// when nobody attempts to rebook them.
type Sweeper struct {
	repo       Repository
	holdWindow time.Duration
	interval   time.Duration
	log        *logging.Logger
	now        func() time.Time
	swept      func(n int64)
}

// NewSweeper creates a sweeper; interval defaults to one minute when zero.
func NewSweeper(repo Repository, holdWindow, interval time.Duration, log *logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		repo:       repo,
		holdWindow: holdWindow,
		interval:   interval,
		log:        log,
		now:        time.Now,
	}
}

// OnSwept registers a callback invoked with the number of cancelled holds
// after each non-empty sweep. Used for metrics.
func (s *Sweeper) OnSwept(fn func(n int64)) *Sweeper {
	s.swept = fn
	return s
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce cancels every hold older than the window.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	n, err := s.repo.CancelAbandoned(ctx, s.now().Add(-s.holdWindow))
	if err != nil {
		s.log.Error("hold sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("cancelled abandoned holds", "count", n)
		if s.swept != nil {
			s.swept(n)
		}
	}
}
