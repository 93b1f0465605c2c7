package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/tewereus/prime-property/pkg/logger"
)

// ExpiredSweeper walks stale pending payments on a timer. The service it
// drives uses conditional updates, so two sweepers racing each other or a
// late callback is harmless.
type ExpiredSweeper struct {
	lifecycle Lifecycle
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type Lifecycle interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

func New(lifecycle Lifecycle, interval time.Duration) *ExpiredSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ExpiredSweeper{
		lifecycle: lifecycle,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *ExpiredSweeper) Start() {
	s.wg.Add(1)
	go s.run()
	logger.Info("Expiry sweeper started", "interval", s.interval)
}

func (s *ExpiredSweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *ExpiredSweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, s.interval)
	defer cancel()

	expired, err := s.lifecycle.SweepExpired(ctx, time.Now())
	if err != nil {
		logger.Error("Expiry sweep failed", "error", err)
		return
	}
	if expired > 0 {
		logger.Info("Expired stale payments", "count", expired)
	}
}

func (s *ExpiredSweeper) Stop() {
	s.cancel()
	s.wg.Wait()
	logger.Info("Expiry sweeper stopped")
}
