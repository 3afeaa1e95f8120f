package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uparkt/parkadmin/internal/session"
)

// DefaultRevalidateInterval is the period of the token refresh timer.
const DefaultRevalidateInterval = 14 * time.Minute

// Refresher obtains a new access token and stores it.
type Refresher func(ctx context.Context) error

// Scheduler periodically refreshes the access token. It is either Idle or Running,
// and at most one timer is armed at any time.
type Scheduler struct {
	store    session.Store
	refresh  Refresher
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64

	active atomic.Int32
}

// NewScheduler creates an idle scheduler. A non-positive interval selects
// DefaultRevalidateInterval.
func NewScheduler(store session.Store, interval time.Duration, refresh Refresher) *Scheduler {
	if interval <= 0 {
		interval = DefaultRevalidateInterval
	}
	return &Scheduler{
		store:    store,
		refresh:  refresh,
		interval: interval,
	}
}

// Interval returns the refresh period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start replaces any running timer. Without a stored token it stays idle.
// Otherwise it refreshes once right away and, if that succeeds, arms the
// recurring timer. A failed first refresh leaves the scheduler idle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.Stop()
	if session.Token(ctx, s.store) == "" {
		log.Debug().Msg("no session, token revalidation not started")
		return nil
	}
	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.Schedule()
	return nil
}

// Schedule arms the recurring timer without an immediate refresh, replacing any
// timer already running.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	s.active.Add(1)
	go s.run(ctx, s.gen)
	log.Debug().Dur("interval", s.interval).Msg("token revalidation scheduled")
}

// Stop cancels the timer. It is idempotent, does not block, and may be called
// from inside the refresh callback.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Running reports whether a timer is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Active returns the number of timer goroutines that have not exited yet.
func (s *Scheduler) Active() int {
	return int(s.active.Load())
}

func (s *Scheduler) run(ctx context.Context, gen uint64) {
	defer s.active.Add(-1)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if err := s.refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("token revalidation failed, stopping timer")
				s.mu.Lock()
				if s.gen == gen {
					s.stopLocked()
				}
				s.mu.Unlock()
				return
			}
		}
	}
}
