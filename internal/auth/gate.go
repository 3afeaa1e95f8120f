package auth

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/uparkt/parkadmin/internal/common/httpclient"
	"github.com/uparkt/parkadmin/internal/session"
)

// FailureGate turns 401/403 responses of the private client into a single
// session teardown and redirect. Failures carrying the same token belong to one
// event, so concurrent requests rejected together are handled once.
type FailureGate struct {
	store     session.Store
	scheduler *Scheduler
	redirect  func(ctx context.Context)

	mu      sync.Mutex
	fired   bool
	lastTok string
}

var _ httpclient.AuthFailureHandler = (*FailureGate)(nil)

// NewFailureGate returns a gate that clears store, stops scheduler and calls redirect.
func NewFailureGate(store session.Store, scheduler *Scheduler, redirect func(ctx context.Context)) *FailureGate {
	return &FailureGate{
		store:     store,
		scheduler: scheduler,
		redirect:  redirect,
	}
}

func (g *FailureGate) HandleAuthFailure(ctx context.Context, token string, status int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fired && token == g.lastTok {
		log.Debug().Int("status", status).Msg("authorization failure already handled")
		return
	}
	g.fired = true
	g.lastTok = token

	log.Info().Int("status", status).Msg("authorization rejected, ending session")
	if err := g.store.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("unable to clear session")
	}
	if g.scheduler != nil {
		g.scheduler.Stop()
	}
	if g.redirect != nil {
		g.redirect(ctx)
	}
}
