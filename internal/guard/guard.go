// Package guard decides whether a protected view may be entered. A navigation
// attempt starts Evaluating and ends Allowed, Redirecting to the login view, or
// Failed when the data the view needs cannot be loaded.
package guard

import (
	"context"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/common/httpclient"
)

// LoginPath is the view unauthenticated users are sent to.
const LoginPath = "/login"

// Decision is the outcome of a navigation attempt.
type Decision int

const (
	Evaluating Decision = iota
	Allowed
	Redirecting
	Failed
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Redirecting:
		return "redirecting"
	case Failed:
		return "failed"
	}
	return "evaluating"
}

// Location is a navigation target. Redirect, when set, is the path to return to
// after logging in.
type Location struct {
	Path     string
	Redirect string
}

func (l Location) String() string {
	if l.Redirect == "" {
		return l.Path
	}
	return l.Path + "?" + url.Values{"redirect": {l.Redirect}}.Encode()
}

// Navigator moves the user to another view.
type Navigator interface {
	Navigate(ctx context.Context, to Location)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, to Location)

func (f NavigatorFunc) Navigate(ctx context.Context, to Location) {
	f(ctx, to)
}

// Session is the authentication state consulted by the guard.
type Session interface {
	IsAuthenticated(ctx context.Context) bool
	EndSession(ctx context.Context)
}

// Prefetch loads the data a view needs before it is shown.
type Prefetch func(ctx context.Context) error

// Guard owns redirects caused by navigation. Its requests never reach the
// private client's authorization failure handler, so one rejection produces
// one redirect.
type Guard struct {
	session Session
	nav     Navigator
}

// New returns a guard.
func New(session Session, nav Navigator) *Guard {
	return &Guard{session: session, nav: nav}
}

// Enter evaluates a navigation to path. prefetch may be nil. Authorization
// failures of the prefetch end the session and redirect; other failures return
// apperrors.ErrLoadFailed wrapping the cause.
func (g *Guard) Enter(ctx context.Context, path string, prefetch Prefetch) (Decision, error) {
	ctx = httpclient.SuppressAuthFailure(ctx)

	if !g.session.IsAuthenticated(ctx) {
		g.redirect(ctx, path)
		return Redirecting, nil
	}
	if prefetch == nil {
		return Allowed, nil
	}

	err := prefetch(ctx)
	switch {
	case err == nil:
		return Allowed, nil
	case apperrors.IsUnauthorized(err):
		log.Info().Str("path", path).Int("status", httpclient.StatusCode(err)).Msg("prefetch rejected, redirecting to login")
		g.redirect(ctx, path)
		return Redirecting, nil
	default:
		log.Warn().Err(err).Str("path", path).Msg("prefetch failed")
		return Failed, apperrors.ErrLoadFailed.Err(err)
	}
}

func (g *Guard) redirect(ctx context.Context, path string) {
	g.session.EndSession(ctx)
	to := Location{Path: LoginPath}
	if path != LoginPath {
		to.Redirect = path
	}
	g.nav.Navigate(ctx, to)
}
