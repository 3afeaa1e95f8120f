// Package app assembles the client runtime: session store, HTTP clients,
// authentication, query cache and route guard. Every runtime is independent, so
// several can coexist in one process.
package app

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/uparkt/parkadmin/internal/api"
	"github.com/uparkt/parkadmin/internal/auth"
	"github.com/uparkt/parkadmin/internal/cache"
	"github.com/uparkt/parkadmin/internal/chat"
	"github.com/uparkt/parkadmin/internal/common/httpclient"
	"github.com/uparkt/parkadmin/internal/config"
	"github.com/uparkt/parkadmin/internal/guard"
	"github.com/uparkt/parkadmin/internal/query"
	"github.com/uparkt/parkadmin/internal/session"
	"golang.org/x/time/rate"
)

// Options overrides the collaborators a runtime builds by default.
type Options struct {
	// Store defaults to the file store configured in the session section.
	Store session.Store
	// Navigator receives redirects to the login view. Defaults to logging them.
	Navigator guard.Navigator
	// Transport replaces the HTTP transport shared by both clients.
	Transport httpclient.Doer
	// Cache overrides the cache settings derived from the configuration.
	Cache *cache.Options
}

// Runtime is the explicit context object of the client.
type Runtime struct {
	Config  *config.ConfigParam
	Store   session.Store
	Clients *httpclient.Pair
	Auth    *auth.Service
	API     *api.Client
	Cache   *cache.Cache
	Queries *query.Registry
	Guard   *guard.Guard

	nav  guard.Navigator
	gate *auth.FailureGate
}

// New wires a runtime for cfg.
func New(cfg *config.ConfigParam, opts Options) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Store: opts.Store, nav: opts.Navigator}
	if rt.Store == nil {
		rt.Store = session.NewFileStore(cfg.Session.Path, session.NewSealer(cfg.Session.Passphrase))
	}
	if rt.nav == nil {
		rt.nav = guard.NavigatorFunc(func(_ context.Context, to guard.Location) {
			log.Info().Str("location", to.String()).Msg("navigation requested")
		})
	}

	mode := httpclient.FailFast
	if cfg.Session.SendAnonymous {
		mode = httpclient.SendAnonymous
	}
	var limiter *rate.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), max(cfg.Server.Burst, 1))
	}

	pair, err := httpclient.NewPair(httpclient.Options{
		BaseURL:      cfg.Server.URL,
		Prefix:       cfg.APIPrefix(),
		Timeout:      cfg.Server.GetTimeoutOrDefault(),
		Transport:    opts.Transport,
		Limiter:      limiter,
		MissingToken: mode,
	}, rt.Store, httpclient.AuthFailureFunc(rt.handleAuthFailure))
	if err != nil {
		return nil, err
	}
	rt.Clients = pair

	rt.Auth = auth.NewService(pair.Public, pair.Private, rt.Store, auth.Options{
		RequiredRole:       cfg.Session.RequiredRole,
		RevalidateInterval: cfg.Session.GetRevalidateIntervalOrDefault(),
	})
	rt.gate = auth.NewFailureGate(rt.Store, rt.Auth.Scheduler(), rt.redirectToLogin)
	rt.API = api.New(pair.Public, pair.Private)
	rt.Queries = query.NewRegistry(rt.API, rt.Auth)
	rt.Guard = guard.New(rt.Auth, rt.nav)

	cacheOpts := cache.Options{
		StaleTime: cfg.Cache.GetStaleTimeOrDefault(),
		Retries:   cfg.Cache.Retries,
	}
	if cfg.Cache.Retries == 0 {
		cacheOpts.Retries = -1
	}
	if opts.Cache != nil {
		cacheOpts = *opts.Cache
	}
	rt.Cache = cache.New(cacheOpts)
	return rt, nil
}

func (rt *Runtime) handleAuthFailure(ctx context.Context, token string, status int) {
	rt.gate.HandleAuthFailure(ctx, token, status)
}

func (rt *Runtime) redirectToLogin(ctx context.Context) {
	rt.Cache.Clear()
	rt.nav.Navigate(ctx, guard.Location{Path: guard.LoginPath})
}

// Boot resumes a stored session: the token is revalidated right away and then
// on every scheduler tick. Without a session it does nothing.
func (rt *Runtime) Boot(ctx context.Context) error {
	if session.Token(ctx, rt.Store) == "" {
		return nil
	}
	return rt.Auth.Scheduler().Start(ctx)
}

// Close stops background work.
func (rt *Runtime) Close() {
	rt.Auth.Scheduler().Stop()
	rt.Cache.Wait()
}

// Login signs in and seeds the profile query.
func (rt *Runtime) Login(ctx context.Context, c auth.Credentials) (*auth.Me, error) {
	me, err := rt.Auth.Login(ctx, c)
	if err != nil {
		return nil, err
	}
	rt.Cache.Clear()
	rt.Cache.Set(query.MeKey(), me)
	return me, nil
}

// Logout ends the session and drops every cached query.
func (rt *Runtime) Logout(ctx context.Context) error {
	err := rt.Auth.Logout(ctx)
	rt.Cache.Clear()
	return err
}

// Enter runs the route guard for path, prefetching q when given.
func Enter[T any](ctx context.Context, rt *Runtime, path string, q *query.Query[T]) (guard.Decision, error) {
	if q == nil {
		return rt.Guard.Enter(ctx, path, nil)
	}
	return rt.Guard.Enter(ctx, path, func(ctx context.Context) error {
		_, err := cache.Fetch(ctx, rt.Cache, *q)
		return err
	})
}

// Me returns the staff profile, from cache when available.
func (rt *Runtime) Me(ctx context.Context) (*auth.Me, error) {
	return cache.Get(ctx, rt.Cache, rt.Queries.MeDetail())
}

// OpenChat connects to the support chat with the staff member's chat token.
func (rt *Runtime) OpenChat(ctx context.Context) (*chat.Conn, error) {
	me, err := cache.Ensure(ctx, rt.Cache, rt.Queries.MeDetail())
	if err != nil {
		return nil, err
	}
	return chat.Dial(ctx, rt.Config.WSOrigin(), rt.Config.APIPrefix(), me.Token)
}
