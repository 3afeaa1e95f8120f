package httpclient

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/common/logtrace"
	"github.com/uparkt/parkadmin/internal/observability"
	"github.com/uparkt/parkadmin/internal/session"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the id of an outgoing request.
const RequestIDHeader = "X-Request-ID"

// MissingTokenMode selects what the private client does when no token is stored.
type MissingTokenMode int

const (
	// FailFast fails the request locally with apperrors.ErrNoSession.
	FailFast MissingTokenMode = iota
	// SendAnonymous sends the request without an Authorization header.
	SendAnonymous
)

// RequestID stamps every request with the id found in its context, or a new one.
func RequestID() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			id := logtrace.RequestIdFromContext(req.Context())
			if id == "" {
				id = logtrace.NewRequestID()
			}
			req = req.Clone(logtrace.WithRequestID(req.Context(), id))
			req.Header.Set(RequestIDHeader, id)
			return next.Do(req)
		})
	}
}

// Instrument logs each request and records it in the client metrics.
func Instrument(client string) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)
			elapsed := time.Since(start)

			status := "error"
			if resp != nil {
				status = strconv.Itoa(resp.StatusCode)
			}
			observability.HTTPClientRequestsTotal.WithLabelValues(client, req.Method, status).Inc()
			observability.HTTPClientRequestDuration.WithLabelValues(client, req.Method).Observe(elapsed.Seconds())

			ev := log.Debug()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev.Str("client", client).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("status", status).
				Dur("duration", elapsed).
				Str("request_id", req.Header.Get(RequestIDHeader)).
				Msg("api request")
			return resp, err
		})
	}
}

// BearerAuth reads the session before every request and attaches its token. With
// no token the store is cleared and mode decides whether the request is sent.
func BearerAuth(store session.Store, mode MissingTokenMode) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			token := session.Token(ctx, store)
			if token == "" {
				if err := store.Clear(ctx); err != nil {
					log.Warn().Err(err).Msg("unable to reset session")
				}
				if mode == FailFast {
					return nil, apperrors.ErrNoSession
				}
				req = req.Clone(ctx)
				req.Header.Del("Authorization")
				return next.Do(req)
			}
			req = req.Clone(ctx)
			req.Header.Set("Authorization", "Bearer "+token)
			return next.Do(req)
		})
	}
}

type suppressKey struct{}

// SuppressAuthFailure marks ctx so that AuthFailure does not report 401/403
// responses of requests made with it. Callers that handle authorization
// failures themselves, such as the route guard, use it to avoid a second redirect.
func SuppressAuthFailure(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, true)
}

func authFailureSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressKey{}).(bool)
	return v
}

// AuthFailure reports 401 and 403 responses to handler. The response itself is
// passed through unchanged, so the caller still sees the failure.
func AuthFailure(handler AuthFailureHandler) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.Do(req)
			if err == nil && handler != nil && !authFailureSuppressed(req.Context()) &&
				(resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				handler.HandleAuthFailure(req.Context(), bearerToken(req), resp.StatusCode)
			}
			return resp, err
		})
	}
}

// RateLimit blocks until limiter admits the request. A nil limiter admits everything.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(next Doer) Doer {
		if limiter == nil {
			return next
		}
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, apperrors.ErrTransport.MsgErr("rate limit", err)
			}
			return next.Do(req)
		})
	}
}

func bearerToken(req *http.Request) string {
	return strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
}
