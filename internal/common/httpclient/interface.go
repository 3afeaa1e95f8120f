// Package httpclient provides the public and private HTTP clients used to talk to the
// parking API. A client is a base address plus a chain of middlewares wrapped around
// a Doer. The private chain injects the bearer token and reports authorization
// failures; the public chain does neither.
package httpclient

import (
	"context"
	"net/http"
)

// Doer executes a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware decorates a Doer.
type Middleware func(next Doer) Doer

// Chain wraps base with mws. The first middleware is the outermost, so it sees the
// request first and the response last.
func Chain(base Doer, mws ...Middleware) Doer {
	d := base
	for i := len(mws) - 1; i >= 0; i-- {
		d = mws[i](d)
	}
	return d
}

// Requester is implemented by Client. Consumers depend on it so tests can
// substitute their own.
type Requester interface {
	DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error)
	Get(ctx context.Context, path string, query map[string]string) ([]byte, error)
	Post(ctx context.Context, path string, body []byte) ([]byte, error)
	Put(ctx context.Context, path string, body []byte) ([]byte, error)
	Delete(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path, field string, files []File) ([]byte, error)
}

// AuthFailureHandler is told about 401/403 responses seen by the private client.
// token is the bearer token the failed request carried.
type AuthFailureHandler interface {
	HandleAuthFailure(ctx context.Context, token string, status int)
}

// AuthFailureFunc adapts a function to AuthFailureHandler.
type AuthFailureFunc func(ctx context.Context, token string, status int)

func (f AuthFailureFunc) HandleAuthFailure(ctx context.Context, token string, status int) {
	f(ctx, token, status)
}

var _ Requester = &Client{}
