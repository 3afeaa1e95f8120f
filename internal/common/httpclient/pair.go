package httpclient

import (
	"net/http"
	"time"

	"github.com/uparkt/parkadmin/internal/session"
	"golang.org/x/time/rate"
)

// Options configures a client pair.
type Options struct {
	BaseURL      string
	Prefix       string
	Timeout      time.Duration
	Transport    Doer // defaults to an *http.Client with Timeout
	Limiter      *rate.Limiter
	MissingToken MissingTokenMode
}

// Pair holds the public and private clients for one API origin.
type Pair struct {
	Public  *Client
	Private *Client
}

// NewPair builds both clients over the same base address. The private client
// reads the token from store on every request and reports 401/403 to handler.
func NewPair(opts Options, store session.Store, handler AuthFailureHandler) (*Pair, error) {
	base := opts.Transport
	if base == nil {
		base = &http.Client{Timeout: opts.Timeout}
	}

	public, err := NewClient("public", opts.BaseURL, opts.Prefix, Chain(base,
		RequestID(),
		Instrument("public"),
	))
	if err != nil {
		return nil, err
	}

	private, err := NewClient("private", opts.BaseURL, opts.Prefix, Chain(base,
		RequestID(),
		Instrument("private"),
		BearerAuth(store, opts.MissingToken),
		AuthFailure(handler),
		RateLimit(opts.Limiter),
	))
	if err != nil {
		return nil, err
	}

	return &Pair{Public: public, Private: private}, nil
}
