package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/common/logtrace"
	"github.com/uparkt/parkadmin/internal/observability"
	"github.com/uparkt/parkadmin/internal/session"
)

type recorded struct {
	auth      string
	requestID string
	hits      atomic.Int32
}

func newRouter(rec *recorded) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec.hits.Add(1)
			rec.auth = req.Header.Get("Authorization")
			rec.requestID = req.Header.Get(RequestIDHeader)
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/api/v1.0/users/get_me", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"status":true,"id":` + req.URL.Query().Get("id_user") + `}`))
	})
	r.Post("/api/v1.0/auth/reload_access", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":false,"message":"token expired"}`))
	})
	r.Delete("/api/v1.0/orders/car/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"database unavailable"}`))
	})
	r.Post("/api/v1.0/files/upload_files", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var names []string
		for _, fh := range req.MultipartForm.File["files"] {
			f, _ := fh.Open()
			data, _ := io.ReadAll(f)
			f.Close()
			names = append(names, `"`+fh.Filename+":"+string(data)+`"`)
		}
		w.Write([]byte(`{"files_path":[` + strings.Join(names, ",") + `]}`))
	})
	return r
}

type authEvents struct {
	tokens   []string
	statuses []int
}

func (a *authEvents) HandleAuthFailure(_ context.Context, token string, status int) {
	a.tokens = append(a.tokens, token)
	a.statuses = append(a.statuses, status)
}

func newTestPair(t *testing.T, mode MissingTokenMode) (*Pair, *recorded, session.Store, *authEvents) {
	t.Helper()
	rec := &recorded{}
	store := session.NewMemoryStore()
	events := &authEvents{}
	pair, err := NewPair(Options{
		BaseURL:      "https://server.uparkt.ru",
		Prefix:       "/api/v1.0",
		Transport:    HandlerDoer(newRouter(rec)),
		MissingToken: mode,
	}, store, events)
	require.NoError(t, err)
	return pair, rec, store, events
}

func TestPublicClient(t *testing.T) {
	pair, rec, store, _ := newTestPair(t, FailFast)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, session.Session{AccessToken: "T"}))

	before := testutil.ToFloat64(observability.HTTPClientRequestsTotal.WithLabelValues("public", "GET", "200"))
	body, err := pair.Public.Get(logtrace.WithRequestID(ctx, "req-1"), "/users/get_me", map[string]string{"id_user": "7"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":true,"id":7}`, string(body))
	assert.Empty(t, rec.auth)
	assert.Equal(t, "req-1", rec.requestID)
	assert.Equal(t, before+1, testutil.ToFloat64(observability.HTTPClientRequestsTotal.WithLabelValues("public", "GET", "200")))
}

func TestPrivateClient(t *testing.T) {
	ctx := context.Background()

	t.Run("bearer token", func(t *testing.T) {
		pair, rec, store, _ := newTestPair(t, FailFast)
		require.NoError(t, store.Set(ctx, session.Session{AccessToken: "T1"}))
		_, err := pair.Private.Get(ctx, "/users/get_me", nil)
		require.NoError(t, err)
		assert.Equal(t, "Bearer T1", rec.auth)
		assert.NotEmpty(t, rec.requestID)

		require.NoError(t, store.Set(ctx, session.Session{AccessToken: "T2"}))
		_, err = pair.Private.Get(ctx, "/users/get_me", nil)
		require.NoError(t, err)
		assert.Equal(t, "Bearer T2", rec.auth)
	})

	t.Run("missing token fails locally", func(t *testing.T) {
		pair, rec, _, events := newTestPair(t, FailFast)
		_, err := pair.Private.Get(ctx, "/users/get_me", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNoSession)
		assert.True(t, apperrors.IsUnauthorized(err))
		assert.False(t, apperrors.Retryable(err))
		assert.Zero(t, rec.hits.Load())
		assert.Empty(t, events.tokens)
	})

	t.Run("missing token sent anonymously", func(t *testing.T) {
		pair, rec, _, _ := newTestPair(t, SendAnonymous)
		_, err := pair.Private.Get(ctx, "/users/get_me", nil)
		require.NoError(t, err)
		assert.Equal(t, int32(1), rec.hits.Load())
		assert.Empty(t, rec.auth)
	})

	t.Run("401 is reported and rethrown", func(t *testing.T) {
		pair, _, store, events := newTestPair(t, FailFast)
		require.NoError(t, store.Set(ctx, session.Session{AccessToken: "OLD"}))
		_, err := pair.Private.Post(ctx, "/auth/reload_access", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsUnauthorized(err))
		assert.False(t, apperrors.IsTransport(err))
		assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
		assert.Equal(t, "token expired", err.Error())
		assert.Equal(t, []string{"OLD"}, events.tokens)
		assert.Equal(t, []int{http.StatusUnauthorized}, events.statuses)
	})

	t.Run("suppressed 401 is not reported", func(t *testing.T) {
		pair, _, store, events := newTestPair(t, FailFast)
		require.NoError(t, store.Set(ctx, session.Session{AccessToken: "OLD"}))
		_, err := pair.Private.Post(SuppressAuthFailure(ctx), "/auth/reload_access", nil)
		assert.True(t, apperrors.IsUnauthorized(err))
		assert.Empty(t, events.tokens)
	})

	t.Run("server error", func(t *testing.T) {
		pair, _, store, events := newTestPair(t, FailFast)
		require.NoError(t, store.Set(ctx, session.Session{AccessToken: "T"}))
		_, err := pair.Private.Delete(ctx, "/orders/car/3")
		require.Error(t, err)
		assert.True(t, apperrors.IsTransport(err))
		assert.True(t, apperrors.Retryable(err))
		assert.Equal(t, "database unavailable", err.Error())
		assert.Equal(t, "failed to load", apperrors.UserMessage(err))
		assert.Empty(t, events.tokens)
	})

	t.Run("upload", func(t *testing.T) {
		pair, _, store, _ := newTestPair(t, FailFast)
		require.NoError(t, store.Set(ctx, session.Session{AccessToken: "T"}))
		body, err := pair.Private.Upload(ctx, "/files/upload_files", "files", []File{
			{Name: "img.png", Data: []byte("a")},
			{Name: "img.jpg", Data: []byte("b")},
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"files_path":["img.png:a","img.jpg:b"]}`, string(body))
	})
}

func TestTransportFailure(t *testing.T) {
	failing := DoerFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	c, err := NewClient("public", "https://server.uparkt.ru", "/api/v1.0", failing)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/static_data/service", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
	assert.Equal(t, 0, StatusCode(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ = NewClient("public", "https://server.uparkt.ru", "", HandlerDoer(http.NotFoundHandler()))
	_, err = c.Get(ctx, "/", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperrors.Retryable(err))

	_, err = NewClient("public", "::not a url", "", failing)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Doer) Doer {
			return DoerFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name+">")
				resp, err := next.Do(req)
				order = append(order, "<"+name)
				return resp, err
			})
		}
	}
	d := Chain(HandlerDoer(http.NotFoundHandler()), mark("a"), mark("b"))
	req, _ := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	_, err := d.Do(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a>", "b>", "<b", "<a"}, order)
}

func TestURL(t *testing.T) {
	c, err := NewClient("public", "https://server.uparkt.ru/", "/api/v1.0", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://server.uparkt.ru/api/v1.0/users/get_me?id_user=5&intention=check_auth",
		c.URL(RequestOptions{Path: "users/get_me", QueryParams: map[string]string{"intention": "check_auth", "id_user": "5"}}))
}
