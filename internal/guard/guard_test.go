package guard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uparkt/parkadmin/internal/auth"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/common/httpclient"
	"github.com/uparkt/parkadmin/internal/session"
	"github.com/uparkt/parkadmin/internal/testutil"
)

type recorder struct {
	mu   sync.Mutex
	locs []Location
}

func (r *recorder) Navigate(_ context.Context, to Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locs = append(r.locs, to)
}

func (r *recorder) all() []Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Location(nil), r.locs...)
}

type fixture struct {
	api          *testutil.FakeAPI
	store        session.Store
	svc          *auth.Service
	pair         *httpclient.Pair
	nav          *recorder
	guard        *Guard
	gateRedirect atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		api:   testutil.NewFakeAPI(t),
		store: session.NewMemoryStore(),
		nav:   &recorder{},
	}
	var gate *auth.FailureGate
	pair, err := httpclient.NewPair(httpclient.Options{
		BaseURL: f.api.URL(),
		Prefix:  testutil.Prefix,
		Timeout: 5 * time.Second,
	}, f.store, httpclient.AuthFailureFunc(func(ctx context.Context, token string, status int) {
		gate.HandleAuthFailure(ctx, token, status)
	}))
	require.NoError(t, err)
	f.pair = pair
	f.svc = auth.NewService(pair.Public, pair.Private, f.store, auth.Options{RevalidateInterval: time.Hour})
	gate = auth.NewFailureGate(f.store, f.svc.Scheduler(), func(context.Context) { f.gateRedirect.Add(1) })
	f.guard = New(f.svc, f.nav)
	t.Cleanup(f.svc.Scheduler().Stop)
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.svc.Login(context.Background(), auth.Credentials{Login: f.api.Login, Password: f.api.Password})
	require.NoError(t, err)
}

func (f *fixture) prefetchUser(id string) Prefetch {
	return func(ctx context.Context) error {
		_, err := f.pair.Private.Get(ctx, "/users/get_me", map[string]string{"id_user": id})
		return err
	}
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "/login", Location{Path: "/login"}.String())
	assert.Equal(t, "/login?redirect=%2Fusers%2F10", Location{Path: "/login", Redirect: "/users/10"}.String())
}

func TestEnter(t *testing.T) {
	ctx := context.Background()

	t.Run("no session redirects with return target", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Set(ctx, session.Session{AccessToken: "unknown"}))
		d, err := f.guard.Enter(ctx, "/users/10", nil)
		require.NoError(t, err)
		assert.Equal(t, Redirecting, d)
		assert.Equal(t, []Location{{Path: "/login", Redirect: "/users/10"}}, f.nav.all())
		assert.Equal(t, "", session.Token(ctx, f.store))
		assert.Equal(t, int32(0), f.gateRedirect.Load())
	})

	t.Run("authenticated without prefetch", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		d, err := f.guard.Enter(ctx, "/users", nil)
		require.NoError(t, err)
		assert.Equal(t, Allowed, d)
		assert.Empty(t, f.nav.all())
	})

	t.Run("prefetch success", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		d, err := f.guard.Enter(ctx, "/users/10", f.prefetchUser("10"))
		require.NoError(t, err)
		assert.Equal(t, Allowed, d)
	})

	t.Run("prefetch 401 redirects once", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		f.api.Fail("GET /users/get_me", testutil.Reply{Status: http.StatusOK, Body: `{"status":true,"id":1,"role":["admin"]}`},
			testutil.Reply{Status: http.StatusUnauthorized, Body: `{"message":"token expired"}`})
		d, err := f.guard.Enter(ctx, "/users/10", f.prefetchUser("10"))
		require.NoError(t, err)
		assert.Equal(t, Redirecting, d)
		assert.Len(t, f.nav.all(), 1)
		assert.Equal(t, int32(0), f.gateRedirect.Load())
		assert.Equal(t, "", session.Token(ctx, f.store))
		assert.False(t, f.svc.Scheduler().Running())
	})

	t.Run("other prefetch failures are load failures", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		f.api.Fail("GET /users/get_me", testutil.Reply{Status: http.StatusOK, Body: `{"status":true,"id":1,"role":["admin"]}`},
			testutil.Reply{Status: http.StatusInternalServerError, Body: `{"message":"db down"}`})
		d, err := f.guard.Enter(ctx, "/users/10", f.prefetchUser("10"))
		assert.Equal(t, Failed, d)
		assert.ErrorIs(t, err, apperrors.ErrLoadFailed)
		assert.Equal(t, http.StatusInternalServerError, httpclient.StatusCode(err))
		assert.Equal(t, "failed to load", apperrors.UserMessage(err))
		assert.Empty(t, f.nav.all())
		assert.NotEmpty(t, session.Token(ctx, f.store))
	})

	t.Run("malformed prefetch payload reads as invalid data", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		f.api.Fail("GET /users/get_me", testutil.Reply{Status: http.StatusOK, Body: `{"status":true,"id":1,"role":["admin"]}`},
			testutil.Reply{Status: http.StatusOK, Body: `{"status":true,"id":"ten","role":["admin"]}`})
		d, err := f.guard.Enter(ctx, "/users/10", func(ctx context.Context) error {
			_, err := f.svc.GetMe(ctx)
			return err
		})
		assert.Equal(t, Failed, d)
		assert.ErrorIs(t, err, apperrors.ErrLoadFailed)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "invalid data", apperrors.UserMessage(err))
		assert.Empty(t, f.nav.all())
	})

	t.Run("prefetch error that is not an http failure", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		cause := errors.New("decode")
		d, err := f.guard.Enter(ctx, "/chats", func(context.Context) error { return cause })
		assert.Equal(t, Failed, d)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("login view is not its own return target", func(t *testing.T) {
		f := newFixture(t)
		d, _ := f.guard.Enter(ctx, LoginPath, nil)
		assert.Equal(t, Redirecting, d)
		assert.Equal(t, []Location{{Path: "/login"}}, f.nav.all())
	})
}
