// Package auth implements the access token lifecycle: login and logout, the
// authentication probe, the current profile, and the revalidation timer that
// silently refreshes the token.
package auth

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/common/httpclient"
	"github.com/uparkt/parkadmin/internal/observability"
	"github.com/uparkt/parkadmin/internal/schema"
	"github.com/uparkt/parkadmin/internal/session"
)

// DefaultRequiredRole is the role a staff member needs to use the client.
const DefaultRequiredRole = "admin"

const logoutNotifyTimeout = 5 * time.Second

// Credentials identify a staff member at login. FBID is the optional push
// notification id of the device.
type Credentials struct {
	Login    string
	Password string
	FBID     string
}

// Me is the profile of the logged in staff member.
type Me struct {
	ID        int64            `json:"id" validate:"required"`
	Name      string           `json:"name"`
	Surname   string           `json:"surname"`
	Email     string           `json:"email"`
	Phone     string           `json:"phone"`
	PhotoPath string           `json:"photo_path"`
	Role      []string         `json:"role"`
	RegDate   schema.Timestamp `json:"reg_date"`
	Token     string           `json:"token"` // chat channel token
}

// HasRole reports whether the profile carries role.
func (m *Me) HasRole(role string) bool {
	return slices.Contains(m.Role, role)
}

// FullName joins name and surname.
func (m *Me) FullName() string {
	switch {
	case m.Name == "":
		return m.Surname
	case m.Surname == "":
		return m.Name
	}
	return m.Name + " " + m.Surname
}

type tokenResponse struct {
	Token string `json:"token" validate:"required"`
}

// ProfileUpdate carries the profile fields to change. Nil fields are left as they are.
type ProfileUpdate struct {
	Name    *string
	Surname *string
	Email   *string
	Phone   *string
}

// Options configures a Service.
type Options struct {
	RequiredRole       string
	RevalidateInterval time.Duration
}

// Service performs the authentication operations against the API.
type Service struct {
	public       httpclient.Requester
	private      httpclient.Requester
	store        session.Store
	scheduler    *Scheduler
	requiredRole string
}

// NewService creates the service and its revalidation scheduler.
func NewService(public, private httpclient.Requester, store session.Store, opts Options) *Service {
	s := &Service{
		public:       public,
		private:      private,
		store:        store,
		requiredRole: opts.RequiredRole,
	}
	if s.requiredRole == "" {
		s.requiredRole = DefaultRequiredRole
	}
	s.scheduler = NewScheduler(store, opts.RevalidateInterval, s.Revalidate)
	return s
}

// Scheduler returns the token revalidation scheduler.
func (s *Service) Scheduler() *Scheduler {
	return s.scheduler
}

// Login exchanges credentials for an access token. A rejected login leaves the
// session untouched. A user without the required role is logged out again and
// ErrPermission is returned.
func (s *Service) Login(ctx context.Context, c Credentials) (*Me, error) {
	body, _ := sjson.SetBytes([]byte(`{}`), "login", c.Login)
	body, _ = sjson.SetBytes(body, "password", HashPassword(c.Password))
	if c.FBID != "" {
		body, _ = sjson.SetBytes(body, "fbid", c.FBID)
	}

	rsp, err := s.public.Post(ctx, "/auth/login", body)
	if err != nil {
		return nil, err
	}
	tok, err := schema.Decode[tokenResponse](rsp)
	if err != nil {
		if apperrors.IsBusiness(err) {
			log.Info().Str("login", c.Login).Msg("login rejected")
			return nil, ErrLoginFailed.Msg(err.Error())
		}
		return nil, err
	}

	if err := s.store.Set(ctx, session.Session{AccessToken: tok.Token}); err != nil {
		return nil, apperrors.ErrTransport.MsgErr("unable to save session", err)
	}

	me, err := s.GetMe(ctx)
	if err != nil {
		s.EndSession(ctx)
		return nil, err
	}
	if !me.HasRole(s.requiredRole) {
		log.Info().Int64("user_id", me.ID).Strs("roles", me.Role).Msg("login without required role")
		s.EndSession(ctx)
		return nil, ErrPermission
	}

	s.scheduler.Schedule()
	log.Info().Int64("user_id", me.ID).Msg("logged in")
	return me, nil
}

// EndSession stops revalidation and clears the local session without telling the
// server.
func (s *Service) EndSession(ctx context.Context) {
	s.scheduler.Stop()
	if err := s.store.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("unable to clear session")
	}
}

// Logout stops the revalidation timer, tells the server when a token is held and
// clears the session. Notification failures are logged, never returned.
func (s *Service) Logout(ctx context.Context) error {
	s.scheduler.Stop()

	if session.Token(ctx, s.store) != "" {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutNotifyTimeout)
		if _, err := s.private.Post(nctx, "/auth/logout", nil); err != nil {
			log.Warn().Err(err).Msg("logout notification failed")
		}
		cancel()
	}

	if err := s.store.Clear(ctx); err != nil {
		return apperrors.ErrTransport.MsgErr("unable to clear session", err)
	}
	return nil
}

// IsAuthenticated reports whether a session exists and the server still accepts
// it. It never fails; any error counts as not authenticated. The probe does not
// trigger the authorization failure handler.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	if session.Token(ctx, s.store) == "" {
		return false
	}
	_, err := s.private.Get(httpclient.SuppressAuthFailure(ctx), "/users/get_me", map[string]string{
		"intention": "check_auth",
	})
	if err != nil {
		log.Debug().Err(err).Msg("authentication probe failed")
		return false
	}
	return true
}

// GetMe fetches the profile of the logged in user.
func (s *Service) GetMe(ctx context.Context) (*Me, error) {
	rsp, err := s.private.Get(ctx, "/users/get_me", nil)
	if err != nil {
		return nil, err
	}
	me, err := schema.Decode[Me](rsp)
	if err != nil {
		return nil, err
	}
	return &me, nil
}

// Revalidate obtains a fresh access token. On failure the user is logged out and
// the failure returned. A token issued after the session changed underneath the
// request is discarded.
func (s *Service) Revalidate(ctx context.Context) error {
	old := session.Token(ctx, s.store)

	rsp, err := s.private.Post(ctx, "/auth/reload_access", nil)
	var tok tokenResponse
	if err == nil {
		tok, err = schema.Decode[tokenResponse](rsp)
	}
	if err != nil {
		observability.TokenRevalidationsTotal.WithLabelValues("failure").Inc()
		if lerr := s.Logout(ctx); lerr != nil {
			log.Warn().Err(lerr).Msg("logout after failed revalidation")
		}
		return err
	}

	if cur := session.Token(ctx, s.store); cur != old {
		observability.TokenRevalidationsTotal.WithLabelValues("discarded").Inc()
		log.Debug().Msg("session changed during revalidation, discarding token")
		return nil
	}
	if err := s.store.Set(ctx, session.Session{AccessToken: tok.Token}); err != nil {
		return apperrors.ErrTransport.MsgErr("unable to save session", err)
	}
	observability.TokenRevalidationsTotal.WithLabelValues("success").Inc()
	if exp, ok := TokenExpiry(tok.Token); ok {
		log.Debug().Time("expires", exp).Msg("access token revalidated")
	}
	return nil
}

// UpdateMe changes the provided profile fields.
func (s *Service) UpdateMe(ctx context.Context, u ProfileUpdate) error {
	body := []byte(`{}`)
	for field, v := range map[string]*string{
		"name":    u.Name,
		"surname": u.Surname,
		"email":   u.Email,
		"phone":   u.Phone,
	} {
		if v != nil {
			body, _ = sjson.SetBytes(body, field, *v)
		}
	}
	return s.putMe(ctx, body)
}

// ChangePassword replaces the password of the logged in user.
func (s *Service) ChangePassword(ctx context.Context, last, next string) error {
	body, _ := sjson.SetBytes([]byte(`{}`), "last_password", HashPassword(last))
	body, _ = sjson.SetBytes(body, "password", HashPassword(next))
	return s.putMe(ctx, body)
}

func (s *Service) putMe(ctx context.Context, body []byte) error {
	rsp, err := s.private.Put(ctx, "/users/update_me", body)
	if err != nil {
		return err
	}
	if err := schema.Envelope(rsp); err != nil {
		if apperrors.IsBusiness(err) {
			return ErrUpdateFailed.Msg(err.Error())
		}
		return err
	}
	return nil
}
