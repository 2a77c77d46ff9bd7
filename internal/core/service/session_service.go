package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/laundrydesk/opsync/internal/core/domain"
	"github.com/laundrydesk/opsync/internal/core/ports"
	"github.com/laundrydesk/opsync/internal/metrics"
)

// SessionService owns the single active identity and its bearer credential.
// It is the token source of the authenticated gateway.
type SessionService struct {
	auth   ports.AuthAPI
	store  ports.CredentialStore
	caches []ports.Resetter
	log    zerolog.Logger

	mu        sync.RWMutex
	session   *domain.Session
	refreshes singleflight.Group
}

// NewSessionService returns a logged-out session. caches are emptied on logout.
func NewSessionService(auth ports.AuthAPI, store ports.CredentialStore, log zerolog.Logger, caches ...ports.Resetter) *SessionService {
	return &SessionService{auth: auth, store: store, caches: caches, log: log}
}

// Login authenticates against the backend. On any failure the session is left
// exactly as it was; on success every cache is emptied before the new identity
// is installed.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, domain.NewValidationError("email", "is required")
	}
	if password == "" {
		return nil, domain.NewValidationError("password", "is required")
	}

	res, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if res.Token == "" {
		return nil, fmt.Errorf("login: backend returned no token: %w", domain.ErrUnauthorized)
	}

	user, err := normalizeUser(res.User)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	// A new identity never inherits the previous one's caches.
	for _, c := range s.caches {
		c.Reset()
	}

	sess := &domain.Session{User: user, Token: res.Token, ExpiresAt: credentialExpiry(res.Token)}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.persist(ctx, sess)
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("logged in")

	return &user, nil
}

// Logout clears the credential, the identity, persisted storage and every
// cached registry. Calling it on a logged-out session is a no-op apart from
// re-clearing storage.
func (s *SessionService) Logout(ctx context.Context) {
	s.mu.Lock()
	was := s.session
	s.session = nil
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear stored credential")
	}
	for _, c := range s.caches {
		c.Reset()
	}

	if was != nil {
		s.log.Info().Str("user_id", was.User.ID).Msg("logged out")
	}
}

// Refresh exchanges the current credential for a new one. On failure the
// session is torn down and the error wraps domain.ErrSessionExpired.
func (s *SessionService) Refresh(ctx context.Context) (string, error) {
	return s.RefreshFrom(ctx, s.Token())
}

// RefreshFrom renews sent, the credential a rejected call was made with.
// Callers holding the same credential share one backend call. If the session
// already moved past sent, the current credential is returned without a
// refresh, so a late 401 never rotates a credential another call is using.
func (s *SessionService) RefreshFrom(ctx context.Context, sent string) (string, error) {
	current := s.Token()
	if current == "" || sent == "" {
		return "", domain.ErrNotAuthenticated
	}
	if current != sent {
		s.log.Debug().Msg("credential already refreshed")
		return current, nil
	}

	v, err, shared := s.refreshes.Do(sent, func() (any, error) {
		return s.refresh(ctx, sent)
	})
	if shared {
		s.log.Debug().Msg("joined in-flight refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *SessionService) refresh(ctx context.Context, stale string) (string, error) {
	res, err := s.auth.Refresh(ctx, stale)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		s.log.Warn().Err(err).Msg("credential refresh failed, logging out")
		s.Logout(ctx)
		return "", fmt.Errorf("refresh: %w: %w", domain.ErrSessionExpired, err)
	}
	if res.Token == "" {
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		s.Logout(ctx)
		return "", fmt.Errorf("refresh: backend returned no token: %w", domain.ErrSessionExpired)
	}

	s.mu.Lock()
	if s.session == nil || s.session.Token != stale {
		// Logged out (or logged in again) while the refresh was in flight.
		s.mu.Unlock()
		return "", domain.ErrNotAuthenticated
	}
	next := *s.session
	next.Token = res.Token
	next.ExpiresAt = credentialExpiry(res.Token)
	if res.User != nil {
		user, err := normalizeUser(*res.User)
		if err != nil {
			s.mu.Unlock()
			s.Logout(ctx)
			return "", fmt.Errorf("refresh: %w: %w", domain.ErrSessionExpired, err)
		}
		next.User = user
	}
	s.session = &next
	s.mu.Unlock()

	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	s.persist(ctx, &next)
	s.log.Debug().Time("expires_at", next.ExpiresAt).Msg("credential refreshed")

	return next.Token, nil
}

// LoadUser restores a session from persisted storage. Any failure clears
// storage and leaves the session logged out; the error is returned for logging.
func (s *SessionService) LoadUser(ctx context.Context) error {
	cred, err := s.store.Load(ctx)
	if err != nil {
		s.Logout(ctx)
		return fmt.Errorf("load user: read storage: %w", err)
	}
	if cred == nil || cred.Token == "" {
		return nil
	}

	me, err := s.auth.Me(ctx, cred.Token)
	if err != nil {
		s.Logout(ctx)
		return fmt.Errorf("load user: %w", err)
	}
	user, err := normalizeUser(*me)
	if err != nil {
		s.Logout(ctx)
		return fmt.Errorf("load user: %w", err)
	}

	sess := &domain.Session{User: user, Token: cred.Token, ExpiresAt: credentialExpiry(cred.Token)}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.persist(ctx, sess)
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("session restored")
	return nil
}

// Current returns a copy of the active session, or nil when logged out.
func (s *SessionService) Current() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Token returns the current bearer credential, or "" when logged out.
func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

// Authenticated reports whether a credential is held.
func (s *SessionService) Authenticated() bool {
	return s.Token() != ""
}

// HasRole reports whether the active identity holds one of roles.
func (s *SessionService) HasRole(roles ...domain.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.HasRole(roles...)
}

func (s *SessionService) persist(ctx context.Context, sess *domain.Session) {
	user := sess.User
	if err := s.store.Save(ctx, ports.StoredCredential{Token: sess.Token, User: &user}); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist credential")
	}
}

func normalizeUser(u domain.User) (domain.User, error) {
	role, err := domain.ParseRole(string(u.Role))
	if err != nil {
		return domain.User{}, fmt.Errorf("%w %q", err, u.Role)
	}
	u.Role = role
	u.Email = strings.TrimSpace(u.Email)
	return u, nil
}

// credentialExpiry reads the exp claim of a JWT bearer token without
// verifying it. Opaque tokens yield the zero time.
func credentialExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
