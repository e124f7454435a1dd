// Package session holds the authenticated context of a trader: the bearer
// credential, its expiry and the resolved profile. A Session value is passed
// explicitly to every request-issuing call.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/platform/averix"
	"github.com/golang-jwt/jwt/v5"
)

// Session is an immutable snapshot of the authenticated context.
type Session struct {
	Credential averix.Credential
	ExpiresAt  time.Time // zero when the credential carries no exp claim
	Profile    *domain.UserProfile
}

// Authenticated reports whether a credential is present.
func (s Session) Authenticated() bool {
	return s.Credential != ""
}

// Expired reports whether the credential's exp claim has passed at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// API is the subset of the backend client the session needs.
type API interface {
	Register(ctx context.Context, req averix.RegisterRequest) (averix.AuthResponse, error)
	Login(ctx context.Context, email, password string) (averix.AuthResponse, error)
	GetProfile(ctx context.Context, cred averix.Credential) (domain.UserProfile, error)
}

// Manager owns the current Session and its persisted credential.
type Manager struct {
	api    API
	store  domain.CredentialStore
	key    string
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	current  Session
	onExpire []func()
	onChange []func()
}

// NewManager creates a Manager persisting its credential in store under key.
func NewManager(api API, store domain.CredentialStore, key string, logger *slog.Logger) *Manager {
	return &Manager{
		api:    api,
		store:  store,
		key:    key,
		logger: logger.With(slog.String("component", "session")),
		now:    time.Now,
	}
}

// OnExpire registers fn to run whenever the session is cleared because the
// backend rejected the credential.
func (m *Manager) OnExpire(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = append(m.onExpire, fn)
}

// OnChange registers fn to run after login, register or logout replaces the
// session. Hooks run outside the Manager's lock.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Current returns the current session snapshot.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Login authenticates with email and password and persists the credential.
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return Session{}, fmt.Errorf("session: login: %w", err)
	}
	return m.establish(ctx, resp)
}

// Register creates an account and persists its first credential.
func (m *Manager) Register(ctx context.Context, req averix.RegisterRequest) (Session, error) {
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		return Session{}, fmt.Errorf("session: register: %w", err)
	}
	return m.establish(ctx, resp)
}

// Restore loads the stored credential and resolves its profile. A credential
// the backend rejects, or one whose exp has passed, is removed and
// ErrNotAuthenticated is returned.
func (m *Manager) Restore(ctx context.Context) (Session, error) {
	token, err := m.store.Load(ctx, m.key)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, domain.ErrNotAuthenticated
	}
	if err != nil {
		return Session{}, fmt.Errorf("session: load credential: %w", err)
	}

	sess := Session{
		Credential: averix.Credential(token),
		ExpiresAt:  expiryOf(token),
	}
	if sess.Expired(m.now()) {
		m.logger.InfoContext(ctx, "stored credential expired",
			slog.Time("expires_at", sess.ExpiresAt),
		)
		m.clear(ctx)
		return Session{}, domain.ErrNotAuthenticated
	}

	profile, err := m.api.GetProfile(ctx, sess.Credential)
	if errors.Is(err, domain.ErrUnauthorized) {
		m.Expire(ctx)
		return Session{}, fmt.Errorf("session: restore: %w", domain.ErrNotAuthenticated)
	}

	m.mu.Lock()
	m.current = sess
	if err == nil {
		m.current.Profile = &profile
	}
	out := m.current
	m.mu.Unlock()

	if err != nil {
		// Keep the credential; the profile is fetched again by the dashboard.
		m.logger.WarnContext(ctx, "profile fetch failed", slog.String("error", err.Error()))
		return out, fmt.Errorf("session: restore profile: %w", err)
	}
	return out, nil
}

// Logout removes the stored credential and clears the session.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.current = Session{}
	hooks := slices.Clone(m.onChange)
	m.mu.Unlock()
	runHooks(hooks)

	if err := m.store.Delete(ctx, m.key); err != nil {
		return fmt.Errorf("session: delete credential: %w", err)
	}
	return nil
}

// Expire clears the session after the backend rejected its credential and
// runs the OnExpire hooks.
func (m *Manager) Expire(ctx context.Context) {
	m.logger.WarnContext(ctx, "credential rejected by backend; clearing session")
	m.clear(ctx)

	m.mu.RLock()
	hooks := slices.Clone(m.onExpire)
	m.mu.RUnlock()
	runHooks(hooks)
}

// SetProfile replaces the resolved profile of the session holding cred. It
// is a no-op when cred is not the current credential.
func (m *Manager) SetProfile(cred averix.Credential, p domain.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.Authenticated() || m.current.Credential != cred {
		return
	}
	m.current.Profile = &p
}

func (m *Manager) establish(ctx context.Context, resp averix.AuthResponse) (Session, error) {
	if resp.AccessToken == "" {
		return Session{}, errors.New("session: backend returned an empty access token")
	}
	if err := m.store.Save(ctx, m.key, resp.AccessToken); err != nil {
		return Session{}, fmt.Errorf("session: save credential: %w", err)
	}

	user := resp.User
	sess := Session{
		Credential: averix.Credential(resp.AccessToken),
		ExpiresAt:  expiryOf(resp.AccessToken),
		Profile:    &user,
	}

	m.mu.Lock()
	m.current = sess
	hooks := slices.Clone(m.onChange)
	m.mu.Unlock()
	runHooks(hooks)

	m.logger.InfoContext(ctx, "session established",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", sess.ExpiresAt),
	)
	return sess, nil
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	m.current = Session{}
	m.mu.Unlock()

	if err := m.store.Delete(ctx, m.key); err != nil {
		m.logger.WarnContext(ctx, "delete credential failed", slog.String("error", err.Error()))
	}
}

func runHooks(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}

// expiryOf reads the exp claim without verifying the signature; the backend
// remains the only verifier. Opaque tokens yield the zero time.
func expiryOf(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time.UTC()
}
