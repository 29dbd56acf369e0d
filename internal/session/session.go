// Package session owns the bearer token and the current user profile.
//
// A Manager is created once by the composition root and passed explicitly
// to everything that needs the credential. Restore must be called exactly
// once at startup; until it returns, IsLoaded reports false and the session
// must not be treated as usable.
//
// The observable states are:
//
//	UNINITIALIZED --Restore--> LOADED_UNAUTHENTICATED | LOADED_AUTHENTICATED
//	LOADED_AUTHENTICATED   --Logout, profile fetch failure--> LOADED_UNAUTHENTICATED
//	LOADED_UNAUTHENTICATED --Login, LoginWithGoogle-------> LOADED_AUTHENTICATED
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"todo/internal/keystore"
	"todo/internal/service"
)

// TokenKey is the key store entry holding the persisted bearer token.
const TokenKey = "auth_token"

// ErrNotAuthenticated is returned by operations that need a token when the
// session has none.
var ErrNotAuthenticated = errors.New("not authenticated")

// IdentityProvider obtains an ID token from a third-party identity provider.
type IdentityProvider interface {
	IDToken(ctx context.Context) (string, error)
}

// Manager is the single source of truth for who is logged in.
// It is safe for concurrent use.
type Manager struct {
	backend  service.Service
	keys     keystore.Store
	provider IdentityProvider
	logger   *slog.Logger

	mu        sync.Mutex
	token     string
	user      *service.User
	loaded    bool
	listeners []func(context.Context)
}

// Option configures a Manager.
type Option func(*Manager)

// WithIdentityProvider enables LoginWithGoogle.
func WithIdentityProvider(p IdentityProvider) Option {
	return func(m *Manager) { m.provider = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New creates a Manager in the UNINITIALIZED state.
func New(backend service.Service, keys keystore.Store, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		keys:    keys,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnTokenAcquired registers fn to run after every committed transition of
// the token from absent to present. fn runs on the goroutine that caused
// the transition, before that operation returns.
func (m *Manager) OnTokenAcquired(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Token returns the current bearer token.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != ""
}

// User returns the current user's profile.
func (m *Manager) User() (service.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return service.User{}, false
	}
	return *m.user, true
}

// IsAuthenticated reports whether a user profile is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// IsLoaded reports whether the first restore attempt has completed.
func (m *Manager) IsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Restore loads the persisted token and, if there is one, fetches its
// profile. A missing or unreadable token leaves the session
// unauthenticated without any network call.
func (m *Manager) Restore(ctx context.Context) {
	token, err := m.keys.Get(ctx, TokenKey)
	if err != nil {
		if !errors.Is(err, keystore.ErrNotFound) {
			m.logger.Warn("reading stored token failed", "error", err)
		}
		m.markLoaded()
		return
	}
	token = strings.TrimSpace(token)
	if token == "" {
		m.markLoaded()
		return
	}
	m.logger.Debug("restoring session")
	m.adopt(ctx, token)
}

// Login exchanges email and password for a session.
// It returns false if the credentials are rejected, the request fails, or
// the response has no usable token; the session is then unchanged.
// On success the token is persisted before the profile is fetched, and the
// result reports whether the session ended up authenticated.
func (m *Manager) Login(ctx context.Context, email, password string) bool {
	tok, err := m.backend.Login(ctx, email, password)
	if err != nil {
		m.logger.Debug("login failed", "email", email, "error", err)
		return false
	}
	return m.establish(ctx, tok, "password")
}

// LoginWithGoogle obtains an ID token from the identity provider and
// exchanges it for a session, like Login.
func (m *Manager) LoginWithGoogle(ctx context.Context) bool {
	if m.provider == nil {
		m.logger.Debug("google login unavailable: no identity provider")
		return false
	}
	idToken, err := m.provider.IDToken(ctx)
	if err != nil {
		m.logger.Debug("identity provider failed", "error", err)
		return false
	}
	if strings.TrimSpace(idToken) == "" {
		m.logger.Debug("identity provider returned no id token")
		return false
	}
	tok, err := m.backend.LoginGoogle(ctx, idToken)
	if err != nil {
		m.logger.Debug("google token exchange failed", "error", err)
		return false
	}
	return m.establish(ctx, tok, "google")
}

// Register creates an account and returns its profile. It does not log in;
// call Login afterwards for an authenticated session.
func (m *Manager) Register(ctx context.Context, email, password string) (service.User, bool) {
	user, err := m.backend.Register(ctx, email, password)
	if err != nil {
		m.logger.Debug("registration failed", "email", email, "error", err)
		return service.User{}, false
	}
	return user, true
}

// Logout clears the session and removes the persisted token. It is
// idempotent. The in-memory state is cleared even when removing the
// persisted token fails; that error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()

	if err := m.keys.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("remove stored token: %w", err)
	}
	return nil
}

// UpdateProfile sends the given fields and replaces the local profile with
// the server's response. Nothing changes locally if the call fails.
func (m *Manager) UpdateProfile(ctx context.Context, update service.ProfileUpdate) (service.User, error) {
	token, ok := m.Token()
	if !ok {
		return service.User{}, ErrNotAuthenticated
	}

	user, err := m.backend.UpdateProfile(ctx, token, update)
	if err != nil {
		return service.User{}, fmt.Errorf("update profile: %w", err)
	}

	m.mu.Lock()
	if m.token == token {
		m.user = &user
	}
	m.mu.Unlock()
	return user, nil
}

// establish persists a freshly issued token and adopts it.
func (m *Manager) establish(ctx context.Context, tok service.AuthToken, method string) bool {
	token := strings.TrimSpace(tok.AccessToken)
	if token == "" {
		m.logger.Debug("login response has no access token", "method", method)
		return false
	}
	if err := m.keys.Set(ctx, TokenKey, token); err != nil {
		m.logger.Warn("persisting token failed", "method", method, "error", err)
		return false
	}
	ok := m.adopt(ctx, token)
	if ok {
		m.logger.Debug("logged in", "method", method)
	}
	return ok
}

// adopt makes token the in-memory credential, fetches its profile and, on
// an absent-to-present transition, notifies listeners.
func (m *Manager) adopt(ctx context.Context, token string) bool {
	m.mu.Lock()
	hadToken := m.token != ""
	if m.token != token {
		m.user = nil
	}
	m.token = token
	m.mu.Unlock()

	if !m.fetchProfile(ctx, token) {
		return false
	}
	if !hadToken {
		m.notify(ctx)
	}
	return true
}

// fetchProfile loads the profile for token. Any failure invalidates the
// session: token and user are cleared and the persisted token is removed.
// The session is marked loaded in every case.
func (m *Manager) fetchProfile(ctx context.Context, token string) bool {
	user, err := m.backend.Me(ctx, token)

	m.mu.Lock()
	m.loaded = true
	if m.token != token {
		// Superseded by Logout or another login while the fetch was in flight.
		m.mu.Unlock()
		return false
	}
	if err != nil {
		m.token = ""
		m.user = nil
		m.mu.Unlock()

		m.logger.Warn("session invalidated: profile fetch failed", "error", err)
		if derr := m.keys.Delete(ctx, TokenKey); derr != nil {
			m.logger.Warn("removing stored token failed", "error", derr)
		}
		return false
	}
	m.user = &user
	m.mu.Unlock()
	return true
}

func (m *Manager) markLoaded() {
	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()
}

func (m *Manager) notify(ctx context.Context) {
	m.mu.Lock()
	listeners := make([]func(context.Context), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx)
	}
}
