package session_test

import (
	"context"
	"errors"
	"testing"

	"todo/internal/service"
	"todo/internal/session"
	"todo/internal/testutil"
)

const (
	email    = "ana@example.com"
	password = "secret"
)

func newManager(t *testing.T, svc *testutil.FakeService, keys *testutil.MemStore, opts ...session.Option) *session.Manager {
	t.Helper()
	return session.New(svc, keys, opts...)
}

func TestRestore_NoStoredToken(t *testing.T) {
	svc := testutil.NewFakeService()
	m := newManager(t, svc, testutil.NewMemStore())

	if m.IsLoaded() {
		t.Fatal("expected not loaded before Restore")
	}
	m.Restore(context.Background())

	if !m.IsLoaded() {
		t.Error("expected loaded after Restore")
	}
	if m.IsAuthenticated() {
		t.Error("expected unauthenticated")
	}
	if svc.Calls("Me") != 0 {
		t.Errorf("expected no profile fetch, got %d", svc.Calls("Me"))
	}
}

func TestRestore_ValidToken(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	svc.SetToken("abc123", email)
	keys := testutil.NewMemStore()
	keys.Set(context.Background(), session.TokenKey, "abc123")

	m := newManager(t, svc, keys)
	m.Restore(context.Background())

	if !m.IsLoaded() || !m.IsAuthenticated() {
		t.Fatalf("expected loaded and authenticated, got loaded=%v auth=%v", m.IsLoaded(), m.IsAuthenticated())
	}
	user, ok := m.User()
	if !ok || user.Email != email {
		t.Errorf("unexpected user %+v", user)
	}
	if token, _ := m.Token(); token != "abc123" {
		t.Errorf("expected token abc123, got %q", token)
	}
}

func TestRestore_RejectedTokenClearsSession(t *testing.T) {
	svc := testutil.NewFakeService()
	keys := testutil.NewMemStore()
	keys.Set(context.Background(), session.TokenKey, "abc123")

	m := newManager(t, svc, keys)
	m.Restore(context.Background())

	if _, ok := m.Token(); ok {
		t.Error("expected token cleared from memory")
	}
	if _, ok := keys.Value(session.TokenKey); ok {
		t.Error("expected token removed from durable storage")
	}
	if _, ok := m.User(); ok {
		t.Error("expected no user")
	}
	if !m.IsLoaded() {
		t.Error("expected loaded")
	}
	if m.IsAuthenticated() {
		t.Error("expected unauthenticated")
	}
}

func TestRestore_TransportFailureClearsSession(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	svc.SetToken("abc123", email)
	svc.MeErr = errors.New("connection refused")
	keys := testutil.NewMemStore()
	keys.Set(context.Background(), session.TokenKey, "abc123")

	m := newManager(t, svc, keys)
	m.Restore(context.Background())

	if m.IsAuthenticated() {
		t.Error("expected unauthenticated")
	}
	if _, ok := keys.Value(session.TokenKey); ok {
		t.Error("expected token removed from durable storage")
	}
	if !m.IsLoaded() {
		t.Error("expected loaded")
	}
}

func TestRestore_UnreadableStore(t *testing.T) {
	svc := testutil.NewFakeService()
	keys := testutil.NewMemStore()
	keys.GetErr = errors.New("disk error")

	m := newManager(t, svc, keys)
	m.Restore(context.Background())

	if !m.IsLoaded() || m.IsAuthenticated() {
		t.Errorf("expected loaded and unauthenticated, got loaded=%v auth=%v", m.IsLoaded(), m.IsAuthenticated())
	}
	if svc.Calls("Me") != 0 {
		t.Error("expected no profile fetch")
	}
}

func TestLogin_Success(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	keys := testutil.NewMemStore()
	m := newManager(t, svc, keys)
	m.Restore(context.Background())

	if !m.Login(context.Background(), email, password) {
		t.Fatal("expected login to succeed")
	}
	if !m.IsAuthenticated() {
		t.Error("expected authenticated")
	}
	token, ok := m.Token()
	if !ok {
		t.Fatal("expected a token")
	}
	stored, ok := keys.Value(session.TokenKey)
	if !ok || stored != token {
		t.Errorf("expected stored token %q, got %q", token, stored)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	keys := testutil.NewMemStore()
	m := newManager(t, svc, keys)
	m.Restore(context.Background())

	if m.Login(context.Background(), email, "wrong") {
		t.Fatal("expected login to fail")
	}
	if m.IsAuthenticated() {
		t.Error("expected unauthenticated")
	}
	if _, ok := keys.Value(session.TokenKey); ok {
		t.Error("expected nothing persisted")
	}
}

func TestLogin_TransportErrorReturnsFalse(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.LoginErr = errors.New("connection refused")
	m := newManager(t, svc, testutil.NewMemStore())
	m.Restore(context.Background())

	if m.Login(context.Background(), email, password) {
		t.Fatal("expected login to fail")
	}
}

func TestLogin_MissingAccessTokenLeavesStateUnchanged(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	svc.AddUser("old@example.com", "x")
	svc.SetToken("abc123", "old@example.com")
	keys := testutil.NewMemStore()
	keys.Set(context.Background(), session.TokenKey, "abc123")

	m := newManager(t, svc, keys)
	m.Restore(context.Background())
	before, _ := m.User()

	svc.OmitAccessToken = true
	if m.Login(context.Background(), email, password) {
		t.Fatal("expected login to fail without access_token")
	}

	if token, _ := m.Token(); token != "abc123" {
		t.Errorf("expected token unchanged, got %q", token)
	}
	after, ok := m.User()
	if !ok || after != before {
		t.Errorf("expected user unchanged, got %+v", after)
	}
	if stored, _ := keys.Value(session.TokenKey); stored != "abc123" {
		t.Errorf("expected stored token unchanged, got %q", stored)
	}
}

func TestLogin_PersistFailureReturnsFalse(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	keys := testutil.NewMemStore()
	keys.SetErr = errors.New("read-only filesystem")
	m := newManager(t, svc, keys)
	m.Restore(context.Background())

	if m.Login(context.Background(), email, password) {
		t.Fatal("expected login to fail when the token cannot be persisted")
	}
	if _, ok := m.Token(); ok {
		t.Error("expected no token in memory")
	}
	if svc.Calls("Me") != 0 {
		t.Error("expected no profile fetch")
	}
}

func TestLogin_ProfileFailureForcesLogout(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	svc.MeErr = errors.New("server exploded")
	keys := testutil.NewMemStore()
	m := newManager(t, svc, keys)
	m.Restore(context.Background())

	if m.Login(context.Background(), email, password) {
		t.Fatal("expected login to report failure")
	}
	if _, ok := m.Token(); ok {
		t.Error("expected token cleared")
	}
	if _, ok := keys.Value(session.TokenKey); ok {
		t.Error("expected stored token removed")
	}
}

func TestLoginWithGoogle(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddGoogleIdentity("google-id-token", email)
	provider := &testutil.FakeIdentityProvider{IDTokenValue: "google-id-token"}
	keys := testutil.NewMemStore()
	m := newManager(t, svc, keys, session.WithIdentityProvider(provider))
	m.Restore(context.Background())

	if !m.LoginWithGoogle(context.Background()) {
		t.Fatal("expected google login to succeed")
	}
	user, _ := m.User()
	if user.Email != email {
		t.Errorf("unexpected user %+v", user)
	}
	if _, ok := keys.Value(session.TokenKey); !ok {
		t.Error("expected token persisted")
	}
}

func TestLoginWithGoogle_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider session.IdentityProvider
	}{
		{"no provider", nil},
		{"provider error", &testutil.FakeIdentityProvider{Err: errors.New("user closed the browser")}},
		{"empty id token", &testutil.FakeIdentityProvider{}},
		{"exchange rejected", &testutil.FakeIdentityProvider{IDTokenValue: "unknown"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeService()
			var opts []session.Option
			if tt.provider != nil {
				opts = append(opts, session.WithIdentityProvider(tt.provider))
			}
			m := newManager(t, svc, testutil.NewMemStore(), opts...)
			m.Restore(context.Background())

			if m.LoginWithGoogle(context.Background()) {
				t.Fatal("expected google login to fail")
			}
			if m.IsAuthenticated() {
				t.Error("expected unauthenticated")
			}
		})
	}
}

func TestRegister(t *testing.T) {
	svc := testutil.NewFakeService()
	keys := testutil.NewMemStore()
	m := newManager(t, svc, keys)
	m.Restore(context.Background())

	user, ok := m.Register(context.Background(), email, password)
	if !ok {
		t.Fatal("expected registration to succeed")
	}
	if user.Email != email {
		t.Errorf("unexpected user %+v", user)
	}
	if m.IsAuthenticated() {
		t.Error("registration must not authenticate")
	}
	if _, ok := keys.Value(session.TokenKey); ok {
		t.Error("registration must not persist a token")
	}

	if !m.Login(context.Background(), email, password) {
		t.Fatal("expected login after registration to succeed")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	m := newManager(t, svc, testutil.NewMemStore())

	if _, ok := m.Register(context.Background(), email, password); ok {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestLogout(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	keys := testutil.NewMemStore()
	m := newManager(t, svc, keys)
	m.Restore(context.Background())
	m.Login(context.Background(), email, password)

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.IsAuthenticated() {
		t.Error("expected unauthenticated")
	}
	if _, ok := m.Token(); ok {
		t.Error("expected no token")
	}
	if _, ok := keys.Value(session.TokenKey); ok {
		t.Error("expected stored token removed")
	}

	// Idempotent.
	if err := m.Logout(context.Background()); err != nil {
		t.Errorf("second logout: %v", err)
	}
}

func TestLogout_StorageErrorStillClearsMemory(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	keys := testutil.NewMemStore()
	m := newManager(t, svc, keys)
	m.Restore(context.Background())
	m.Login(context.Background(), email, password)

	keys.DeleteErr = errors.New("disk error")
	if err := m.Logout(context.Background()); err == nil {
		t.Fatal("expected the storage error")
	}
	if m.IsAuthenticated() {
		t.Error("expected unauthenticated")
	}
}

func TestLogoutThenRestore(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	keys := testutil.NewMemStore()
	m := newManager(t, svc, keys)
	m.Restore(context.Background())
	m.Login(context.Background(), email, password)
	m.Logout(context.Background())

	// Simulate a restart with the same durable storage.
	meCalls := svc.Calls("Me")
	restarted := newManager(t, svc, keys)
	restarted.Restore(context.Background())

	if restarted.IsAuthenticated() {
		t.Error("expected unauthenticated after restart")
	}
	if !restarted.IsLoaded() {
		t.Error("expected loaded after restart")
	}
	if svc.Calls("Me") != meCalls {
		t.Error("expected no profile fetch after logout")
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	m := newManager(t, svc, testutil.NewMemStore())
	m.Restore(context.Background())
	m.Login(context.Background(), email, password)

	name := "Ana"
	loc := service.Location{Latitude: 4.6, Longitude: -74.1}
	user, err := m.UpdateProfile(context.Background(), service.ProfileUpdate{Name: &name, Location: &loc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "Ana" {
		t.Errorf("unexpected user %+v", user)
	}
	local, _ := m.User()
	if local.Name != "Ana" || local.Location == nil || *local.Location != loc {
		t.Errorf("expected local profile replaced, got %+v", local)
	}
}

func TestUpdateProfile_Failure(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	m := newManager(t, svc, testutil.NewMemStore())
	m.Restore(context.Background())
	m.Login(context.Background(), email, password)
	before, _ := m.User()

	svc.UpdateProfileErr = errors.New("server error")
	name := "Ana"
	if _, err := m.UpdateProfile(context.Background(), service.ProfileUpdate{Name: &name}); err == nil {
		t.Fatal("expected error")
	}
	after, _ := m.User()
	if after != before {
		t.Errorf("expected profile unchanged, got %+v", after)
	}
}

func TestUpdateProfile_NotAuthenticated(t *testing.T) {
	m := newManager(t, testutil.NewFakeService(), testutil.NewMemStore())
	m.Restore(context.Background())

	_, err := m.UpdateProfile(context.Background(), service.ProfileUpdate{})
	if !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestOnTokenAcquired(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	m := newManager(t, svc, testutil.NewMemStore())

	var fired int
	m.OnTokenAcquired(func(ctx context.Context) {
		if !m.IsAuthenticated() {
			t.Error("listener ran before the session was committed")
		}
		fired++
	})

	m.Restore(context.Background())
	if fired != 0 {
		t.Fatalf("expected no notification without a stored token, got %d", fired)
	}

	m.Login(context.Background(), email, password)
	if fired != 1 {
		t.Fatalf("expected one notification after login, got %d", fired)
	}

	// Token present to present is not a transition.
	m.Login(context.Background(), email, password)
	if fired != 1 {
		t.Fatalf("expected no notification for a replaced token, got %d", fired)
	}

	m.Logout(context.Background())
	m.Login(context.Background(), email, password)
	if fired != 2 {
		t.Fatalf("expected a notification after logout and login, got %d", fired)
	}
}

func TestOnTokenAcquired_Restore(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(email, password)
	svc.SetToken("abc123", email)
	keys := testutil.NewMemStore()
	keys.Set(context.Background(), session.TokenKey, "abc123")
	m := newManager(t, svc, keys)

	var fired int
	m.OnTokenAcquired(func(ctx context.Context) { fired++ })
	m.Restore(context.Background())

	if fired != 1 {
		t.Errorf("expected one notification after restore, got %d", fired)
	}
}

func TestOnTokenAcquired_NotFiredForInvalidToken(t *testing.T) {
	svc := testutil.NewFakeService()
	keys := testutil.NewMemStore()
	keys.Set(context.Background(), session.TokenKey, "abc123")
	m := newManager(t, svc, keys)

	var fired int
	m.OnTokenAcquired(func(ctx context.Context) { fired++ })
	m.Restore(context.Background())

	if fired != 0 {
		t.Errorf("expected no notification for a rejected token, got %d", fired)
	}
}
