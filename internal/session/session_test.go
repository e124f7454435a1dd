package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/averix/internal/crypto"
	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/platform/averix"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	token      string
	user       domain.UserProfile
	profileErr error
	profiles   int
}

func (f *fakeAPI) Register(_ context.Context, req averix.RegisterRequest) (averix.AuthResponse, error) {
	u := f.user
	u.Email = req.Email
	return averix.AuthResponse{AccessToken: f.token, TokenType: "bearer", User: u}, nil
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (averix.AuthResponse, error) {
	if password != "pw" {
		return averix.AuthResponse{}, &averix.APIError{Status: 401, Detail: "Invalid email or password"}
	}
	return averix.AuthResponse{AccessToken: f.token, TokenType: "bearer", User: f.user}, nil
}

func (f *fakeAPI) GetProfile(_ context.Context, _ averix.Credential) (domain.UserProfile, error) {
	f.profiles++
	if f.profileErr != nil {
		return domain.UserProfile{}, f.profileErr
	}
	return f.user, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return tok
}

func TestLoginPersistsCredential(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	api := &fakeAPI{token: signedToken(t, exp), user: domain.UserProfile{ID: "u1"}}
	store := NewMemoryStore()
	m := NewManager(api, store, "default", discardLogger())

	sess, err := m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	assert.True(t, sess.ExpiresAt.Equal(exp))
	require.NotNil(t, sess.Profile)
	assert.Equal(t, "u1", sess.Profile.ID)

	stored, err := store.Load(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, api.token, stored)
}

func TestLoginRejected(t *testing.T) {
	m := NewManager(&fakeAPI{token: "x"}, NewMemoryStore(), "default", discardLogger())

	_, err := m.Login(context.Background(), "a@b.c", "nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "Invalid email or password", averix.ErrorDetail(err))
	assert.False(t, m.Current().Authenticated())
}

func TestRestoreWithoutCredential(t *testing.T) {
	m := NewManager(&fakeAPI{}, NewMemoryStore(), "default", discardLogger())

	_, err := m.Restore(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestRestoreUnauthorizedClearsCredential(t *testing.T) {
	api := &fakeAPI{profileErr: &averix.APIError{Status: 401}}
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "default", "opaque"))

	m := NewManager(api, store, "default", discardLogger())
	expired := 0
	m.OnExpire(func() { expired++ })

	_, err := m.Restore(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Equal(t, 1, expired)
	assert.False(t, m.Current().Authenticated())

	_, err = store.Load(context.Background(), "default")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestoreExpiredTokenSkipsBackend(t *testing.T) {
	api := &fakeAPI{}
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "default", signedToken(t, time.Now().Add(-time.Hour))))

	m := NewManager(api, store, "default", discardLogger())
	_, err := m.Restore(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Zero(t, api.profiles)
}

func TestRestoreTransientFailureKeepsCredential(t *testing.T) {
	api := &fakeAPI{profileErr: errors.New("connection refused")}
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "default", "opaque"))

	m := NewManager(api, store, "default", discardLogger())
	sess, err := m.Restore(context.Background())
	require.Error(t, err)
	assert.True(t, sess.Authenticated())
	assert.Nil(t, sess.Profile)

	_, err = store.Load(context.Background(), "default")
	assert.NoError(t, err)
}

func TestLogoutAndSetProfile(t *testing.T) {
	api := &fakeAPI{token: "opaque", user: domain.UserProfile{ID: "u1"}}
	m := NewManager(api, NewMemoryStore(), "default", discardLogger())

	m.SetProfile("opaque", domain.UserProfile{ID: "ignored"})
	assert.Nil(t, m.Current().Profile)

	_, err := m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	m.SetProfile("other", domain.UserProfile{ID: "stale", TotalTrades: 9})
	assert.Equal(t, "u1", m.Current().Profile.ID)
	m.SetProfile("opaque", domain.UserProfile{ID: "u1", TotalTrades: 4})
	assert.Equal(t, 4, m.Current().Profile.TotalTrades)
	assert.True(t, m.Current().ExpiresAt.IsZero())

	require.NoError(t, m.Logout(context.Background()))
	assert.False(t, m.Current().Authenticated())
}

func TestChangeHooksRunOnLoginAndLogout(t *testing.T) {
	api := &fakeAPI{token: "opaque", user: domain.UserProfile{ID: "u1"}}
	m := NewManager(api, NewMemoryStore(), "default", discardLogger())

	var seen []bool
	m.OnChange(func() { seen = append(seen, m.Current().Authenticated()) })
	expired := 0
	m.OnExpire(func() { expired++ })

	_, err := m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	_, err = m.Login(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	require.NoError(t, m.Logout(context.Background()))

	assert.Equal(t, []bool{true, false}, seen)
	assert.Zero(t, expired)

	m.Expire(context.Background())
	assert.Equal(t, 1, expired)
	assert.Len(t, seen, 2)
}

func TestFileStore(t *testing.T) {
	sealer, err := crypto.NewSealer("pass", 1000)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	s := NewFileStore(path, sealer)
	ctx := context.Background()

	_, err = s.Load(ctx, "default")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Save(ctx, "default", "tok-1"))
	require.NoError(t, s.Save(ctx, "other", "tok-2"))

	reopened := NewFileStore(path, sealer)
	tok, err := reopened.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	require.NoError(t, reopened.Delete(ctx, "default"))
	_, err = reopened.Load(ctx, "default")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	tok, err = reopened.Load(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)

	wrong, err := crypto.NewSealer("other", 1000)
	require.NoError(t, err)
	_, err = NewFileStore(path, wrong).Load(ctx, "other")
	assert.ErrorIs(t, err, crypto.ErrWrongPassphrase)
}
