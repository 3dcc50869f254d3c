package session_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/ttr/internal/api"
	"github.com/Tiliavir/ttr/internal/apitest"
	"github.com/Tiliavir/ttr/internal/session"
)

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		want     session.FieldErrors
	}{
		{"ok", "alice", "password1", session.FieldErrors{}},
		{"empty", "", "", session.FieldErrors{"username": "Required", "password": "Required"}},
		{"long username", strings.Repeat("a", 17), "password1", session.FieldErrors{"username": "Username must be between 1 and 16 characters."}},
		{"short password", "alice", "short", session.FieldErrors{"password": "Password length must be between 8 and 78 characters."}},
		{"long password", "alice", strings.Repeat("p", 79), session.FieldErrors{"password": "Password length must be between 8 and 78 characters."}},
		{"multibyte username", strings.Repeat("ä", 16), "password1", session.FieldErrors{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, session.ValidateCredentials(tt.username, tt.password))
		})
	}
}

func TestValidateSignup(t *testing.T) {
	assert.Empty(t, session.ValidateSignup("bob", "password1", "password1"))
	assert.Equal(t, "Passwords don't match.", session.ValidateSignup("bob", "password1", "password2")["repeatPassword"])
	assert.Equal(t, "Required", session.ValidateSignup("bob", "password1", "")["repeatPassword"])
}

func TestFieldErrorsMessage(t *testing.T) {
	errs := session.FieldErrors{"username": "Required", "password": "Required"}
	assert.Equal(t, "password: Required; username: Required", errs.Error())
}

func TestStoreRoundTrip(t *testing.T) {
	store := session.NewStore(t.TempDir())
	_, err := store.Load()
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)

	want := session.Session{UserID: "user-1", Username: "alice", Token: "tok"}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)
}

func TestTokenSource(t *testing.T) {
	store := session.NewStore(t.TempDir())
	_, err := store.TokenSource().Token()
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)

	require.NoError(t, store.Save(session.Session{Token: "tok"}))
	tok, err := store.TokenSource().Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)

	require.NoError(t, store.Save(session.Session{Token: "old", Expiry: time.Now().Add(-time.Minute)}))
	_, err = store.TokenSource().Token()
	assert.ErrorIs(t, err, session.ErrExpired)
}

func TestSessionOAuthToken(t *testing.T) {
	expiry := time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)
	sess := session.Session{UserID: "user-1", Username: "alice", Token: "tok", Expiry: expiry}

	tok := sess.OAuthToken()
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, api.AuthHeader, tok.TokenType)
	assert.True(t, tok.Expiry.Equal(expiry))
}

func TestLoginSignupLogout(t *testing.T) {
	srv, backend := apitest.NewServer()
	defer srv.Close()
	backend.AddUser("alice", "password1")
	client := api.New(srv.URL, nil)
	store := session.NewStore(t.TempDir())
	ctx := context.Background()

	sess, err := session.Login(ctx, client, store, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
	assert.NotEmpty(t, sess.Token)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sess, stored)

	_, err = session.Logout(ctx, client, store)
	require.NoError(t, err)
	_, err = store.Load()
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)

	sess, err = session.Signup(ctx, client, store, "bob", "password2", "password2")
	require.NoError(t, err)
	assert.Equal(t, "bob", sess.Username)
}

func TestLoginRejectsInvalidInputWithoutRequest(t *testing.T) {
	srv, backend := apitest.NewServer()
	defer srv.Close()
	store := session.NewStore(t.TempDir())

	_, err := session.Login(context.Background(), api.New(srv.URL, nil), store, "", "x")
	var fe session.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "username")
	assert.Empty(t, backend.Requests())
}

func TestLoginWrongPassword(t *testing.T) {
	srv, backend := apitest.NewServer()
	defer srv.Close()
	backend.AddUser("alice", "password1")
	store := session.NewStore(t.TempDir())

	_, err := session.Login(context.Background(), api.New(srv.URL, nil), store, "alice", "password9")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	_, err = store.Load()
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)
}

func TestLogoutClearsLocalSessionOnServerError(t *testing.T) {
	srv, _ := apitest.NewServer()
	defer srv.Close()
	store := session.NewStore(t.TempDir())
	require.NoError(t, store.Save(session.Session{Token: "unknown"}))

	_, err := session.Logout(context.Background(), api.New(srv.URL, nil), store)
	assert.Error(t, err)
	_, err = store.Load()
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)
}
