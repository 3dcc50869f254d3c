package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/ttr/internal/api"
	"github.com/Tiliavir/ttr/internal/apitest"
)

func TestSignupLoginLogout(t *testing.T) {
	srv, _ := apitest.NewServer()
	defer srv.Close()
	c := api.New(srv.URL, nil)
	ctx := context.Background()

	signed, err := c.Signup(ctx, api.Credentials{Username: "bob", Password: "long-enough"})
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Token)
	assert.NotEmpty(t, signed.UserID)
	assert.False(t, signed.Expires.IsZero())

	logged, err := c.Login(ctx, api.Credentials{Username: "bob", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, signed.UserID, logged.UserID)
	assert.Equal(t, "bob", logged.Username)

	msg, err := c.Logout(ctx, logged.Token)
	require.NoError(t, err)
	assert.Equal(t, "Logged out", msg)

	_, err = c.Logout(ctx, logged.Token)
	assert.Error(t, err)
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv, backend := apitest.NewServer()
	defer srv.Close()
	backend.AddUser("bob", "long-enough")

	_, err := api.New(srv.URL, nil).Login(context.Background(), api.Credentials{Username: "bob", Password: "wrong-password"})
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)
}

func TestSignupFieldErrors(t *testing.T) {
	srv, _ := apitest.NewServer()
	defer srv.Close()

	_, err := api.New(srv.URL, nil).Signup(context.Background(), api.Credentials{Username: "bob", Password: "short"})
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, []api.ValidationReason{{Key: "password", Message: "Password is too short"}}, apiErr.Validation)
}

func TestSignupDuplicateUser(t *testing.T) {
	srv, backend := apitest.NewServer()
	defer srv.Close()
	backend.AddUser("bob", "long-enough")

	_, err := api.New(srv.URL, nil).Signup(context.Background(), api.Credentials{Username: "bob", Password: "long-enough"})
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "DUPLICATE_USER", apiErr.Code)
	assert.Equal(t, "User already exists", apiErr.Message)
}

func TestLoginTokenFromCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "authToken", Value: "cookie-token"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":{"message":"ok","id":"u9"}}`))
	}))
	defer srv.Close()

	res, err := api.New(srv.URL, nil).Login(context.Background(), api.Credentials{Username: "bob", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, "cookie-token", res.Token)
	assert.Equal(t, "u9", res.UserID)
	assert.Equal(t, "bob", res.Username)
}
