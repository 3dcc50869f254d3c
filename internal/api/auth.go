package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Tiliavir/ttr/internal/model"
)

// Credentials are the login and signup inputs.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult is what login and signup return on success.
type AuthResult struct {
	Message  string
	UserID   string
	Username string
	Token    string
	// Expires is zero when the server does not announce an expiry.
	Expires time.Time
}

type authEnvelope struct {
	Success *struct {
		Message   string `json:"message"`
		ID        string `json:"id"`
		Username  string `json:"username"`
		AuthToken struct {
			Token   string `json:"token"`
			Expires string `json:"expires"`
		} `json:"authToken"`
	} `json:"success"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Login authenticates an existing user.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.authenticate(ctx, "/app/login", creds)
}

// Signup registers a user and logs them in.
func (c *Client) Signup(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.authenticate(ctx, "/app/signup", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds Credentials) (*AuthResult, error) {
	resp, body, err := c.send(ctx, http.MethodPost, path, creds, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newError(resp, body)
	}
	var env authEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", path, err)
	}
	if env.Success == nil {
		msg := "missing success payload"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return nil, &Error{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode), Message: msg}
	}

	res := &AuthResult{
		Message:  env.Success.Message,
		UserID:   env.Success.ID,
		Username: env.Success.Username,
		Token:    env.Success.AuthToken.Token,
	}
	if res.Username == "" {
		res.Username = creds.Username
	}
	if exp := env.Success.AuthToken.Expires; exp != "" {
		if t, err := model.ParseTimestamp(exp); err == nil {
			res.Expires = t
		}
	}
	// Older servers only hand out the token as a cookie.
	if res.Token == "" {
		for _, ck := range resp.Cookies() {
			if ck.Name == "authToken" {
				res.Token = ck.Value
				if res.Expires.IsZero() && !ck.Expires.IsZero() {
					res.Expires = ck.Expires
				}
			}
		}
	}
	if res.Token == "" {
		return nil, fmt.Errorf("%s: server returned no auth token", path)
	}
	return res, nil
}

// Logout invalidates token on the server and returns the server message.
func (c *Client) Logout(ctx context.Context, token string) (string, error) {
	header := http.Header{}
	header.Set(LogoutAuthHeader, token)
	resp, body, err := c.send(ctx, http.MethodGet, "/app/logout", nil, header)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", newError(resp, body)
	}
	var env authEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil
	}
	if env.Error != nil && env.Error.Message != "" {
		return "", &Error{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode), Message: env.Error.Message}
	}
	if env.Success != nil {
		return env.Success.Message, nil
	}
	return "", nil
}
