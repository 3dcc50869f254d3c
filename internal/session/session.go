// Package session validates credentials, logs in against the backend and
// keeps the resulting auth token on disk.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"

	"github.com/Tiliavir/ttr/internal/api"
	"github.com/Tiliavir/ttr/internal/storage"
)

const sessionFile = "session.json"

var (
	// ErrNotLoggedIn is returned when no session is stored.
	ErrNotLoggedIn = errors.New("not logged in (run `ttr login`)")
	// ErrExpired is returned when the stored token is past its expiry.
	ErrExpired = errors.New("session expired (run `ttr login`)")
)

// Session is the persisted login state.
type Session struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Token    string    `json:"token"`
	Expiry   time.Time `json:"expiry,omitempty"`
}

// OAuthToken returns the session as an oauth2 token. A zero Expiry never
// expires.
func (s Session) OAuthToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: s.Token, TokenType: api.AuthHeader, Expiry: s.Expiry}
}

// FieldErrors maps form fields to validation messages.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

// ValidateCredentials checks login input.
func ValidateCredentials(username, password string) FieldErrors {
	errs := FieldErrors{}
	switch n := utf8.RuneCountInString(username); {
	case n == 0:
		errs["username"] = "Required"
	case n > 16:
		errs["username"] = "Username must be between 1 and 16 characters."
	}
	if msg := checkPassword(password); msg != "" {
		errs["password"] = msg
	}
	return errs
}

// ValidateSignup checks signup input; the repeated password must match.
func ValidateSignup(username, password, repeat string) FieldErrors {
	errs := ValidateCredentials(username, password)
	switch {
	case repeat == "":
		errs["repeatPassword"] = "Required"
	case repeat != password:
		errs["repeatPassword"] = "Passwords don't match."
	default:
		if msg := checkPassword(repeat); msg != "" {
			errs["repeatPassword"] = msg
		}
	}
	return errs
}

func checkPassword(p string) string {
	n := utf8.RuneCountInString(p)
	switch {
	case n == 0:
		return "Required"
	case n < 8 || n > 78:
		return "Password length must be between 8 and 78 characters."
	}
	return ""
}

// Store keeps the session file in a data directory.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore returns a store for base/session.json.
func NewStore(base string) *Store {
	return &Store{path: filepath.Join(base, sessionFile), now: time.Now}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored session or ErrNotLoggedIn.
func (s *Store) Load() (Session, error) {
	var sess Session
	found, err := storage.ReadJSON(s.path, &sess)
	if err != nil {
		return Session{}, err
	}
	if !found || sess.Token == "" {
		return Session{}, ErrNotLoggedIn
	}
	return sess, nil
}

// Save writes sess with owner-only permissions.
func (s *Store) Save(sess Session) error {
	return storage.WriteJSON(s.path, sess)
}

// Clear removes the stored session.
func (s *Store) Clear() error {
	return storage.Remove(s.path)
}

// TokenSource reads the stored session on each call and fails with
// ErrNotLoggedIn or ErrExpired instead of returning an unusable token.
func (s *Store) TokenSource() oauth2.TokenSource {
	return storeSource{s}
}

type storeSource struct{ store *Store }

func (ts storeSource) Token() (*oauth2.Token, error) {
	sess, err := ts.store.Load()
	if err != nil {
		return nil, err
	}
	if !sess.Expiry.IsZero() && !ts.store.now().Before(sess.Expiry) {
		return nil, ErrExpired
	}
	return sess.OAuthToken(), nil
}

// Authenticator is the part of the REST client that handles identity.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (*api.AuthResult, error)
	Signup(ctx context.Context, creds api.Credentials) (*api.AuthResult, error)
	Logout(ctx context.Context, token string) (string, error)
}

// Login validates the input, logs in and stores the new session.
func Login(ctx context.Context, auth Authenticator, store *Store, username, password string) (Session, error) {
	if errs := ValidateCredentials(username, password); len(errs) > 0 {
		return Session{}, errs
	}
	res, err := auth.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	return persist(store, res)
}

// Signup validates the input, registers the user and stores the session.
func Signup(ctx context.Context, auth Authenticator, store *Store, username, password, repeat string) (Session, error) {
	if errs := ValidateSignup(username, password, repeat); len(errs) > 0 {
		return Session{}, errs
	}
	res, err := auth.Signup(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return Session{}, fmt.Errorf("signup: %w", err)
	}
	return persist(store, res)
}

// Logout invalidates the token on the server and removes the local
// session. The local session is removed even when the server call fails.
func Logout(ctx context.Context, auth Authenticator, store *Store) (string, error) {
	sess, err := store.Load()
	if err != nil {
		return "", err
	}
	msg, serverErr := auth.Logout(ctx, sess.Token)
	if err := store.Clear(); err != nil {
		return "", err
	}
	if serverErr != nil {
		return "", fmt.Errorf("logout: %w", serverErr)
	}
	return msg, nil
}

func persist(store *Store, res *api.AuthResult) (Session, error) {
	sess := Session{
		UserID:   res.UserID,
		Username: res.Username,
		Token:    res.Token,
		Expiry:   res.Expires,
	}
	if err := store.Save(sess); err != nil {
		return Session{}, fmt.Errorf("saving session: %w", err)
	}
	return sess, nil
}
