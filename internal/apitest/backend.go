// Package apitest provides an in-memory records backend for tests and local
// development. It implements the same REST surface as the real server,
// including soft delete, composite "<serverId>_<tmpId>" ids and injectable
// failures.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Tiliavir/ttr/internal/api"
	"github.com/Tiliavir/ttr/internal/model"
)

// MaxNoteLength is the longest note the backend accepts.
const MaxNoteLength = 500

type storedRecord struct {
	rec     model.TimeRecord
	deleted bool
}

type user struct {
	id       string
	password string
}

type failure struct {
	status     int
	message    string
	code       string
	validation []api.ValidationReason
	disconnect bool
}

// Backend is the fake server state. All methods are safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	records  map[string]*storedRecord
	order    []string
	nextID   int
	users    map[string]user
	tokens   map[string]string
	failures map[string][]failure
	requests []string

	compositeIDs bool
	echoTmpID    bool
}

// NewBackend returns an empty backend that answers POSTs with composite ids
// and also echoes the temporary id in a tmpId field.
func NewBackend() *Backend {
	return &Backend{
		records:      map[string]*storedRecord{},
		users:        map[string]user{},
		tokens:       map[string]string{},
		failures:     map[string][]failure{},
		nextID:       1,
		compositeIDs: true,
		echoTmpID:    true,
	}
}

// NewServer starts an httptest server for a fresh backend. The caller must
// Close the server.
func NewServer() (*httptest.Server, *Backend) {
	b := NewBackend()
	return httptest.NewServer(b.Router()), b
}

// SetIDStyle controls how POST responses identify the temporary id.
func (b *Backend) SetIDStyle(composite, echoTmpID bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compositeIDs = composite
	b.echoTmpID = echoTmpID
}

// AddUser registers a user and returns its id and a valid session token.
func (b *Backend) AddUser(username, password string) (userID, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(username, password)
}

func (b *Backend) addUserLocked(username, password string) (string, string) {
	id := "user-" + strconv.Itoa(len(b.users)+1)
	b.users[username] = user{id: id, password: password}
	token := uuid.NewString()
	b.tokens[token] = id
	return id, token
}

// Seed stores records for userID and returns them with server ids.
func (b *Backend) Seed(userID string, recs ...model.TimeRecord) []model.TimeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.TimeRecord, 0, len(recs))
	for _, r := range recs {
		r = r.WithComputedDuration()
		r.UserID = userID
		r.TmpID = ""
		if r.ID == "" {
			r.ID = b.newIDLocked()
		}
		b.records[r.ID] = &storedRecord{rec: r}
		b.order = append(b.order, r.ID)
		out = append(out, r)
	}
	return out
}

// Records returns the live (not deleted) records of userID, newest first.
func (b *Backend) Records(userID string) []model.TimeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []model.TimeRecord
	for _, id := range b.order {
		s := b.records[id]
		if s.deleted || s.rec.UserID != userID {
			continue
		}
		out = append(out, s.rec.Clone())
	}
	sortDesc(out)
	return out
}

// Requests returns "METHOD path" for every request served so far.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// FailNext makes the next request with the given HTTP method fail with
// status and an error payload.
func (b *Backend) FailNext(method string, status int, message string, validation ...api.ValidationReason) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method] = append(b.failures[method], failure{status: status, message: message, validation: validation})
}

// FailNextWithCode is FailNext with a business error code.
func (b *Backend) FailNextWithCode(method string, status int, message, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method] = append(b.failures[method], failure{status: status, message: message, code: code})
}

// DisconnectNext drops the connection of the next request with the given
// method without writing a response.
func (b *Backend) DisconnectNext(method string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method] = append(b.failures[method], failure{disconnect: true})
}

// Router returns the HTTP handler for the backend.
func (b *Backend) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(b.recordRequest, b.injectFailures)

	app := r.PathPrefix("/app").Subrouter()
	app.HandleFunc("/login", b.handleLogin).Methods(http.MethodPost)
	app.HandleFunc("/signup", b.handleSignup).Methods(http.MethodPost)
	app.HandleFunc("/logout", b.handleLogout).Methods(http.MethodGet)

	r.Handle("/api/timerecords", b.requireAuth(b.handleList)).Methods(http.MethodGet)
	r.Handle("/api/timerecords", b.requireAuth(b.handleCreate)).Methods(http.MethodPost)
	r.Handle("/api/timerecords/{id}", b.requireAuth(b.handleUpdate)).Methods(http.MethodPut)
	r.Handle("/api/timerecords/{id}", b.requireAuth(b.handleDelete)).Methods(http.MethodDelete)
	r.Handle("/api/timerecords/{id}/undelete", b.requireAuth(b.handleUndelete)).Methods(http.MethodPut)
	return r
}

func (b *Backend) recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		var f *failure
		if q := b.failures[r.Method]; len(q) > 0 {
			f = &q[0]
			b.failures[r.Method] = q[1:]
		}
		b.mu.Unlock()

		switch {
		case f == nil:
			next.ServeHTTP(w, r)
		case f.disconnect:
			hj, ok := w.(http.Hijacker)
			if !ok {
				http.Error(w, "hijacking not supported", http.StatusInternalServerError)
				return
			}
			conn, _, err := hj.Hijack()
			if err == nil {
				_ = conn.Close()
			}
		default:
			writeError(w, f.status, f.message, f.code, f.validation)
		}
	})
}

type userIDKey struct{}

func (b *Backend) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		userID, ok := b.tokens[r.Header.Get(api.AuthHeader)]
		b.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "", nil)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	})
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	q := r.URL.Query()
	from, err := model.ParseTimestamp(q.Get("dateFrom"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dateFrom", "", nil)
		return
	}
	to, err := model.ParseTimestamp(q.Get("dateTo"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dateTo", "", nil)
		return
	}
	contains := strings.ToLower(q.Get("contains"))

	out := []model.TimeRecord{}
	for _, rec := range b.Records(userID) {
		if rec.StartTime.Before(from) || rec.StartTime.After(to) {
			continue
		}
		if contains != "" && !strings.Contains(strings.ToLower(rec.Note), contains) {
			continue
		}
		out = append(out, rec)
	}
	writeData(w, http.StatusOK, out)
}

func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request) {
	var rec model.TimeRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error(), "", nil)
		return
	}
	if reasons := validate(rec); len(reasons) > 0 {
		writeError(w, http.StatusBadRequest, "", "", reasons)
		return
	}

	b.mu.Lock()
	tmpID := rec.TmpID
	rec = rec.WithComputedDuration()
	rec.ID = b.newIDLocked()
	rec.TmpID = ""
	rec.UserID = userIDFrom(r)
	b.records[rec.ID] = &storedRecord{rec: rec}
	b.order = append(b.order, rec.ID)
	resp := rec.Clone()
	if tmpID != "" {
		if b.compositeIDs {
			resp.ID = rec.ID + "_" + tmpID
		}
		if b.echoTmpID {
			resp.TmpID = tmpID
		}
	}
	b.mu.Unlock()

	writeData(w, http.StatusCreated, resp)
}

func (b *Backend) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var rec model.TimeRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error(), "", nil)
		return
	}
	if reasons := validate(rec); len(reasons) > 0 {
		writeError(w, http.StatusBadRequest, "", "", reasons)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.records[id]
	if !ok || s.deleted || s.rec.UserID != userIDFrom(r) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("record %s not found", id), "NOT_FOUND", nil)
		return
	}
	rec = rec.WithComputedDuration()
	rec.ID = id
	rec.TmpID = ""
	rec.UserID = s.rec.UserID
	s.rec = rec
	writeData(w, http.StatusOK, rec)
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.records[id]
	if !ok || s.deleted || s.rec.UserID != userIDFrom(r) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("record %s not found", id), "NOT_FOUND", nil)
		return
	}
	s.deleted = true
	writeJSON(w, http.StatusOK, map[string]any{"success": map[string]string{"message": "deleted"}})
}

func (b *Backend) handleUndelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.records[id]
	if !ok || !s.deleted || s.rec.UserID != userIDFrom(r) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("deleted record %s not found", id), "NOT_FOUND", nil)
		return
	}
	s.deleted = false
	writeData(w, http.StatusOK, s.rec)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "", nil)
		return
	}
	b.mu.Lock()
	u, ok := b.users[c.Username]
	var token string
	if ok && u.password == c.Password {
		token = uuid.NewString()
		b.tokens[token] = u.id
	}
	b.mu.Unlock()
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Invalid username or password", "INVALID_CREDENTIALS", nil)
		return
	}
	writeAuth(w, "Login successful", u.id, c.Username, token)
}

func (b *Backend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "", nil)
		return
	}
	if len(c.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"password": []string{"Password is too short"}})
		return
	}
	b.mu.Lock()
	if _, exists := b.users[c.Username]; exists {
		b.mu.Unlock()
		writeError(w, http.StatusConflict, "User already exists", "DUPLICATE_USER", nil)
		return
	}
	id, token := b.addUserLocked(c.Username, c.Password)
	b.mu.Unlock()
	writeAuth(w, "Signup successful", id, c.Username, token)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(api.LogoutAuthHeader)
	b.mu.Lock()
	_, ok := b.tokens[token]
	delete(b.tokens, token)
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"error": map[string]string{"message": "Not logged in"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": map[string]string{"message": "Logged out"}})
}

func (b *Backend) newIDLocked() string {
	id := strconv.Itoa(b.nextID)
	b.nextID++
	return id
}

func validate(rec model.TimeRecord) []api.ValidationReason {
	var reasons []api.ValidationReason
	for key, msg := range model.Validate(rec) {
		reasons = append(reasons, api.ValidationReason{Key: key, Message: msg})
	}
	if len(rec.Note) > MaxNoteLength {
		reasons = append(reasons, api.ValidationReason{Key: "note", Message: "too long"})
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i].Key < reasons[j].Key })
	return reasons
}

func sortDesc(recs []model.TimeRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].StartTime.After(recs[j].StartTime) })
}

func writeAuth(w http.ResponseWriter, message, id, username, token string) {
	http.SetCookie(w, &http.Cookie{Name: "authToken", Value: token, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": map[string]any{
			"message":  message,
			"id":       id,
			"username": username,
			"authToken": map[string]string{
				"token":   token,
				"expires": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
			},
		},
	})
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, message, code string, validation []api.ValidationReason) {
	payload := map[string]any{}
	if message != "" {
		payload["message"] = message
	}
	if code != "" {
		payload["code"] = code
	}
	if len(validation) > 0 {
		payload["validation"] = validation
	}
	writeJSON(w, status, map[string]any{"error": payload})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
