// Package coordinator applies record mutations optimistically to the
// client cache, confirms them against the backend and reconciles or rolls
// back the cache with the outcome.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Tiliavir/ttr/internal/api"
	"github.com/Tiliavir/ttr/internal/cache"
	"github.com/Tiliavir/ttr/internal/model"
)

const (
	// DefaultUndoWindow is how long a deleted record can be restored.
	DefaultUndoWindow = 15 * time.Second
	// DefaultStaleTime is how long a loaded snapshot is reused by Load.
	DefaultStaleTime = 10 * time.Second
	// PageSize is the number of records per page.
	PageSize = 30
)

// Backend is the subset of the REST client the coordinator needs.
type Backend interface {
	ListRecords(ctx context.Context, q api.Query) ([]model.TimeRecord, error)
	CreateRecord(ctx context.Context, r model.TimeRecord) (model.TimeRecord, error)
	UpdateRecord(ctx context.Context, r model.TimeRecord) (model.TimeRecord, error)
	DeleteRecord(ctx context.Context, r model.TimeRecord) error
	UndeleteRecord(ctx context.Context, r model.TimeRecord) (*model.TimeRecord, error)
}

// UndoOffer is a deleted record that can still be restored until Deadline.
type UndoOffer struct {
	Row      model.TimeRecord
	Deadline time.Time
}

// ViewState is the editing state of the records view.
type ViewState struct {
	// EditRow is the id of the record whose edit form is open.
	EditRow string
	// AddRow is non-nil while the add form is open; it carries the values
	// of a failed add so they can be corrected.
	AddRow *model.TimeRecord
	Undo   *UndoOffer
	Error  *SurfacedError
}

// Rollback restores the snapshot captured before an optimistic change.
type Rollback struct {
	key      cache.Key
	snapshot []model.TimeRecord
	pending  model.Pending
}

// Apply writes the captured snapshot back into c.
func (r Rollback) Apply(c *cache.Cache) {
	c.Set(r.key, r.snapshot)
}

// Snapshot returns the records as they were before the mutation.
func (r Rollback) Snapshot() []model.TimeRecord {
	out := make([]model.TimeRecord, len(r.snapshot))
	for i, rec := range r.snapshot {
		out[i] = rec.Clone()
	}
	return out
}

// Pending returns the mutation as it was applied, including a generated
// temporary id for POST.
func (r Rollback) Pending() model.Pending {
	return r.pending
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithUserID stamps new records with the session's user id.
func WithUserID(id string) Option {
	return func(c *Coordinator) { c.userID = id }
}

// WithUndoWindow overrides DefaultUndoWindow.
func WithUndoWindow(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.undoWindow = d
		}
	}
}

// WithStaleTime overrides DefaultStaleTime. Zero disables reuse.
func WithStaleTime(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.staleTime = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator replaces the temporary id generator.
func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.newID = gen }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithObservers registers observers notified after every mutation outcome.
func WithObservers(obs ...Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, obs...) }
}

// Coordinator owns the cache snapshot of one filtered records view.
type Coordinator struct {
	backend Backend
	cache   *cache.Cache
	key     cache.Key

	userID     string
	undoWindow time.Duration
	staleTime  time.Duration
	now        func() time.Time
	newID      func() string
	log        zerolog.Logger
	observers  []Observer

	mu       sync.Mutex
	closed   bool
	loadedAt time.Time
	editRow  string
	addRow   *model.TimeRecord
	undo     *UndoOffer
	surfaced *SurfacedError
}

// New returns a coordinator for the view identified by key.
func New(backend Backend, c *cache.Cache, key cache.Key, opts ...Option) *Coordinator {
	co := &Coordinator{
		backend:    backend,
		cache:      c,
		key:        key,
		undoWindow: DefaultUndoWindow,
		staleTime:  DefaultStaleTime,
		now:        time.Now,
		newID:      uuid.NewString,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

// Key returns the cache key of the view.
func (c *Coordinator) Key() cache.Key {
	return c.key
}

// Load fetches the records of the view and stores them sorted. A snapshot
// younger than the stale time is returned as is unless force is set.
func (c *Coordinator) Load(ctx context.Context, force bool) ([]model.TimeRecord, error) {
	if !force && c.staleTime > 0 {
		c.mu.Lock()
		loadedAt := c.loadedAt
		c.mu.Unlock()
		if recs, ok := c.cache.Get(c.key); ok && !loadedAt.IsZero() && c.now().Sub(loadedAt) < c.staleTime {
			return recs, nil
		}
	}

	recs, err := c.backend.ListRecords(ctx, api.Query{
		From:     c.key.StartDate,
		To:       c.key.EndDate,
		Contains: c.key.SearchText,
	})
	if err != nil {
		c.notify(Event{Kind: EventLoadFailed, Err: err, At: c.now()})
		return nil, fmt.Errorf("loading records: %w", err)
	}
	sortRecords(recs)

	c.mu.Lock()
	closed := c.closed
	if !closed {
		c.cache.Set(c.key, recs)
		c.loadedAt = c.now()
	}
	c.mu.Unlock()
	if closed {
		return nil, &PreconditionError{Key: c.key, Reason: "view is closed"}
	}

	if n := countActive(recs); n > 1 {
		c.log.Warn().Int("active", n).Msg("more than one active record")
	}
	c.notify(Event{Kind: EventLoaded, At: c.now()})
	return recs, nil
}

// Records returns the current snapshot, or nil when nothing is loaded.
func (c *Coordinator) Records() []model.TimeRecord {
	recs, _ := c.cache.Get(c.key)
	return recs
}

// Page returns the 1-based page n of the snapshot and the page count.
func (c *Coordinator) Page(n int) ([]model.TimeRecord, int) {
	recs := c.Records()
	pages := (len(recs) + PageSize - 1) / PageSize
	if n < 1 {
		n = 1
	}
	first := (n - 1) * PageSize
	if first >= len(recs) {
		return nil, pages
	}
	last := first + PageSize
	if last > len(recs) {
		last = len(recs)
	}
	return recs[first:last], pages
}

// Active returns the running records, newest first.
func (c *Coordinator) Active() []model.TimeRecord {
	var out []model.TimeRecord
	for _, r := range c.Records() {
		if r.Active() {
			out = append(out, r)
		}
	}
	return out
}

// State returns a copy of the view state. An undo offer past its deadline
// is discarded first.
func (c *Coordinator) State() ViewState {
	c.mu.Lock()
	expired := c.expireUndoLocked()
	s := ViewState{EditRow: c.editRow, Error: c.surfaced}
	if c.addRow != nil {
		row := c.addRow.Clone()
		s.AddRow = &row
	}
	if c.undo != nil {
		offer := *c.undo
		offer.Row = offer.Row.Clone()
		s.Undo = &offer
	}
	c.mu.Unlock()
	if expired != nil {
		c.notify(*expired)
	}
	return s
}

// Edit opens the edit form for the record with id.
func (c *Coordinator) Edit(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editRow = id
	c.surfaced = nil
}

// OpenAdd opens an empty add form.
func (c *Coordinator) OpenAdd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addRow = &model.TimeRecord{}
	c.surfaced = nil
}

// CancelEdit closes any open edit or add form.
func (c *Coordinator) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editRow = ""
	c.addRow = nil
	c.surfaced = nil
}

// DismissUndo withdraws the undo offer; the deletion becomes permanent
// from the view's perspective.
func (c *Coordinator) DismissUndo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.undo = nil
}

// ExpireUndo ends the undo offer because its window ran out and publishes
// EventUndoExpired. Callers that time the window themselves use it instead
// of waiting for the clock to pass the deadline. Without an offer it does
// nothing.
func (c *Coordinator) ExpireUndo() {
	c.mu.Lock()
	offer := c.undo
	c.undo = nil
	c.mu.Unlock()
	if offer == nil {
		return
	}
	c.notify(Event{Kind: EventUndoExpired, Method: model.MethodDelete, RecordID: offer.Row.ID, At: c.now()})
}

// Close discards the view's state and clears the cache.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cache.Clear()
	c.editRow = ""
	c.addRow = nil
	c.undo = nil
	c.surfaced = nil
}

// BeginMutation applies p to the cached snapshot and returns the rollback
// that restores the snapshot as it was before.
func (c *Coordinator) BeginMutation(p model.Pending) (Rollback, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Rollback{}, &PreconditionError{Key: c.key, Reason: "view is closed"}
	}
	previous, ok := c.cache.Get(c.key)
	if !ok {
		return Rollback{}, &PreconditionError{Key: c.key, Reason: "no records loaded for this view"}
	}

	row := p.Row.Clone()
	var next []model.TimeRecord
	switch p.Method {
	case model.MethodPut:
		next = make([]model.TimeRecord, len(previous))
		for i, r := range previous {
			if r.ID == row.ID {
				next[i] = row.Clone()
			} else {
				next[i] = r
			}
		}
	case model.MethodPost:
		if row.ID == "" {
			row.ID = c.newID()
		}
		row.TmpID = row.ID
		if row.UserID == "" {
			row.UserID = c.userID
		}
		row = row.WithComputedDuration()
		next = appendSorted(previous, row)
		c.addRow = nil
	case model.MethodDelete:
		for _, r := range previous {
			if r.ID == row.ID {
				row = r.Clone()
				continue
			}
			next = append(next, r)
		}
		c.undo = &UndoOffer{Row: row.Clone(), Deadline: c.now().Add(c.undoWindow)}
	case model.MethodUndoDelete:
		next = appendSorted(previous, row)
		c.undo = nil
	default:
		return Rollback{}, fmt.Errorf("unknown mutation method %q", p.Method)
	}

	c.cache.Set(c.key, next)
	c.editRow = ""
	c.surfaced = nil

	c.log.Debug().Str("method", string(p.Method)).Str("record", row.ID).Msg("optimistic update applied")
	return Rollback{
		key:      c.key,
		snapshot: previous,
		pending:  model.Pending{Row: row, Method: p.Method},
	}, nil
}

// OnMutationError rolls the cache back, surfaces err and reopens the form
// the failed mutation came from. Nothing is retried.
func (c *Coordinator) OnMutationError(err error, p model.Pending, rb Rollback) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Debug().Err(err).Msg("mutation failed after view was closed")
		return
	}
	rb.Apply(c.cache)

	switch p.Method {
	case model.MethodPut:
		if p.Row.ID != "" {
			c.editRow = p.Row.ID
		}
	case model.MethodPost:
		row := p.Row.Clone()
		row.ID = ""
		row.TmpID = ""
		c.addRow = &row
	case model.MethodDelete:
		if c.undo != nil && c.undo.Row.ID == p.Row.ID {
			c.undo = nil
		}
	case model.MethodUndoDelete:
	}
	c.surfaced = surface(err)
	c.mu.Unlock()

	c.log.Warn().Err(err).Str("method", string(p.Method)).Str("record", p.Row.ID).Msg("mutation rolled back")
}

// OnMutationSuccess merges the authoritative server record into the cache.
// The entry matching either the server id or the temporary id is replaced;
// all other entries stay as they are.
func (c *Coordinator) OnMutationSuccess(server model.TimeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &PreconditionError{Key: c.key, Reason: "view is closed"}
	}
	previous, ok := c.cache.Get(c.key)
	if !ok {
		return &PreconditionError{Key: c.key, Reason: "no records loaded for this view"}
	}

	serverID, tmpID := ResolveIDs(server)
	merged := server.Clone()
	merged.ID = serverID
	merged.TmpID = ""

	next := make([]model.TimeRecord, 0, len(previous))
	replaced := false
	for _, r := range previous {
		match := r.ID == serverID || (tmpID != "" && (r.ID == tmpID || r.TmpID == tmpID))
		switch {
		case match && !replaced:
			next = append(next, merged.Clone())
			replaced = true
		case match:
			// A second entry for the same record; keep only one.
		default:
			next = append(next, r)
		}
	}
	sortRecords(next)
	c.cache.Set(c.key, next)
	return nil
}

// ResolveIDs returns the server id and the temporary id of a server
// response. A tmpId field wins; otherwise the id is read as
// "<serverId>_<tmpId>", and an id without "_" is the server id alone.
func ResolveIDs(server model.TimeRecord) (serverID, tmpID string) {
	if server.TmpID != "" {
		return strings.TrimSuffix(server.ID, "_"+server.TmpID), server.TmpID
	}
	serverID, tmpID, _ = strings.Cut(server.ID, "_")
	return serverID, tmpID
}

// Mutate runs the whole optimistic flow for p: apply, send, reconcile or
// roll back. It returns the reconciled record for PUT, POST and
// UNDO_DELETE.
func (c *Coordinator) Mutate(ctx context.Context, p model.Pending) (model.TimeRecord, error) {
	if p.Method == model.MethodPut || p.Method == model.MethodPost {
		if fields := model.Validate(p.Row); len(fields) > 0 {
			return model.TimeRecord{}, &ValidationError{Fields: fields}
		}
	}

	rb, err := c.BeginMutation(p)
	if err != nil {
		return model.TimeRecord{}, err
	}
	applied := rb.Pending()

	var (
		server  model.TimeRecord
		hasData bool
	)
	switch applied.Method {
	case model.MethodPut:
		server, err = c.backend.UpdateRecord(ctx, applied.Row)
		hasData = err == nil
	case model.MethodPost:
		server, err = c.backend.CreateRecord(ctx, applied.Row)
		hasData = err == nil
	case model.MethodDelete:
		err = c.backend.DeleteRecord(ctx, applied.Row)
	case model.MethodUndoDelete:
		var restored *model.TimeRecord
		restored, err = c.backend.UndeleteRecord(ctx, applied.Row)
		if restored != nil {
			server, hasData = *restored, true
		}
	}

	ev := Event{Method: applied.Method, RecordID: applied.Row.ID, TmpID: applied.Row.TmpID, At: c.now()}
	if err != nil {
		c.OnMutationError(err, applied, rb)
		ev.Kind, ev.Err = EventRolledBack, err
		c.notify(ev)
		return model.TimeRecord{}, err
	}

	if hasData && server.ID != "" {
		if mergeErr := c.OnMutationSuccess(server); mergeErr != nil {
			c.log.Debug().Err(mergeErr).Msg("server record not merged")
		}
		server.ID, _ = ResolveIDs(server)
		server.TmpID = ""
		ev.RecordID = server.ID
	} else {
		server = applied.Row
	}
	ev.Kind = EventSucceeded
	c.notify(ev)
	return server, nil
}

// Undo restores the record offered for undo. It reports false without
// contacting the backend when there is no offer or the window has passed.
func (c *Coordinator) Undo(ctx context.Context) (bool, error) {
	c.mu.Lock()
	expired := c.expireUndoLocked()
	offer := c.undo
	c.mu.Unlock()
	if expired != nil {
		c.notify(*expired)
	}
	if offer == nil {
		return false, nil
	}
	_, err := c.Mutate(ctx, model.Pending{Row: offer.Row, Method: model.MethodUndoDelete})
	return true, err
}

// Start begins a new active record at the given time. A record that is
// still running is stopped at the same instant first.
func (c *Coordinator) Start(ctx context.Context, note string, at time.Time) (model.TimeRecord, error) {
	active := c.Active()
	if len(active) > 1 {
		c.log.Warn().Int("active", len(active)).Msg("more than one active record")
	}
	if len(active) > 0 {
		c.log.Warn().Str("record", active[0].ID).Msg("stopping active record before starting a new one")
		if _, err := c.stop(ctx, active[0], at); err != nil {
			return model.TimeRecord{}, err
		}
	}
	return c.Mutate(ctx, model.Pending{
		Row:    model.TimeRecord{StartTime: at, Note: note, UserID: c.userID},
		Method: model.MethodPost,
	})
}

// Stop ends the newest active record at the given time.
func (c *Coordinator) Stop(ctx context.Context, at time.Time) (model.TimeRecord, error) {
	active := c.Active()
	if len(active) == 0 {
		return model.TimeRecord{}, ErrNoActiveRecord
	}
	if len(active) > 1 {
		c.log.Warn().Int("active", len(active)).Msg("more than one active record")
	}
	return c.stop(ctx, active[0], at)
}

func (c *Coordinator) stop(ctx context.Context, rec model.TimeRecord, at time.Time) (model.TimeRecord, error) {
	row := rec.Clone()
	end := at
	row.EndTime = &end
	return c.Mutate(ctx, model.Pending{Row: row.WithComputedDuration(), Method: model.MethodPut})
}

// expireUndoLocked drops an undo offer past its deadline and returns the
// event to publish once the lock is released.
func (c *Coordinator) expireUndoLocked() *Event {
	if c.undo == nil || !c.now().After(c.undo.Deadline) {
		return nil
	}
	ev := &Event{Kind: EventUndoExpired, Method: model.MethodDelete, RecordID: c.undo.Row.ID, At: c.now()}
	c.undo = nil
	return ev
}

func (c *Coordinator) notify(ev Event) {
	for _, o := range c.observers {
		o.Observe(ev)
	}
}

// sortRecords orders by start time, newest first; ties keep their order.
func sortRecords(recs []model.TimeRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].StartTime.After(recs[j].StartTime)
	})
}

func appendSorted(recs []model.TimeRecord, row model.TimeRecord) []model.TimeRecord {
	out := make([]model.TimeRecord, 0, len(recs)+1)
	out = append(out, recs...)
	out = append(out, row.Clone())
	sortRecords(out)
	return out
}

func countActive(recs []model.TimeRecord) int {
	n := 0
	for _, r := range recs {
		if r.Active() {
			n++
		}
	}
	return n
}
