// Package journal keeps a local SQLite log of every mutation attempt and
// its outcome.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Tiliavir/ttr/internal/coordinator"
	"github.com/Tiliavir/ttr/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// Entry is one journaled mutation attempt.
type Entry struct {
	ID       int64
	Method   model.Method
	RecordID string
	TmpID    string
	Outcome  string
	Error    string
	At       time.Time
}

// Journal is a mutation log backed by a SQLite file.
type Journal struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens or creates the journal at path.
func Open(path string, log zerolog.Logger) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, log: log}, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores e and returns it with its assigned id.
func (j *Journal) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO mutations (method, record_id, tmp_id, outcome, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.Method), e.RecordID, e.TmpID, e.Outcome, e.Error, e.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("journal append: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Entry{}, fmt.Errorf("journal append: %w", err)
	}
	return e, nil
}

// Latest returns up to limit entries, newest first.
func (j *Journal) Latest(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, method, record_id, tmp_id, outcome, error, created_at FROM mutations ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			method  string
			created string
		)
		if err := rows.Scan(&e.ID, &method, &e.RecordID, &e.TmpID, &e.Outcome, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Method = model.Method(method)
		if e.At, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("journal entry %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Observe journals mutation outcomes. Write failures are logged and never
// reach the caller.
func (j *Journal) Observe(ev coordinator.Event) {
	switch ev.Kind {
	case coordinator.EventSucceeded, coordinator.EventRolledBack, coordinator.EventUndoExpired:
	default:
		return
	}
	e := Entry{
		Method:   ev.Method,
		RecordID: ev.RecordID,
		TmpID:    ev.TmpID,
		Outcome:  string(ev.Kind),
		At:       ev.At,
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	if _, err := j.Append(context.Background(), e); err != nil {
		j.log.Warn().Err(err).Msg("mutation not journaled")
	}
}
