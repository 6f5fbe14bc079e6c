// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

var (
	// ErrNotFound means no invocation matches the id.
	ErrNotFound = errors.New("invocation not found")

	// ErrAmbiguousID means an id prefix matches more than one invocation.
	ErrAmbiguousID = errors.New("ambiguous invocation id")
)

// Invocation end states, matching the placeholder marker states.
const (
	StatusResolved = "resolved"
	StatusFailed   = "failed"
)

// =============================================================================
// INVOCATION
// =============================================================================

// Invocation is one recorded engine run.
type Invocation struct {
	ID          string    `db:"id" json:"id"`
	Command     string    `db:"command" json:"command"`
	Model       string    `db:"model" json:"model"`
	Prompt      string    `db:"prompt" json:"prompt"`
	Template    string    `db:"template" json:"template,omitempty"`
	Temperature float64   `db:"temperature" json:"temperature"`
	Output      string    `db:"output" json:"output,omitempty"`
	Status      string    `db:"status" json:"status"`
	Error       string    `db:"error" json:"error,omitempty"`
	DurationMS  int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Duration returns DurationMS as a time.Duration.
func (i Invocation) Duration() time.Duration {
	return time.Duration(i.DurationMS) * time.Millisecond
}

// =============================================================================
// HISTORY STORE
// =============================================================================

// History is the sqlx-backed invocation log.
type History struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	h, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// New wraps an open database and applies pending migrations.
func New(db *sqlx.DB) (*History, error) {
	// SQLite allows one writer; a single connection also keeps in-memory
	// databases alive for the life of the pool.
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &History{db: db}, nil
}

// goose keeps its dialect and base FS in package globals.
var migrateMu sync.Mutex

// Migrate runs all pending goose migrations from the embedded files.
func Migrate(db *sqlx.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub migrations fs: %w", err)
	}

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	if err := goose.Up(db.DB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record inserts inv, assigning an ID and timestamp when they are empty.
func (h *History) Record(ctx context.Context, inv *Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	inv.CreatedAt = inv.CreatedAt.UTC()

	_, err := h.db.NamedExecContext(ctx, `
		INSERT INTO invocations
			(id, command, model, prompt, template, temperature, output, status, error, duration_ms, created_at)
		VALUES
			(:id, :command, :model, :prompt, :template, :temperature, :output, :status, :error, :duration_ms, :created_at)
	`, inv)
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// List returns up to limit invocations, newest first. limit <= 0 means all.
func (h *History) List(ctx context.Context, limit int) ([]Invocation, error) {
	query := `SELECT * FROM invocations ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []Invocation
	if err := h.db.SelectContext(ctx, &out, h.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	return out, nil
}

// Get returns the invocation with the given id. A unique id prefix of at
// least four characters also matches.
func (h *History) Get(ctx context.Context, id string) (*Invocation, error) {
	var inv Invocation
	err := h.db.GetContext(ctx, &inv, h.db.Rebind(`SELECT * FROM invocations WHERE id = ?`), id)
	if err == nil {
		return &inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get invocation: %w", err)
	}

	if len(id) < 4 || strings.ContainsAny(id, "%_") {
		return nil, ErrNotFound
	}
	var matches []Invocation
	if err := h.db.SelectContext(ctx, &matches, h.db.Rebind(`SELECT * FROM invocations WHERE id LIKE ? LIMIT 2`), id+"%"); err != nil {
		return nil, fmt.Errorf("get invocation: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousID, id)
	}
}

// Count returns the number of stored invocations.
func (h *History) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM invocations`); err != nil {
		return 0, fmt.Errorf("count invocations: %w", err)
	}
	return n, nil
}

// Prune deletes all but the newest keep invocations and reports how many
// rows were removed.
func (h *History) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := h.db.ExecContext(ctx, h.db.Rebind(`
		DELETE FROM invocations WHERE id NOT IN (
			SELECT id FROM invocations ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`), keep)
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	return res.RowsAffected()
}
