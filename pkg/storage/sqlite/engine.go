// Package sqlite implements memo.Store on an embedded SQLite database
// through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/entrhq/memos/pkg/logging"
	"github.com/entrhq/memos/pkg/memo"
)

const (
	// DefaultFileName is the database file created inside the data directory.
	DefaultFileName = "voice-memos.db"

	// SchemaVersion is recorded in PRAGMA user_version.
	SchemaVersion = 1

	// Extended result codes for primary key and unique violations.
	codeConstraintPrimaryKey = 1555
	codeConstraintUnique     = 2067
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS memos (
		id         TEXT PRIMARY KEY,
		text       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memos_created_at ON memos(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_memos_updated_at ON memos(updated_at)`,
}

var (
	openDB  = sql.Open // injected for testability
	newMemo = memo.New
)

var _ memo.Store = (*Engine)(nil)

// Engine is a memo.Store backed by a single SQLite file. The connection
// pool is opened lazily and reopened after Close.
//
// Update and Delete read the record before writing it, in separate
// transactions, so a concurrent writer can slip in between the two.
type Engine struct {
	path string
	log  *logging.Logger

	mu sync.Mutex // guards db
	db *sql.DB
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for lifecycle and failure messages.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// New creates an engine for the database file at path. Nothing is opened
// until the first operation.
func New(path string, opts ...Option) *Engine {
	e := &Engine{
		path: path,
		log:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Path returns the database file path.
func (e *Engine) Path() string {
	return e.path
}

// Initialize opens the database and applies the schema. It returns
// immediately when the engine is already open. Failures wrap
// memo.ErrStorageUnavailable and leave the engine closed, so callers may
// retry.
func (e *Engine) Initialize(ctx context.Context) error {
	_, err := e.conn(ctx)
	return err
}

func (e *Engine) conn(ctx context.Context) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		return e.db, nil
	}

	db, err := e.open(ctx)
	if err != nil {
		e.log.Errorf("open %s: %v", e.path, err)
		return nil, fmt.Errorf("%w: %v", memo.ErrStorageUnavailable, err)
	}

	e.log.Infof("opened %s (schema v%d)", e.path, SchemaVersion)
	e.db = db
	return db, nil
}

func (e *Engine) open(ctx context.Context) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(e.path), 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := "file:" + e.path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// migrate creates the table and indexes when absent and stamps the schema
// version. Running it against an up-to-date database changes nothing.
func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	if version < SchemaVersion {
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Close releases the connection pool. Later calls reopen it.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return nil
	}

	err := e.db.Close()
	e.db = nil
	if err != nil {
		return fmt.Errorf("%w: close database: %v", memo.ErrTransactionFailure, err)
	}
	e.log.Infof("closed %s", e.path)
	return nil
}

// GetAll returns every stored memo in no particular order.
func (e *Engine) GetAll(ctx context.Context) ([]memo.Memo, error) {
	db, err := e.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, text, created_at, updated_at FROM memos`)
	if err != nil {
		return nil, failure("get memos", err)
	}
	defer rows.Close()

	memos := []memo.Memo{}
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, failure("get memos", err)
		}
		memos = append(memos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, failure("get memos", err)
	}

	return memos, nil
}

// GetByID returns the memo with id, or nil when there is none.
func (e *Engine) GetByID(ctx context.Context, id string) (*memo.Memo, error) {
	db, err := e.conn(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `SELECT id, text, created_at, updated_at FROM memos WHERE id = ?`, id)
	m, err := scanMemo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, failure("get memo", err)
	}
	return &m, nil
}

// Create stores a new memo with a generated id and returns it.
func (e *Engine) Create(ctx context.Context, text string) (*memo.Memo, error) {
	db, err := e.conn(ctx)
	if err != nil {
		return nil, err
	}

	m := newMemo(text)
	err = withTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO memos (id, text, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			m.ID, m.Text, memo.FormatTimestamp(m.CreatedAt), memo.FormatTimestamp(m.UpdatedAt),
		)
		return err
	})
	if err != nil {
		if isConstraint(err) {
			return nil, fmt.Errorf("%w: create memo %s: %v", memo.ErrWriteConflict, m.ID, err)
		}
		return nil, failure("create memo", err)
	}

	return &m, nil
}

// Update replaces the text of an existing memo and refreshes UpdatedAt.
// It returns nil when the memo does not exist.
func (e *Engine) Update(ctx context.Context, id, text string) (*memo.Memo, error) {
	existing, err := e.GetByID(ctx, id)
	if err != nil || existing == nil {
		return nil, err
	}

	db, err := e.conn(ctx)
	if err != nil {
		return nil, err
	}

	updated := memo.Edited(*existing, text)
	err = withTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO memos (id, text, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at`,
			updated.ID, updated.Text, memo.FormatTimestamp(updated.CreatedAt), memo.FormatTimestamp(updated.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return nil, failure("update memo "+id, err)
	}

	return &updated, nil
}

// Delete removes a memo. It returns false when the memo does not exist.
func (e *Engine) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := e.GetByID(ctx, id)
	if err != nil || existing == nil {
		return false, err
	}

	db, err := e.conn(ctx)
	if err != nil {
		return false, err
	}

	err = withTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM memos WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return false, failure("delete memo "+id, err)
	}

	return true, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemo(row rowScanner) (memo.Memo, error) {
	var (
		m                memo.Memo
		created, updated string
	)
	if err := row.Scan(&m.ID, &m.Text, &created, &updated); err != nil {
		return memo.Memo{}, err
	}

	var err error
	if m.CreatedAt, err = memo.ParseTimestamp(created); err != nil {
		return memo.Memo{}, fmt.Errorf("memo %s: created_at: %w", m.ID, err)
	}
	if m.UpdatedAt, err = memo.ParseTimestamp(updated); err != nil {
		return memo.Memo{}, fmt.Errorf("memo %s: updated_at: %w", m.ID, err)
	}
	return m, nil
}

func failure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", memo.ErrTransactionFailure, op, err)
}

func isConstraint(err error) bool {
	var coded interface{ Code() int }
	if !errors.As(err, &coded) {
		return false
	}
	code := coded.Code()
	return code == codeConstraintPrimaryKey || code == codeConstraintUnique
}
