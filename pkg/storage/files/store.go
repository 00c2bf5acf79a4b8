// Package files implements memo.Store as a directory of Markdown files with
// YAML front-matter, one file per memo.
package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/memos/pkg/logging"
	"github.com/entrhq/memos/pkg/memo"
)

const (
	// StoreName identifies the record store in the schema marker.
	StoreName = "memos"

	// SchemaVersion is the on-disk layout version.
	SchemaVersion = 1

	markerFile = "schema.yaml"
	memoExt    = ".md"
)

var newMemo = memo.New // injected for testability

var _ memo.Store = (*Store)(nil)

type marker struct {
	Store   string `yaml:"store"`
	Version int    `yaml:"version"`
}

// Store keeps memos under a single directory. Writes go through a
// temporary file and a rename, so readers never observe partial files.
type Store struct {
	dir string
	log *logging.Logger

	mu   sync.Mutex // guards open
	open bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for lifecycle and failure messages.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// New creates a store rooted at dir. The directory is created on first use.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir: dir,
		log: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory holding the memo files.
func (s *Store) Dir() string {
	return s.dir
}

// Initialize creates the directory and schema marker when absent. It is a
// no-op on an open store. Failures wrap memo.ErrStorageUnavailable.
func (s *Store) Initialize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}

	if err := s.prepare(); err != nil {
		s.log.Errorf("open %s: %v", s.dir, err)
		return fmt.Errorf("%w: %v", memo.ErrStorageUnavailable, err)
	}

	s.open = true
	s.log.Infof("opened %s (schema v%d)", s.dir, SchemaVersion)
	return nil
}

func (s *Store) prepare() error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("init directory %s: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, markerFile)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		b, err = yaml.Marshal(&marker{Store: StoreName, Version: SchemaVersion})
		if err != nil {
			return fmt.Errorf("encode schema marker: %w", err)
		}
		return writeAtomic(path, b)
	}
	if err != nil {
		return fmt.Errorf("read schema marker: %w", err)
	}

	var m marker
	if err := yaml.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("parse schema marker: %w", err)
	}
	if m.Store != StoreName {
		return fmt.Errorf("directory holds store %q, not %q", m.Store, StoreName)
	}
	if m.Version > SchemaVersion {
		return fmt.Errorf("store schema version %d is newer than supported version %d", m.Version, SchemaVersion)
	}
	return nil
}

func (s *Store) ensure(ctx context.Context) error {
	if err := s.Initialize(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", memo.ErrTransactionFailure, err)
	}
	return nil
}

// Close marks the store closed. The next operation reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	return nil
}

func (s *Store) pathForID(id string) (string, bool) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", false
	}
	return filepath.Join(s.dir, id+memoExt), true
}

// GetAll returns every memo file in the directory. Unreadable or corrupt
// files are skipped.
func (s *Store) GetAll(ctx context.Context) ([]memo.Memo, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", memo.ErrTransactionFailure, s.dir, err)
	}

	memos := []memo.Memo{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != memoExt {
			continue
		}

		path := filepath.Join(s.dir, e.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			s.log.Warnf("skipping unreadable memo file %s: %v", path, err)
			continue
		}
		m, err := Parse(b)
		if err != nil {
			s.log.Warnf("skipping corrupt memo file %s: %v", path, err)
			continue
		}
		memos = append(memos, m)
	}
	return memos, nil
}

// GetByID returns the memo with id, or nil when there is none.
func (s *Store) GetByID(ctx context.Context, id string) (*memo.Memo, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	path, ok := s.pathForID(id)
	if !ok {
		return nil, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", memo.ErrTransactionFailure, path, err)
	}

	m, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memo.ErrTransactionFailure, err)
	}
	return &m, nil
}

// Create writes a new memo file. An existing file with the same id is never
// overwritten; that case returns memo.ErrWriteConflict.
func (s *Store) Create(ctx context.Context, text string) (*memo.Memo, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	m := newMemo(text)
	path, ok := s.pathForID(m.ID)
	if !ok {
		return nil, fmt.Errorf("%w: invalid memo id %q", memo.ErrTransactionFailure, m.ID)
	}

	b, err := Serialize(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memo.ErrTransactionFailure, err)
	}

	if err := writeExclusive(path, b); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: create memo %s: already exists", memo.ErrWriteConflict, m.ID)
		}
		return nil, fmt.Errorf("%w: create memo %s: %v", memo.ErrTransactionFailure, m.ID, err)
	}

	return &m, nil
}

// Update rewrites an existing memo with new text and a refreshed UpdatedAt.
// It returns nil when the memo does not exist.
func (s *Store) Update(ctx context.Context, id, text string) (*memo.Memo, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil || existing == nil {
		return nil, err
	}

	updated := memo.Edited(*existing, text)
	b, err := Serialize(updated)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memo.ErrTransactionFailure, err)
	}

	path, _ := s.pathForID(id)
	if err := writeAtomic(path, b); err != nil {
		return nil, fmt.Errorf("%w: update memo %s: %v", memo.ErrTransactionFailure, id, err)
	}

	return &updated, nil
}

// Delete removes a memo file. It returns false when the memo does not exist.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil || existing == nil {
		return false, err
	}

	path, _ := s.pathForID(id)
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: delete memo %s: %v", memo.ErrTransactionFailure, id, err)
	}

	return true, nil
}

// writeAtomic replaces path with b via a uniquely named temporary file.
func writeAtomic(path string, b []byte) error {
	tmp, err := writeTemp(path, b)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("atomic rename %s: %w", path, err)
	}
	return nil
}

// writeExclusive publishes b at path only if nothing exists there yet.
// os.Link refuses to replace an existing file, which makes the check and
// the write a single step.
func writeExclusive(path string, b []byte) error {
	tmp, err := writeTemp(path, b)
	if err != nil {
		return err
	}
	defer os.Remove(tmp) //nolint:errcheck

	if err := os.Link(tmp, path); err != nil {
		return err
	}
	return nil
}

func writeTemp(path string, b []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(b); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}
