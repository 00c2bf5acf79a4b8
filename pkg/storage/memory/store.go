// Package memory implements memo.Store in process memory. It is NOT
// persistent and is only suitable for tests and throwaway sessions.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/memos/pkg/memo"
)

// record mirrors the persisted shape: timestamps are kept as strings so
// every read goes through the same normalization as the durable backends.
type record struct {
	id        string
	text      string
	createdAt string
	updatedAt string
}

var _ memo.Store = (*Store)(nil)

// Store is a map-backed memo.Store. Its contents survive Close, matching a
// database that is closed and reopened.
type Store struct {
	mu      sync.RWMutex
	records map[string]record
	open    bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records: make(map[string]record),
	}
}

// Initialize marks the store open.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = true
	return nil
}

// Close marks the store closed; the next call reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	return nil
}

func (s *Store) ensure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", memo.ErrTransactionFailure, err)
	}
	return s.Initialize(ctx)
}

// GetAll returns every stored memo.
func (s *Store) GetAll(ctx context.Context) ([]memo.Memo, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	memos := make([]memo.Memo, 0, len(s.records))
	for _, r := range s.records {
		m, err := r.memo()
		if err != nil {
			return nil, err
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

	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	m, err := r.memo()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create stores a new memo.
func (s *Store) Create(ctx context.Context, text string) (*memo.Memo, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	m := memo.New(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[m.ID]; exists {
		return nil, fmt.Errorf("%w: create memo %s: already exists", memo.ErrWriteConflict, m.ID)
	}
	s.records[m.ID] = toRecord(m)
	return &m, nil
}

// Update replaces the text of an existing memo. It returns nil when the
// memo does not exist. Like the durable backends, the lookup and the write
// happen under separate locks.
func (s *Store) Update(ctx context.Context, id, text string) (*memo.Memo, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil || existing == nil {
		return nil, err
	}

	updated := memo.Edited(*existing, text)

	s.mu.Lock()
	s.records[id] = toRecord(updated)
	s.mu.Unlock()

	return &updated, nil
}

// Delete removes a memo. It returns false when the memo does not exist.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil || existing == nil {
		return false, err
	}

	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()

	return true, nil
}

func toRecord(m memo.Memo) record {
	return record{
		id:        m.ID,
		text:      m.Text,
		createdAt: memo.FormatTimestamp(m.CreatedAt),
		updatedAt: memo.FormatTimestamp(m.UpdatedAt),
	}
}

func (r record) memo() (memo.Memo, error) {
	created, err := memo.ParseTimestamp(r.createdAt)
	if err != nil {
		return memo.Memo{}, fmt.Errorf("%w: memo %s: created_at: %v", memo.ErrTransactionFailure, r.id, err)
	}
	updated, err := memo.ParseTimestamp(r.updatedAt)
	if err != nil {
		return memo.Memo{}, fmt.Errorf("%w: memo %s: updated_at: %v", memo.ErrTransactionFailure, r.id, err)
	}
	return memo.Memo{ID: r.id, Text: r.text, CreatedAt: created, UpdatedAt: updated}, nil
}
