package memo

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStorageUnavailable is returned when the database cannot be opened.
	// The store stays closed, so the caller may retry.
	ErrStorageUnavailable = errors.New("memo: storage unavailable")

	// ErrWriteConflict is returned when an insert collides with an existing id.
	ErrWriteConflict = errors.New("memo: write conflict")

	// ErrTransactionFailure wraps any other failure of a database transaction.
	ErrTransactionFailure = errors.New("memo: transaction failed")
)

// Memo is a single persisted note.
type Memo struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is the storage engine contract. Lookups that miss are not errors:
// GetByID and Update return a nil memo, Delete returns false.
//
// Implementations open their connection lazily, so every method except
// Close initializes on demand, and Close may be followed by further calls.
type Store interface {
	Initialize(ctx context.Context) error
	GetAll(ctx context.Context) ([]Memo, error)
	GetByID(ctx context.Context, id string) (*Memo, error)
	Create(ctx context.Context, text string) (*Memo, error)
	Update(ctx context.Context, id, text string) (*Memo, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

var timeNow = time.Now // injected for testability

// Now returns the current wall-clock time in UTC with the monotonic
// reading stripped, so values compare equal after a storage round trip.
func Now() time.Time {
	return timeNow().UTC().Round(0)
}

// Touch returns a fresh UpdatedAt for an edit of m. The result is always
// strictly after m.UpdatedAt, even when the clock has not advanced.
func Touch(m Memo) time.Time {
	now := Now()
	if !now.After(m.UpdatedAt) {
		now = m.UpdatedAt.Add(time.Nanosecond)
	}
	return now
}

// Edited returns a copy of m carrying the new text and a refreshed UpdatedAt.
// ID and CreatedAt are preserved.
func Edited(m Memo, text string) Memo {
	return Memo{
		ID:        m.ID,
		Text:      text,
		CreatedAt: m.CreatedAt,
		UpdatedAt: Touch(m),
	}
}

// New builds a memo for text with a fresh id and equal timestamps.
func New(text string) Memo {
	now := Now()
	return Memo{
		ID:        NewID(),
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
