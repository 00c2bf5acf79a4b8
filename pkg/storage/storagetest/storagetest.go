// Package storagetest holds the behavioural suite every memo.Store
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/memos/pkg/memo"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) memo.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s memo.Store)
	}{
		{"InitializeIsIdempotent", testInitializeIsIdempotent},
		{"CreateStampsEqualTimes", testCreateStampsEqualTimes},
		{"GetAllNormalizesDates", testGetAllNormalizesDates},
		{"GetByIDMissing", testGetByIDMissing},
		{"ListAgreesWithGet", testListAgreesWithGet},
		{"UpdateKeepsIdentity", testUpdateKeepsIdentity},
		{"UpdateMissing", testUpdateMissing},
		{"DeleteThenGet", testDeleteThenGet},
		{"TextRoundTrip", testTextRoundTrip},
		{"ReopenAfterClose", testReopenAfterClose},
		{"ConcurrentCreates", testConcurrentCreates},
		{"ConcurrentUpdatesRace", testConcurrentUpdatesRace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testInitializeIsIdempotent(t *testing.T, s memo.Store) {
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testCreateStampsEqualTimes(t *testing.T, s memo.Store) {
	ctx := context.Background()

	m, err := s.Create(ctx, "Buy milk")
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Buy milk", m.Text)
	assert.True(t, m.CreatedAt.Equal(m.UpdatedAt), "createdAt %v != updatedAt %v", m.CreatedAt, m.UpdatedAt)
	assert.WithinDuration(t, time.Now(), m.CreatedAt, time.Minute)
}

func testGetAllNormalizesDates(t *testing.T, s memo.Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, "dated")
	require.NoError(t, err)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, got.UpdatedAt.Equal(created.UpdatedAt))
}

func testGetByIDMissing(t *testing.T, s memo.Store) {
	m, err := s.GetByID(context.Background(), "memo_missing")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func testListAgreesWithGet(t *testing.T, s memo.Store) {
	ctx := context.Background()

	for _, text := range []string{"Buy milk", "Write report", "Buy eggs"} {
		_, err := s.Create(ctx, text)
		require.NoError(t, err)
	}

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	for _, listed := range all {
		got, err := s.GetByID(ctx, listed.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, listed, *got)
	}
}

func testUpdateKeepsIdentity(t *testing.T, s memo.Store) {
	ctx := context.Background()

	original, err := s.Create(ctx, "draft")
	require.NoError(t, err)

	updated, err := s.Update(ctx, original.ID, "final")
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, original.ID, updated.ID)
	assert.True(t, original.CreatedAt.Equal(updated.CreatedAt))
	assert.Equal(t, "final", updated.Text)
	assert.True(t, updated.UpdatedAt.After(original.UpdatedAt), "updatedAt must strictly increase")
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	stored, err := s.GetByID(ctx, original.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, *updated, *stored)
}

func testUpdateMissing(t *testing.T, s memo.Store) {
	m, err := s.Update(context.Background(), "memo_missing", "text")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func testDeleteThenGet(t *testing.T, s memo.Store) {
	ctx := context.Background()

	m, err := s.Create(ctx, "temporary")
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = s.Delete(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func testTextRoundTrip(t *testing.T, s memo.Store) {
	ctx := context.Background()

	texts := []string{
		"Привет, мир! Купить молоко 🥛",
		`She said "hello" and 'goodbye'`,
		"line one\nline two\n---\nline four",
		"\n\nleading newlines",
		"日本語のメモ\t(tab)",
		"",
	}

	for _, text := range texts {
		created, err := s.Create(ctx, text)
		require.NoError(t, err)

		got, err := s.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, text, got.Text)
	}
}

func testReopenAfterClose(t *testing.T, s memo.Store) {
	ctx := context.Background()

	m, err := s.Create(ctx, "survives close")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice must be harmless")

	got, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "survives close", got.Text)
}

func testConcurrentCreates(t *testing.T, s memo.Store) {
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Create(ctx, fmt.Sprintf("memo %d", i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent create failed: %v", err)
	}

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func testConcurrentUpdatesRace(t *testing.T, s memo.Store) {
	ctx := context.Background()

	m, err := s.Create(ctx, "initial")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*memo.Memo, 2)
	for i, text := range []string{"A", "B"} {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			updated, err := s.Update(ctx, m.ID, text)
			assert.NoError(t, err)
			results[i] = updated
		}(i, text)
	}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])

	final, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Contains(t, []string{"A", "B"}, final.Text)
	assert.Equal(t, m.CreatedAt, final.CreatedAt)
}
