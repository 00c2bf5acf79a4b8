package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/memos/pkg/memo"
	"github.com/entrhq/memos/pkg/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) memo.Store {
		return New()
	})
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Create(ctx, "never stored")
	assert.True(t, errors.Is(err, memo.ErrTransactionFailure), "got %v", err)
}

func TestCorruptRecordSurfacesAsFailure(t *testing.T) {
	s := New()
	s.records["memo_bad"] = record{id: "memo_bad", createdAt: "bad", updatedAt: "bad"}

	_, err := s.GetByID(context.Background(), "memo_bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, memo.ErrTransactionFailure))
}
