package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/memos/pkg/memo"
	"github.com/entrhq/memos/pkg/storage/storagetest"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(filepath.Join(t.TempDir(), DefaultFileName))
}

func TestEngineConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) memo.Store {
		return newTestEngine(t)
	})
}

func rawDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitializeCreatesSchemaOnce(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	defer e.Close()

	require.NoError(t, e.Initialize(ctx))
	require.NoError(t, e.Initialize(ctx))
	require.NoError(t, e.Close())
	require.NoError(t, e.Initialize(ctx))
	require.NoError(t, e.Close())

	db := rawDB(t, e.Path())

	var indexes int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = 'memos' AND name LIKE 'idx_memos_%'`).Scan(&indexes)
	require.NoError(t, err)
	assert.Equal(t, 2, indexes)

	var tables int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'memos'`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 1, tables)

	var version int
	require.NoError(t, db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, SchemaVersion, version)
}

func TestTimestampsStoredAsStrings(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	defer e.Close()

	m, err := e.Create(ctx, "stored")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	var created, updated string
	err = rawDB(t, e.Path()).QueryRow(`SELECT created_at, updated_at FROM memos WHERE id = ?`, m.ID).Scan(&created, &updated)
	require.NoError(t, err)

	assert.Equal(t, memo.FormatTimestamp(m.CreatedAt), created)
	assert.Equal(t, created, updated)
	assert.True(t, strings.HasSuffix(created, "Z"))
}

func TestInitializeUnavailableIsRetryable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// A regular file where the data directory should be makes the open fail.
	blocker := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	e := New(filepath.Join(blocker, DefaultFileName))
	defer e.Close()

	err := e.Initialize(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, memo.ErrStorageUnavailable), "got %v", err)

	_, err = e.GetAll(ctx)
	assert.True(t, errors.Is(err, memo.ErrStorageUnavailable), "got %v", err)

	require.NoError(t, os.Remove(blocker))
	require.NoError(t, e.Initialize(ctx))

	all, err := e.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestInitializeRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)

	db := rawDB(t, path)
	_, err := db.Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	e := New(path)
	defer e.Close()

	err = e.Initialize(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, memo.ErrStorageUnavailable))
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestCreateIDCollisionIsWriteConflict(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	defer e.Close()

	newMemo = func(text string) memo.Memo {
		m := memo.New(text)
		m.ID = "memo_fixed"
		return m
	}
	defer func() { newMemo = memo.New }()

	_, err := e.Create(ctx, "first")
	require.NoError(t, err)

	_, err = e.Create(ctx, "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, memo.ErrWriteConflict), "got %v", err)

	got, err := e.GetByID(ctx, "memo_fixed")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Text)
}

func TestCanceledContextIsTransactionFailure(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	require.NoError(t, e.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.GetAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, memo.ErrTransactionFailure), "got %v", err)
}

func TestCorruptTimestampIsTransactionFailure(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	defer e.Close()
	require.NoError(t, e.Initialize(ctx))

	db, err := e.conn(ctx)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO memos (id, text, created_at, updated_at) VALUES ('memo_bad', 'x', 'yesterday', 'today')`)
	require.NoError(t, err)

	_, err = e.GetByID(ctx, "memo_bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, memo.ErrTransactionFailure))
	assert.Contains(t, err.Error(), "created_at")
}
