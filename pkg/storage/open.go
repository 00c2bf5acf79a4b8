// Package storage selects a memo.Store backend from configuration.
package storage

import (
	"fmt"

	"github.com/entrhq/memos/pkg/config"
	"github.com/entrhq/memos/pkg/logging"
	"github.com/entrhq/memos/pkg/memo"
	"github.com/entrhq/memos/pkg/storage/files"
	"github.com/entrhq/memos/pkg/storage/memory"
	"github.com/entrhq/memos/pkg/storage/sqlite"
)

// Open builds the backend named by cfg.Backend. The returned store is not
// yet initialized; the first call (or Initialize) opens it.
func Open(cfg config.StorageConfig, log *logging.Logger) (memo.Store, error) {
	if log == nil {
		log = logging.Discard()
	}

	switch cfg.Backend {
	case config.BackendSQLite, "":
		path := cfg.Path
		if path == "" {
			path = sqlite.DefaultFileName
		}
		log.Infof("Using sqlite storage at %s", path)
		return sqlite.New(path, sqlite.WithLogger(log.With("sqlite"))), nil
	case config.BackendFiles:
		if cfg.Path == "" {
			return nil, fmt.Errorf("files backend requires a directory")
		}
		log.Infof("Using file storage in %s", cfg.Path)
		return files.New(cfg.Path, files.WithLogger(log.With("files"))), nil
	case config.BackendMemory:
		log.Warnf("Using in-memory storage; memos will not persist")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
