package storageengine

import (
	"os"
	"path/filepath"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	table "TomeDB/storage_engine/table_manager"
)

/*
The main file of the storage engine: construction and table lifecycle.

Each table is an independent file at <dataDir>/<name>.db with its own disk
manager and buffer pool. The engine keeps one handle per open table and
flushes every handle on Close. A small ristretto cache in front of the tree
serves repeated point reads; all writes go straight to the tree and
invalidate the cached entry.
*/

const (
	defaultDataDir = "data"

	cacheNumCounters = 1 << 16
	cacheMaxCost     = 8 << 20 // 8MB of cached values
	cacheBufferItems = 64
)

// NewStorageEngine builds an engine rooted at the configured data
// directory.
func NewStorageEngine(opts ...Option) (*StorageEngine, error) {
	se := &StorageEngine{
		dataDir:    defaultDataDir,
		openTables: make(map[string]*table.Handle),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(se)
	}

	if err := os.MkdirAll(se.dataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create record cache")
	}
	se.cache = cache

	return se, nil
}

func (se *StorageEngine) tablePath(name string) string {
	return filepath.Join(se.dataDir, name+".db")
}

// CreateTable initialises a new table file. The table is not opened.
func (se *StorageEngine) CreateTable(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidArgument, "empty table name")
	}
	if _, open := se.openTables[name]; open {
		return errors.Wrapf(ErrTableExists, "table %s is open", name)
	}
	if _, err := os.Stat(se.tablePath(name)); err == nil {
		return errors.Wrapf(ErrTableExists, "table %s", name)
	}

	if err := table.Create(se.tablePath(name)); err != nil {
		return err
	}
	se.logger.Info("created table", zap.String("table", name))
	return nil
}

// DropTable closes the table if open and deletes its file.
func (se *StorageEngine) DropTable(name string) error {
	if h, open := se.openTables[name]; open {
		if err := h.Close(); err != nil {
			se.logger.Warn("close during drop failed", zap.String("table", name), zap.Error(err))
		}
		delete(se.openTables, name)
	}

	if err := os.Remove(se.tablePath(name)); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrTableNotFound, "table %s", name)
		}
		return errors.Wrapf(err, "failed to remove table %s", name)
	}

	// Cached records of the dropped table must not survive into a future
	// table of the same name.
	se.cache.Clear()

	se.logger.Info("dropped table", zap.String("table", name))
	return nil
}

// OpenTable returns a handle for the table, opening it on first use.
func (se *StorageEngine) OpenTable(name string) (*table.Handle, error) {
	if h, open := se.openTables[name]; open {
		return h, nil
	}

	h, err := table.Open(name, se.tablePath(name), se.poolSize, se.logger)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(ErrTableNotFound, "table %s", name)
		}
		return nil, err
	}
	se.openTables[name] = h
	return h, nil
}

// CloseTable flushes the table and forgets its handle.
func (se *StorageEngine) CloseTable(h *table.Handle) error {
	if h == nil {
		return nil
	}
	if _, open := se.openTables[h.Name]; !open {
		return nil
	}
	delete(se.openTables, h.Name)
	return h.Close()
}

// FlushAll flushes every open table, best-effort.
func (se *StorageEngine) FlushAll() error {
	var lastErr error
	for name, h := range se.openTables {
		if err := h.BPM.FlushAll(); err != nil {
			se.logger.Warn("flush failed", zap.String("table", name), zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes every open table and releases the cache.
func (se *StorageEngine) Close() error {
	var lastErr error
	for name, h := range se.openTables {
		if err := h.Close(); err != nil {
			se.logger.Warn("close failed", zap.String("table", name), zap.Error(err))
			lastErr = err
		}
		delete(se.openTables, name)
	}
	se.cache.Close()
	return lastErr
}
