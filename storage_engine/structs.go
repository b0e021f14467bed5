package storageengine

import (
	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	table "TomeDB/storage_engine/table_manager"
)

// StorageEngine is the byte-vector surface over the B+Tree tables. It owns
// the registry of open tables and a read cache for hot records; everything
// else lives in the layers below.
type StorageEngine struct {
	dataDir  string
	poolSize int

	openTables map[string]*table.Handle
	cache      *ristretto.Cache[string, []byte]
	logger     *zap.Logger
}

// ScanFunc receives each record of a scan. The key and value slices are
// views valid only for the duration of the call; return false to stop the
// scan early.
type ScanFunc func(key, value []byte) bool

// Option configures the engine at construction time.
type Option func(*StorageEngine)

// WithDataDir sets the directory holding the table files (default "data").
func WithDataDir(dir string) Option {
	return func(se *StorageEngine) {
		se.dataDir = dir
	}
}

// WithPoolSize sets the per-table buffer pool size in frames.
func WithPoolSize(frames int) Option {
	return func(se *StorageEngine) {
		se.poolSize = frames
	}
}

// WithLogger sets the engine logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(se *StorageEngine) {
		se.logger = logger
	}
}
