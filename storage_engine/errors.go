package storageengine

import (
	"github.com/pkg/errors"

	"TomeDB/storage_engine/btree"
)

// The tree layer already names the storage error conditions; the engine
// re-exports them so callers only import this package, and adds the
// conditions that exist only at the façade.
var (
	ErrNotFound     = btree.ErrKeyNotFound
	ErrDuplicateKey = btree.ErrDuplicateKey
	ErrOutOfSpace   = btree.ErrOutOfSpace
	ErrInternal     = btree.ErrInternal

	ErrInvalidArgument = errors.New("invalid argument")
	ErrTableExists     = errors.New("table already exists")
	ErrTableNotFound   = errors.New("table not found")
)
