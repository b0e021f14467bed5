package storageengine

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"TomeDB/storage_engine/btree"
	table "TomeDB/storage_engine/table_manager"
)

/*
Record operations on an open table.

The engine validates arguments, maintains the read cache, and delegates the
actual work to the tree. Keys must be 1..65535 bytes; values 1..65535
(zero-length values are rejected: the record codec treats them as
unreadable, so accepting them on insert would create records no read can
return).
*/

func validateKey(key []byte) error {
	if len(key) == 0 {
		return errors.Wrap(ErrInvalidArgument, "empty key")
	}
	if len(key) > math.MaxUint16 {
		return errors.Wrapf(ErrInvalidArgument, "key of %d bytes", len(key))
	}
	return nil
}

func validateValue(value []byte) error {
	if len(value) == 0 {
		return errors.Wrap(ErrInvalidArgument, "empty value")
	}
	if len(value) > math.MaxUint16 {
		return errors.Wrapf(ErrInvalidArgument, "value of %d bytes", len(value))
	}
	return nil
}

func (se *StorageEngine) cacheKey(h *table.Handle, key []byte) string {
	return h.Name + "/" + string(key)
}

// InsertRecord stores (key, value) in the table. Duplicate keys are
// rejected.
func (se *StorageEngine) InsertRecord(h *table.Handle, key, value []byte) error {
	if h == nil {
		return errors.Wrap(ErrInvalidArgument, "nil table handle")
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	if err := btree.Insert(h, key, value); err != nil {
		return err
	}
	se.cache.Del(se.cacheKey(h, key))
	return nil
}

// GetRecord returns the value stored under key, consulting the record cache
// before descending the tree.
func (se *StorageEngine) GetRecord(h *table.Handle, key []byte) ([]byte, error) {
	if h == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil table handle")
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	ck := se.cacheKey(h, key)
	if value, hit := se.cache.Get(ck); hit {
		return value, nil
	}

	value, err := btree.Search(h, key)
	if err != nil {
		return nil, err
	}
	se.cache.Set(ck, value, int64(len(value)))
	return value, nil
}

// DeleteRecord removes key from the table.
func (se *StorageEngine) DeleteRecord(h *table.Handle, key []byte) error {
	if h == nil {
		return errors.Wrap(ErrInvalidArgument, "nil table handle")
	}
	if err := validateKey(key); err != nil {
		return err
	}

	if err := btree.Delete(h, key); err != nil {
		return err
	}
	se.cache.Del(se.cacheKey(h, key))
	se.cache.Wait()
	return nil
}

// UpdateRecord replaces the value stored under key, as a delete followed by
// an insert. A missing key fails before anything changes. If the re-insert
// fails after the delete succeeded the record is gone; there is no journal
// to roll the delete back with.
func (se *StorageEngine) UpdateRecord(h *table.Handle, key, newValue []byte) error {
	if h == nil {
		return errors.Wrap(ErrInvalidArgument, "nil table handle")
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(newValue); err != nil {
		return err
	}

	if err := btree.Delete(h, key); err != nil {
		return err
	}
	se.cache.Del(se.cacheKey(h, key))
	se.cache.Wait()

	if err := btree.Insert(h, key, newValue); err != nil {
		se.logger.Warn("update lost a record: insert failed after delete",
			zap.String("table", h.Name), zap.Binary("key", key), zap.Error(err))
		return err
	}
	return nil
}
