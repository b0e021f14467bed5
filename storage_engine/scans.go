package storageengine

import (
	"math"

	"github.com/pkg/errors"

	"TomeDB/storage_engine/btree"
	table "TomeDB/storage_engine/table_manager"
)

// RangeScan visits every record with startKey <= key <= endKey in ascending
// byte-wise order. An empty startKey means "from the beginning", an empty
// endKey "to the end". The callback can stop the scan by returning false.
func (se *StorageEngine) RangeScan(h *table.Handle, startKey, endKey []byte, fn ScanFunc) error {
	if h == nil {
		return errors.Wrap(ErrInvalidArgument, "nil table handle")
	}
	if fn == nil {
		return errors.Wrap(ErrInvalidArgument, "nil scan callback")
	}
	if len(startKey) > math.MaxUint16 || len(endKey) > math.MaxUint16 {
		return errors.Wrap(ErrInvalidArgument, "scan bound longer than a key can be")
	}

	it, err := btree.NewScan(h, startKey, endKey)
	if err != nil {
		return err
	}
	for ; it.Valid(); it.Next() {
		if !fn(it.Key(), it.Value()) {
			return nil
		}
	}
	return it.Err()
}

// ScanTable visits every record of the table in ascending key order.
func (se *StorageEngine) ScanTable(h *table.Handle, fn ScanFunc) error {
	return se.RangeScan(h, nil, nil, fn)
}
