package btree

import (
	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

// Iterator is a forward-only scan over the leaf chain: a lazy, finite,
// non-restartable sequence of (key, value) views. It walks leaf slots in
// order and follows next_page_id across pages, copying each leaf out of the
// pool so no pin is held between Next calls.
//
// Key and Value return views into the iterator's page buffer; they are
// valid until the next call to Next.
type Iterator struct {
	handle *table.Handle
	page   page.Page
	index  uint16
	endKey []byte
	valid  bool
	err    error
}

// NewScan positions an iterator at the first key >= startKey. An empty
// startKey scans from the beginning; an empty endKey scans to the end, and
// both bounds are inclusive.
func NewScan(h *table.Handle, startKey, endKey []byte) (*Iterator, error) {
	it := &Iterator{handle: h}
	if len(endKey) > 0 {
		it.endKey = append([]byte(nil), endKey...)
	}

	if h.RootPage == 0 {
		return it, nil
	}

	if len(startKey) == 0 {
		if _, err := findLeftmostLeafPage(h, &it.page); err != nil {
			return nil, err
		}
		it.index = 0
	} else {
		if _, err := findLeafPage(h, startKey, &it.page); err != nil {
			return nil, err
		}
		it.index = it.page.SearchRecord(startKey).Index
	}

	it.valid = true
	it.settle()
	return it, nil
}

// Valid reports whether the iterator is positioned on a record.
func (it *Iterator) Valid() bool {
	return it.valid
}

// Next advances to the following record.
func (it *Iterator) Next() {
	if !it.valid {
		return
	}
	it.index++
	it.settle()
}

// Key returns the current key.
func (it *Iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	key, _ := it.page.SlotKey(it.index)
	return key
}

// Value returns the current value.
func (it *Iterator) Value() []byte {
	if !it.valid {
		return nil
	}
	value, _ := it.page.SlotValue(it.index)
	return value
}

// Err reports an I/O failure that ended the scan early.
func (it *Iterator) Err() error {
	return it.err
}

// settle moves the iterator to the next readable record, hopping leaves via
// next_page_id, and invalidates it past the end bound or the last leaf.
func (it *Iterator) settle() {
	for it.valid {
		if it.index < it.page.CellCount() {
			key, okKey := it.page.SlotKey(it.index)
			_, okValue := it.page.SlotValue(it.index)
			if !okKey || !okValue {
				it.index++
				continue
			}
			if len(it.endKey) > 0 && page.CompareKeys(key, it.endKey) > 0 {
				it.valid = false
				return
			}
			return
		}

		nextPageID := it.page.NextPageID()
		if nextPageID == 0 {
			it.valid = false
			return
		}
		if err := readPageCopy(it.handle, nextPageID, &it.page); err != nil {
			it.err = err
			it.valid = false
			return
		}
		it.index = 0
	}
}
