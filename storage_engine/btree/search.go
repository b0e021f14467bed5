package btree

import (
	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

// Search returns the value stored under key, copied into an owned buffer.
func Search(h *table.Handle, key []byte) ([]byte, error) {
	if h.RootPage == 0 {
		return nil, ErrKeyNotFound
	}

	var leaf page.Page
	if _, err := findLeafPage(h, key, &leaf); err != nil {
		return nil, err
	}

	result := leaf.SearchRecord(key)
	if !result.Found {
		return nil, ErrKeyNotFound
	}

	value, ok := leaf.SlotValue(result.Index)
	if !ok {
		return nil, ErrKeyNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}
