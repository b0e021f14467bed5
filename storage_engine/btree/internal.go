package btree

import (
	"encoding/binary"

	"TomeDB/storage_engine/page"
)

/*
Internal page entry codec.

An internal entry is {key_size:u16, child_page:u32} followed by the key
bytes, appended into the page heap like a leaf record and indexed by the
same slot directory. The child left of entry 0 lives in the page header's
leftmost-child field, so a page with n entries routes to n+1 children.
*/

const internalEntryHeaderSize = 6

// internalSlotKey returns the routing key of entry index.
func internalSlotKey(p *page.Page, index uint16) ([]byte, bool) {
	offset, ok := p.Slot(index)
	if !ok {
		return nil, false
	}
	if offset < page.PageHeaderSize || offset >= p.FreeStart() {
		return nil, false
	}
	keySize := binary.LittleEndian.Uint16(p.Data[offset:])
	if keySize == 0 || int(offset)+internalEntryHeaderSize+int(keySize) > int(p.FreeStart()) {
		return nil, false
	}
	start := int(offset) + internalEntryHeaderSize
	return p.Data[start : start+int(keySize)], true
}

// internalEntryChild returns the child page id of entry index.
func internalEntryChild(p *page.Page, index uint16) (uint32, bool) {
	offset, ok := p.Slot(index)
	if !ok {
		return 0, false
	}
	if offset < page.PageHeaderSize || int(offset)+internalEntryHeaderSize > int(p.FreeStart()) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(p.Data[offset+2:]), true
}

// internalEntryBytes returns the raw encoded entry, header and key, for
// verbatim moves during an internal split.
func internalEntryBytes(p *page.Page, index uint16) ([]byte, bool) {
	offset, ok := p.Slot(index)
	if !ok {
		return nil, false
	}
	if offset < page.PageHeaderSize || int(offset)+internalEntryHeaderSize > int(p.FreeStart()) {
		return nil, false
	}
	keySize := binary.LittleEndian.Uint16(p.Data[offset:])
	end := int(offset) + internalEntryHeaderSize + int(keySize)
	if end > int(p.FreeStart()) {
		return nil, false
	}
	return p.Data[offset:end], true
}

// writeInternalEntry appends an entry at FreeStart and returns its offset.
// The slot directory is untouched.
func writeInternalEntry(p *page.Page, key []byte, child uint32) uint16 {
	offset := p.FreeStart()
	size := uint16(internalEntryHeaderSize + len(key))
	if int(offset)+int(size) > int(p.FreeEnd()) {
		return 0
	}

	binary.LittleEndian.PutUint16(p.Data[offset:], uint16(len(key)))
	binary.LittleEndian.PutUint32(p.Data[offset+2:], child)
	copy(p.Data[offset+internalEntryHeaderSize:], key)
	p.SetFreeStart(offset + size)
	return offset
}

// internalSearchRecord binary-searches the entry keys. On a miss the index
// is the insertion point.
func internalSearchRecord(p *page.Page, key []byte) page.SearchResult {
	left := uint16(0)
	right := p.CellCount()

	for left < right {
		mid := left + (right-left)/2
		midKey, ok := internalSlotKey(p, mid)
		if !ok {
			return page.SearchResult{Found: false, Index: left}
		}
		cmp := page.CompareKeys(midKey, key)
		if cmp < 0 {
			left = mid + 1
		} else if cmp > 0 {
			right = mid
		} else {
			return page.SearchResult{Found: true, Index: mid}
		}
	}
	return page.SearchResult{Found: false, Index: left}
}

// internalFindChild picks the child to descend into for key: the leftmost
// child when key sorts before every entry, otherwise the child of the last
// entry whose key is <= key.
func internalFindChild(p *page.Page, key []byte) uint32 {
	count := p.CellCount()

	// smallest pos with key < entry[pos].key
	pos := count
	left, right := 0, int(count)-1
	for left <= right {
		mid := (left + right) / 2
		midKey, ok := internalSlotKey(p, uint16(mid))
		if !ok {
			break
		}
		if page.CompareKeys(key, midKey) < 0 {
			pos = uint16(mid)
			right = mid - 1
		} else {
			left = mid + 1
		}
	}

	if pos == 0 {
		if leftmost := p.LeftmostChild(); leftmost != 0 && leftmost != page.InvalidPageID {
			return leftmost
		}
		// No leftmost pointer: fall through to the first entry if there is one.
		if count > 0 {
			if child, ok := internalEntryChild(p, 0); ok {
				return child
			}
		}
		return 0
	}

	if pos == count {
		if count == 0 {
			return 0
		}
		child, _ := internalEntryChild(p, count-1)
		return child
	}

	child, _ := internalEntryChild(p, pos-1)
	return child
}

// insertInternalNoSplit places (key, child) into the page if it fits.
// Returns false on overflow or a duplicate routing key.
func insertInternalNoSplit(p *page.Page, key []byte, child uint32) bool {
	entrySize := uint16(internalEntryHeaderSize + len(key))
	if !p.CanInsert(entrySize) {
		return false
	}

	sr := internalSearchRecord(p, key)
	if sr.Found {
		return false
	}

	offset := writeInternalEntry(p, key, child)
	if offset == 0 {
		return false
	}
	return p.InsertSlot(sr.Index, offset) == nil
}
