package page

import (
	"bytes"
	"encoding/binary"
)

/*
Leaf record codec.

A record is {flags:u8, key_size:u16, value_size:u16} followed by the key and
value bytes. Records are appended at FreeStart and never move within a page;
deletion only sets the RecordDeleted flag and drops the slot, leaving the
bytes in the heap until a split or merge rewrites the page.

SlotKey/SlotValue bounds-check everything against the header before handing
out a view: a corrupt slot yields "no record", never an out-of-range read.
*/

const (
	RecordHeaderSize = 5

	// RecordDeleted marks a heap record whose slot has been removed.
	RecordDeleted uint8 = 1 << 0
)

// RecordSize is the heap footprint of a record with the given key and value
// lengths.
func RecordSize(keySize, valueSize uint16) uint16 {
	return RecordHeaderSize + keySize + valueSize
}

// CompareKeys orders keys byte-wise, shorter-is-smaller on a shared prefix.
// This is the total order used for every search and bound in the tree.
func CompareKeys(first, second []byte) int {
	return bytes.Compare(first, second)
}

// SearchResult reports a binary search over the slot directory. When Found
// is false, Index is the insertion point that keeps the directory sorted.
type SearchResult struct {
	Found bool
	Index uint16
}

// CanInsert reports whether a record of recordSize fits, reserving room for
// one new slot directory entry.
func (p *Page) CanInsert(recordSize uint16) bool {
	slotSpace := int(p.CellCount()+1) * 2
	return int(p.FreeStart())+int(recordSize)+slotSpace <= int(p.FreeEnd())
}

// WriteRecord appends a record at FreeStart and advances it. It does not
// touch the slot directory. Returns the record offset, or 0 if the record
// does not fit below FreeEnd.
func (p *Page) WriteRecord(key, value []byte) uint16 {
	offset := p.FreeStart()
	total := RecordSize(uint16(len(key)), uint16(len(value)))
	if int(offset)+int(total) > int(p.FreeEnd()) {
		return 0
	}

	p.Data[offset] = 0
	binary.LittleEndian.PutUint16(p.Data[offset+1:], uint16(len(key)))
	binary.LittleEndian.PutUint16(p.Data[offset+3:], uint16(len(value)))
	copy(p.Data[offset+RecordHeaderSize:], key)
	copy(p.Data[int(offset)+RecordHeaderSize+len(key):], value)

	p.SetFreeStart(offset + total)
	return offset
}

// WriteRawRecord appends pre-encoded record (or internal entry) bytes
// verbatim at FreeStart. Used by split and merge, which move records between
// pages without re-encoding them.
func (p *Page) WriteRawRecord(raw []byte) uint16 {
	offset := p.FreeStart()
	if int(offset)+len(raw) > int(p.FreeEnd()) {
		return 0
	}
	if offset < PageHeaderSize {
		return 0
	}
	copy(p.Data[offset:], raw)
	p.SetFreeStart(offset + uint16(len(raw)))
	return offset
}

// recordHeaderAt decodes the record header at offset. No bounds checking;
// callers validate the offset first.
func (p *Page) recordHeaderAt(offset uint16) (flags uint8, keySize, valueSize uint16) {
	flags = p.Data[offset]
	keySize = binary.LittleEndian.Uint16(p.Data[offset+1:])
	valueSize = binary.LittleEndian.Uint16(p.Data[offset+3:])
	return flags, keySize, valueSize
}

// SlotKey returns a view of the key stored under slot slotIndex. The second
// return is false if the slot, record offset, or key bounds are invalid.
func (p *Page) SlotKey(slotIndex uint16) ([]byte, bool) {
	offset, ok := p.Slot(slotIndex)
	if !ok {
		return nil, false
	}
	if offset < PageHeaderSize || offset >= p.FreeStart() {
		return nil, false
	}
	_, keySize, _ := p.recordHeaderAt(offset)
	if keySize == 0 || keySize > PageSize {
		return nil, false
	}
	if int(offset)+RecordHeaderSize+int(keySize) > int(p.FreeStart()) {
		return nil, false
	}
	start := int(offset) + RecordHeaderSize
	return p.Data[start : start+int(keySize)], true
}

// SlotValue returns a view of the value stored under slot slotIndex.
// Zero-length values are treated as invalid, same as a corrupt record.
func (p *Page) SlotValue(slotIndex uint16) ([]byte, bool) {
	offset, ok := p.Slot(slotIndex)
	if !ok {
		return nil, false
	}
	if offset < PageHeaderSize || offset >= p.FreeStart() {
		return nil, false
	}
	_, keySize, valueSize := p.recordHeaderAt(offset)
	if keySize == 0 || keySize > PageSize || valueSize == 0 || valueSize > PageSize {
		return nil, false
	}
	keyEnd := int(offset) + RecordHeaderSize + int(keySize)
	if keyEnd+int(valueSize) > int(p.FreeStart()) {
		return nil, false
	}
	return p.Data[keyEnd : keyEnd+int(valueSize)], true
}

// SlotRecordSize returns the heap footprint of the record under slot
// slotIndex, counting header, key and value bytes.
func (p *Page) SlotRecordSize(slotIndex uint16) (uint16, bool) {
	offset, ok := p.Slot(slotIndex)
	if !ok {
		return 0, false
	}
	if offset < PageHeaderSize || offset >= p.FreeStart() {
		return 0, false
	}
	_, keySize, valueSize := p.recordHeaderAt(offset)
	return RecordSize(keySize, valueSize), true
}

// SlotRecordBytes returns the raw encoded record under slot slotIndex,
// header included, for verbatim moves between pages.
func (p *Page) SlotRecordBytes(slotIndex uint16) ([]byte, bool) {
	offset, ok := p.Slot(slotIndex)
	if !ok {
		return nil, false
	}
	size, ok := p.SlotRecordSize(slotIndex)
	if !ok {
		return nil, false
	}
	return p.Data[offset : offset+size], true
}

// SearchRecord binary-searches the slot directory for key. On a miss the
// returned index is where the key would be inserted.
func (p *Page) SearchRecord(key []byte) SearchResult {
	left := uint16(0)
	right := p.CellCount()

	for left < right {
		mid := left + (right-left)/2
		midKey, ok := p.SlotKey(mid)
		if !ok {
			return SearchResult{Found: false, Index: left}
		}
		cmp := CompareKeys(midKey, key)
		if cmp < 0 {
			left = mid + 1
		} else if cmp > 0 {
			right = mid
		} else {
			return SearchResult{Found: true, Index: mid}
		}
	}
	return SearchResult{Found: false, Index: left}
}

// Insert writes a record and its slot in key order. It fails on a duplicate
// key or insufficient space, rolling back any header mutation so the page is
// unchanged on failure.
func (p *Page) Insert(key, value []byte) bool {
	result := p.SearchRecord(key)
	if result.Found {
		return false
	}

	rsize := RecordSize(uint16(len(key)), uint16(len(value)))
	if !p.CanInsert(rsize) {
		return false
	}

	oldFreeStart := p.FreeStart()
	oldFreeEnd := p.FreeEnd()
	oldCellCount := p.CellCount()

	recordOffset := p.WriteRecord(key, value)
	if recordOffset == 0 {
		p.SetFreeStart(oldFreeStart)
		return false
	}

	if err := p.InsertSlot(result.Index, recordOffset); err != nil {
		p.SetFreeStart(oldFreeStart)
		p.SetFreeEnd(oldFreeEnd)
		p.SetCellCount(oldCellCount)
		return false
	}

	if p.FreeStart() > p.FreeEnd() {
		p.SetFreeStart(oldFreeStart)
		p.SetFreeEnd(oldFreeEnd)
		p.SetCellCount(oldCellCount)
		return false
	}
	return true
}

// Delete marks the record for key as deleted and removes its slot. The heap
// is not compacted; the bytes are reclaimed on the next split or merge.
func (p *Page) Delete(key []byte) bool {
	result := p.SearchRecord(key)
	if !result.Found {
		return false
	}
	offset, ok := p.Slot(result.Index)
	if !ok {
		return false
	}
	p.Data[offset] |= RecordDeleted
	return p.RemoveSlot(result.Index) == nil
}

// LiveRecordBytes sums the heap footprint of every slotted record. FreeStart
// keeps counting deleted heap bytes, so underflow and merge decisions use
// this instead.
func (p *Page) LiveRecordBytes() uint16 {
	total := uint16(0)
	for i := uint16(0); i < p.CellCount(); i++ {
		size, ok := p.SlotRecordSize(i)
		if !ok {
			continue
		}
		total += size
	}
	return total
}
