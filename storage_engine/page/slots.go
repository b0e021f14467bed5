package page

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

/*
Slot directory operations.

Slot i lives at byte offset FreeEnd + i*2 and holds the page offset of
record i. The directory is the authoritative key order: records stay where
they were appended, only slots move. Inserting a slot lowers FreeEnd by two
and shifts the tail of the directory; removing a slot shifts it back and
raises FreeEnd.
*/

var (
	ErrInvalidSlot  = errors.New("invalid slot index")
	ErrSlotsFull    = errors.New("slot directory would overlap record heap")
	ErrSlotOverflow = errors.New("slot directory would exceed page size")
)

// Slot returns the record offset stored in slot index. The second return is
// false for an out-of-range index or a corrupt directory position.
func (p *Page) Slot(index uint16) (uint16, bool) {
	if index >= p.CellCount() {
		return 0, false
	}
	slotOffset := int(p.FreeEnd()) + int(index)*2
	if slotOffset+2 > PageSize {
		return 0, false
	}
	return binary.LittleEndian.Uint16(p.Data[slotOffset:]), true
}

func (p *Page) setSlot(index uint16, recordOffset uint16) {
	slotOffset := int(p.FreeEnd()) + int(index)*2
	binary.LittleEndian.PutUint16(p.Data[slotOffset:], recordOffset)
}

// InsertSlot makes room at position index and stores recordOffset there,
// lowering FreeEnd by two and moving slots [index, CellCount) up by one
// index.
func (p *Page) InsertSlot(index uint16, recordOffset uint16) error {
	count := p.CellCount()
	if index > count {
		return ErrInvalidSlot
	}

	oldFreeEnd := p.FreeEnd()
	newFreeEnd := oldFreeEnd - 2
	if newFreeEnd < p.FreeStart() {
		return ErrSlotsFull
	}
	if int(newFreeEnd)+int(count+1)*2 > PageSize {
		return ErrSlotOverflow
	}

	slots := make([]uint16, count)
	for i := uint16(0); i < count; i++ {
		slots[i] = binary.LittleEndian.Uint16(p.Data[int(oldFreeEnd)+int(i)*2:])
	}

	p.SetFreeEnd(newFreeEnd)
	for i := uint16(0); i < index; i++ {
		p.setSlot(i, slots[i])
	}
	p.setSlot(index, recordOffset)
	for i := index; i < count; i++ {
		p.setSlot(i+1, slots[i])
	}
	p.SetCellCount(count + 1)
	return nil
}

// RemoveSlot deletes slot index, shifting slots [index+1, CellCount) back by
// one and raising FreeEnd. The record bytes stay in the heap.
func (p *Page) RemoveSlot(index uint16) error {
	count := p.CellCount()
	if count == 0 || index >= count {
		return ErrInvalidSlot
	}

	oldFreeEnd := p.FreeEnd()
	slots := make([]uint16, count)
	for i := uint16(0); i < count; i++ {
		slots[i] = binary.LittleEndian.Uint16(p.Data[int(oldFreeEnd)+int(i)*2:])
	}

	p.SetFreeEnd(oldFreeEnd + 2)
	for i := uint16(0); i < index; i++ {
		p.setSlot(i, slots[i])
	}
	for i := index + 1; i < count; i++ {
		p.setSlot(i-1, slots[i])
	}
	p.SetCellCount(count - 1)
	return nil
}
