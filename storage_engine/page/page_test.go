package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitPage(t *testing.T) {
	var p Page
	for i := range p.Data {
		p.Data[i] = 0xaa
	}

	p.Init(7, TypeData, LevelLeaf)

	assert.Equal(t, uint32(7), p.PageID())
	assert.Equal(t, TypeData, p.Type())
	assert.Equal(t, LevelLeaf, p.Level())
	assert.Equal(t, uint16(0), p.CellCount())
	assert.Equal(t, uint16(PageHeaderSize), p.FreeStart())
	assert.Equal(t, uint16(PageSize), p.FreeEnd())
	assert.Equal(t, uint32(0), p.ParentPageID())
	assert.Equal(t, uint32(0), p.PrevPageID())
	assert.Equal(t, uint32(0), p.NextPageID())

	// Init must clear the body, not just the header.
	for i := PageHeaderSize; i < PageSize; i++ {
		if p.Data[i] != 0 {
			t.Fatalf("byte %d not zeroed after Init", i)
		}
	}
}

func TestHeaderFieldRoundTrip(t *testing.T) {
	var p Page
	p.Init(1, TypeIndex, LevelInternal)

	p.SetRootPage(42)
	p.SetLeftmostChild(9)
	p.SetFlags(3)
	p.SetParentPageID(5)
	p.SetPrevPageID(11)
	p.SetNextPageID(12)
	p.SetLSN(99)

	assert.Equal(t, uint32(42), p.RootPage())
	assert.Equal(t, uint32(9), p.LeftmostChild())
	assert.Equal(t, uint16(3), p.Flags())
	assert.Equal(t, uint32(5), p.ParentPageID())
	assert.Equal(t, uint32(11), p.PrevPageID())
	assert.Equal(t, uint32(12), p.NextPageID())
	assert.Equal(t, uint32(99), p.LSN())
}

func TestInsertSlotOrderingAndShifts(t *testing.T) {
	var p Page
	p.Init(1, TypeData, LevelLeaf)

	// Offsets are arbitrary here; only directory mechanics are under test.
	require.NoError(t, p.InsertSlot(0, 100))
	require.NoError(t, p.InsertSlot(1, 300))
	require.NoError(t, p.InsertSlot(1, 200)) // shift 300 right

	require.Equal(t, uint16(3), p.CellCount())
	for i, want := range []uint16{100, 200, 300} {
		got, ok := p.Slot(uint16(i))
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, uint16(PageSize-6), p.FreeEnd())
}

func TestRemoveSlotShifts(t *testing.T) {
	var p Page
	p.Init(1, TypeData, LevelLeaf)
	require.NoError(t, p.InsertSlot(0, 100))
	require.NoError(t, p.InsertSlot(1, 200))
	require.NoError(t, p.InsertSlot(2, 300))

	require.NoError(t, p.RemoveSlot(1))

	require.Equal(t, uint16(2), p.CellCount())
	got0, _ := p.Slot(0)
	got1, _ := p.Slot(1)
	assert.Equal(t, uint16(100), got0)
	assert.Equal(t, uint16(300), got1)
	assert.Equal(t, uint16(PageSize-4), p.FreeEnd())

	_, ok := p.Slot(2)
	assert.False(t, ok)
}

func TestSlotErrors(t *testing.T) {
	var p Page
	p.Init(1, TypeData, LevelLeaf)

	assert.ErrorIs(t, p.InsertSlot(1, 100), ErrInvalidSlot)
	assert.ErrorIs(t, p.RemoveSlot(0), ErrInvalidSlot)

	// Push FreeStart to the end: no room for a slot.
	p.SetFreeStart(PageSize)
	p.SetFreeEnd(PageSize)
	assert.ErrorIs(t, p.InsertSlot(0, 100), ErrSlotsFull)
}

func TestCanInsertReservesSlotSpace(t *testing.T) {
	var p Page
	p.Init(1, TypeData, LevelLeaf)

	free := PageSize - PageHeaderSize
	assert.True(t, p.CanInsert(uint16(free-2)))
	assert.False(t, p.CanInsert(uint16(free-1)))
}
