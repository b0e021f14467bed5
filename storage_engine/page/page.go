package page

import (
	"encoding/binary"
)

/*
This file defines the on-disk page format.

Every page in a table file is exactly PageSize bytes and starts with a fixed
40-byte header. After the header the page is a slotted page: records are
appended upward from FreeStart, the slot directory (uint16 record offsets)
grows downward from the end of the page toward FreeEnd. The free region is
[FreeStart, FreeEnd).

All multibyte fields are little-endian. The header is never accessed through
pointer casts; every field has a typed accessor that reads/writes the byte
array directly, so a page is always safe to copy around as a value.
*/

const (
	PageSize       = 2048 // 2KB page
	PageHeaderSize = 40

	// InvalidPageID marks an empty buffer pool frame. Page id 0 is valid
	// (the meta page), so the sentinel is all-ones.
	InvalidPageID = ^uint32(0)

	// MergeThresholdPercent is the minimum live utilisation of a non-root
	// leaf; below it the delete path tries to merge with a sibling.
	MergeThresholdPercent = 50
)

// PageType describes what a page stores.
type PageType uint16

const (
	TypeHeader PageType = 0
	TypeMeta   PageType = 1
	TypeIndex  PageType = 2
	TypeData   PageType = 3
	TypeFree   PageType = 4
)

// PageLevel describes a page's position in the B+Tree.
type PageLevel uint16

const (
	LevelNone     PageLevel = 0
	LevelLeaf     PageLevel = 1
	LevelInternal PageLevel = 2
)

// Header field offsets within the page. The layout is fixed on disk;
// changing any of these is a format break.
const (
	offPageID       = 0  // uint32
	offPageType     = 4  // uint16
	offPageLevel    = 6  // uint16
	offRootPage     = 8  // uint32, meaningful on the meta page
	offReserved     = 12 // uint32, leftmost child on internal pages
	offFlags        = 16 // uint16
	offCellCount    = 18 // uint16
	offFreeStart    = 20 // uint16
	offFreeEnd      = 22 // uint16
	offParentPageID = 24 // uint32, 0 iff root
	offLSN          = 28 // uint32, reserved
	offPrevPageID   = 32 // uint32, leaf sibling
	offNextPageID   = 36 // uint32, leaf sibling
)

// Page is a fixed-size byte buffer. It carries no in-memory state beyond the
// bytes themselves, so copying a Page copies the page.
type Page struct {
	Data [PageSize]byte
}

// Init zeroes the page and writes a fresh header. FreeStart points just past
// the header, FreeEnd at the end of the page: the whole body is free.
func (p *Page) Init(pageID uint32, pageType PageType, pageLevel PageLevel) {
	for i := range p.Data {
		p.Data[i] = 0
	}
	p.SetPageID(pageID)
	p.SetType(pageType)
	p.SetLevel(pageLevel)
	p.SetFreeStart(PageHeaderSize)
	p.SetFreeEnd(PageSize)
}

func (p *Page) PageID() uint32 {
	return binary.LittleEndian.Uint32(p.Data[offPageID:])
}

func (p *Page) SetPageID(id uint32) {
	binary.LittleEndian.PutUint32(p.Data[offPageID:], id)
}

func (p *Page) Type() PageType {
	return PageType(binary.LittleEndian.Uint16(p.Data[offPageType:]))
}

func (p *Page) SetType(t PageType) {
	binary.LittleEndian.PutUint16(p.Data[offPageType:], uint16(t))
}

func (p *Page) Level() PageLevel {
	return PageLevel(binary.LittleEndian.Uint16(p.Data[offPageLevel:]))
}

func (p *Page) SetLevel(l PageLevel) {
	binary.LittleEndian.PutUint16(p.Data[offPageLevel:], uint16(l))
}

// RootPage is the current tree root. Only the meta page (id 0) uses it.
func (p *Page) RootPage() uint32 {
	return binary.LittleEndian.Uint32(p.Data[offRootPage:])
}

func (p *Page) SetRootPage(id uint32) {
	binary.LittleEndian.PutUint32(p.Data[offRootPage:], id)
}

// LeftmostChild is the subtree for keys below entry 0's key. Only internal
// pages use it; it lives in the header's reserved field.
func (p *Page) LeftmostChild() uint32 {
	return binary.LittleEndian.Uint32(p.Data[offReserved:])
}

func (p *Page) SetLeftmostChild(id uint32) {
	binary.LittleEndian.PutUint32(p.Data[offReserved:], id)
}

func (p *Page) Flags() uint16 {
	return binary.LittleEndian.Uint16(p.Data[offFlags:])
}

func (p *Page) SetFlags(f uint16) {
	binary.LittleEndian.PutUint16(p.Data[offFlags:], f)
}

func (p *Page) CellCount() uint16 {
	return binary.LittleEndian.Uint16(p.Data[offCellCount:])
}

func (p *Page) SetCellCount(n uint16) {
	binary.LittleEndian.PutUint16(p.Data[offCellCount:], n)
}

func (p *Page) FreeStart() uint16 {
	return binary.LittleEndian.Uint16(p.Data[offFreeStart:])
}

func (p *Page) SetFreeStart(off uint16) {
	binary.LittleEndian.PutUint16(p.Data[offFreeStart:], off)
}

func (p *Page) FreeEnd() uint16 {
	return binary.LittleEndian.Uint16(p.Data[offFreeEnd:])
}

func (p *Page) SetFreeEnd(off uint16) {
	binary.LittleEndian.PutUint16(p.Data[offFreeEnd:], off)
}

// ParentPageID is 0 iff this page is the root. It is a logical reference
// resolved through the buffer pool, never an in-memory link.
func (p *Page) ParentPageID() uint32 {
	return binary.LittleEndian.Uint32(p.Data[offParentPageID:])
}

func (p *Page) SetParentPageID(id uint32) {
	binary.LittleEndian.PutUint32(p.Data[offParentPageID:], id)
}

func (p *Page) LSN() uint32 {
	return binary.LittleEndian.Uint32(p.Data[offLSN:])
}

func (p *Page) SetLSN(lsn uint32) {
	binary.LittleEndian.PutUint32(p.Data[offLSN:], lsn)
}

func (p *Page) PrevPageID() uint32 {
	return binary.LittleEndian.Uint32(p.Data[offPrevPageID:])
}

func (p *Page) SetPrevPageID(id uint32) {
	binary.LittleEndian.PutUint32(p.Data[offPrevPageID:], id)
}

func (p *Page) NextPageID() uint32 {
	return binary.LittleEndian.Uint32(p.Data[offNextPageID:])
}

func (p *Page) SetNextPageID(id uint32) {
	binary.LittleEndian.PutUint32(p.Data[offNextPageID:], id)
}
