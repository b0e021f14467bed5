package btree

import (
	"github.com/pkg/errors"

	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

// splitLeafPage splits a full leaf in two. The first max(1, n/2) records are
// rewritten into the original page (compacting away deleted heap bytes),
// the rest into a freshly allocated right sibling. The separator is the
// right page's first key. Both halves are written back to the pool; the
// caller still owns inserting the pending record and the parent update.
func splitLeafPage(h *table.Handle, p *page.Page) (*splitResult, error) {
	if p.Level() != page.LevelLeaf {
		return nil, errors.Wrap(ErrInternal, "split target is not a leaf")
	}

	total := p.CellCount()
	if total == 0 {
		return nil, errors.Wrap(ErrInternal, "cannot split an empty page")
	}

	splitIdx := total / 2
	if splitIdx == 0 {
		splitIdx = 1
	}

	leftPageID := p.PageID()
	savedParentID := p.ParentPageID()
	savedPrevPageID := p.PrevPageID()
	oldNextPageID := p.NextPageID()

	type record struct {
		key   []byte
		value []byte
	}
	allRecords := make([]record, 0, total)
	for i := uint16(0); i < total; i++ {
		key, okKey := p.SlotKey(i)
		value, okValue := p.SlotValue(i)
		if !okKey || !okValue {
			return nil, errors.Wrapf(ErrInternal, "leaf %d slot %d is unreadable", leftPageID, i)
		}
		rec := record{key: make([]byte, len(key)), value: make([]byte, len(value))}
		copy(rec.key, key)
		copy(rec.value, value)
		allRecords = append(allRecords, rec)
	}

	// Rebuild the left page in place. Re-init compacts the heap; the leaf's
	// place in the chain and the tree is restored from the saved fields.
	p.Init(leftPageID, page.TypeData, page.LevelLeaf)
	p.SetParentPageID(savedParentID)
	p.SetPrevPageID(savedPrevPageID)

	newPageID, err := h.AllocatePage()
	if err != nil {
		return nil, err
	}
	var newPage page.Page
	newPage.Init(newPageID, page.TypeData, page.LevelLeaf)
	newPage.SetParentPageID(savedParentID)

	for i := uint16(0); i < splitIdx; i++ {
		rec := allRecords[i]
		offset := p.WriteRecord(rec.key, rec.value)
		if offset == 0 {
			return nil, errors.Wrap(ErrInternal, "left half overflow during split")
		}
		if err := p.InsertSlot(p.CellCount(), offset); err != nil {
			return nil, errors.Wrap(err, "left half slot overflow during split")
		}
	}
	for i := splitIdx; i < total; i++ {
		rec := allRecords[i]
		offset := newPage.WriteRecord(rec.key, rec.value)
		if offset == 0 {
			return nil, errors.Wrap(ErrInternal, "right half overflow during split")
		}
		if err := newPage.InsertSlot(newPage.CellCount(), offset); err != nil {
			return nil, errors.Wrap(err, "right half slot overflow during split")
		}
	}

	if p.CellCount() == 0 || newPage.CellCount() == 0 {
		return nil, errors.Wrap(ErrInternal, "split produced an empty side")
	}

	sepKey, ok := newPage.SlotKey(0)
	if !ok {
		return nil, errors.Wrap(ErrInternal, "no separator key on right half")
	}
	separator := make([]byte, len(sepKey))
	copy(separator, sepKey)

	// Wire the leaf chain: left <-> right <-> old next.
	p.SetNextPageID(newPageID)
	newPage.SetPrevPageID(leftPageID)
	newPage.SetNextPageID(oldNextPageID)
	if oldNextPageID != 0 {
		oldNext, err := h.BPM.FetchPage(oldNextPageID)
		if err != nil {
			return nil, err
		}
		oldNext.SetPrevPageID(newPageID)
		if err := h.BPM.UnpinPage(oldNextPageID, true); err != nil {
			return nil, err
		}
	}

	if err := writePageBack(h, leftPageID, p); err != nil {
		return nil, err
	}
	if err := writeNewPageBack(h, newPageID, &newPage, page.TypeData, page.LevelLeaf); err != nil {
		return nil, err
	}

	result := &splitResult{newPageID: newPageID, separatorKey: separator}
	result.left = *p
	result.right = newPage
	return result, nil
}
