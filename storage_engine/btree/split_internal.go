package btree

import (
	"github.com/pkg/errors"

	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

// splitInternalPage splits a full internal page. Entry mid's key is
// promoted: its child becomes the right page's leftmost child and entries
// [mid+1, n) move to the right page verbatim. Children that change sides
// get their parent pointer rewritten. The right page is written to the
// pool; the caller writes the shrunk left page back.
func splitInternalPage(h *table.Handle, p *page.Page) (*splitResult, error) {
	if p.Level() != page.LevelInternal {
		return nil, errors.Wrap(ErrInternal, "split target is not an internal page")
	}

	total := p.CellCount()
	if total < 2 {
		return nil, errors.Wrap(ErrInternal, "cannot split an internal page with fewer than 2 entries")
	}
	mid := total / 2

	sepKey, ok := internalSlotKey(p, mid)
	if !ok {
		return nil, errors.Wrap(ErrInternal, "promoted entry is unreadable")
	}
	separator := make([]byte, len(sepKey))
	copy(separator, sepKey)

	newLeftmostChild, ok := internalEntryChild(p, mid)
	if !ok {
		return nil, errors.Wrap(ErrInternal, "promoted entry has no child")
	}

	newPageID, err := h.AllocatePage()
	if err != nil {
		return nil, err
	}
	var newPage page.Page
	newPage.Init(newPageID, page.TypeIndex, page.LevelInternal)
	newPage.SetLeftmostChild(newLeftmostChild)
	newPage.SetParentPageID(p.ParentPageID())

	// Move entries [mid+1, n) byte-for-byte and re-parent their children.
	for i := mid + 1; i < total; i++ {
		raw, ok := internalEntryBytes(p, i)
		if !ok {
			return nil, errors.Wrapf(ErrInternal, "internal entry %d is unreadable", i)
		}
		offset := newPage.WriteRawRecord(raw)
		if offset == 0 {
			return nil, errors.Wrap(ErrInternal, "right half overflow during internal split")
		}
		if err := newPage.InsertSlot(newPage.CellCount(), offset); err != nil {
			return nil, errors.Wrap(err, "right half slot overflow during internal split")
		}

		child, _ := internalEntryChild(p, i)
		if child != 0 {
			if err := setParent(h, child, newPageID); err != nil {
				return nil, err
			}
		}
	}

	// The promoted entry's child moved sides too.
	if err := setParent(h, newLeftmostChild, newPageID); err != nil {
		return nil, err
	}

	// Drop the moved entries and the promoted entry off the left page's
	// directory, from the tail down to mid.
	for p.CellCount() > mid {
		if err := p.RemoveSlot(p.CellCount() - 1); err != nil {
			return nil, errors.Wrap(err, "failed to trim split internal page")
		}
	}

	if err := writeNewPageBack(h, newPageID, &newPage, page.TypeIndex, page.LevelInternal); err != nil {
		return nil, err
	}

	result := &splitResult{newPageID: newPageID, separatorKey: separator}
	result.left = *p
	result.right = newPage
	return result, nil
}
