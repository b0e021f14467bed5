package btree

import (
	"bytes"

	"github.com/pkg/errors"

	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

/*
Delete with leaf rebalancing.

Deleting only drops a slot, so a leaf can drift below half full. The repair
protocol merges an underutilised leaf with its left sibling first, else the
right one, whenever the union of live records fits in one page. A leaf that
ends up empty is always removed: merged with any sibling (one side empty
always fits) or, as the sole child of its parent, detached and freed.

Internal pages are not rebalanced; long runs of deletes can leave them
sparse. The root leaf is special-cased: when it empties the tree resets to
root_page = 0.
*/

// siblingInfo describes a leaf's neighbours under its parent. separatorKey
// is the parent entry routing to the leaf itself (unset for the leftmost
// child, which the parent addresses through its header pointer);
// rightSeparatorKey routes to the right sibling.
type siblingInfo struct {
	leftSibling       uint32
	rightSibling      uint32
	separatorKey      []byte
	rightSeparatorKey []byte
	isLeftmost        bool
	isRightmost       bool
}

// Delete removes key from the tree and repairs leaf underflow.
func Delete(h *table.Handle, key []byte) error {
	if h.RootPage == 0 {
		return ErrKeyNotFound
	}

	var leaf page.Page
	leafID, err := findLeafPage(h, key, &leaf)
	if err != nil {
		return err
	}
	if !leaf.SearchRecord(key).Found {
		return ErrKeyNotFound
	}

	// Delete on the pool's copy, then re-read our local one.
	p, err := h.BPM.FetchPage(leafID)
	if err != nil {
		return err
	}
	deleted := p.Delete(key)
	if err := h.BPM.UnpinPage(leafID, deleted); err != nil {
		return err
	}
	if !deleted {
		return ErrKeyNotFound
	}
	if err := readPageCopy(h, leafID, &leaf); err != nil {
		return err
	}

	// Root leaf: no rebalancing, but an empty tree is reset.
	if leaf.ParentPageID() == 0 {
		if leaf.CellCount() == 0 {
			if err := setRoot(h, 0); err != nil {
				return err
			}
			if err := updateLeafLinksOnFree(h, &leaf); err != nil {
				return err
			}
			return h.FreePage(leafID)
		}
		return nil
	}

	if isPageUnderutilized(&leaf) {
		siblings, err := findLeafSiblings(h, leafID, &leaf)
		if err != nil {
			return err
		}
		parentID := leaf.ParentPageID()

		if siblings.leftSibling != 0 {
			var left page.Page
			if err := readPageCopy(h, siblings.leftSibling, &left); err != nil {
				return err
			}
			if canMergePages(&left, &leaf) {
				if err := mergeLeafPages(h, siblings.leftSibling, &left, leafID, &leaf); err != nil {
					return err
				}
				return removeFromInternal(h, parentID, siblings.separatorKey, leafID)
			}
		}
		if siblings.rightSibling != 0 {
			var right page.Page
			if err := readPageCopy(h, siblings.rightSibling, &right); err != nil {
				return err
			}
			if canMergePages(&leaf, &right) {
				if err := mergeLeafPages(h, leafID, &leaf, siblings.rightSibling, &right); err != nil {
					return err
				}
				if err := removeFromInternal(h, parentID, siblings.rightSeparatorKey, siblings.rightSibling); err != nil {
					return err
				}
				if err := readPageCopy(h, leafID, &leaf); err != nil {
					return err
				}
			}
		}
	}

	// A leaf that is still empty must not stay in the tree: force a merge
	// with any sibling (one side is empty, the union always fits), or
	// detach it from the parent when it is the only child left.
	if leaf.CellCount() == 0 {
		siblings, err := findLeafSiblings(h, leafID, &leaf)
		if err != nil {
			return err
		}
		parentID := leaf.ParentPageID()

		switch {
		case siblings.isLeftmost && siblings.rightSibling != 0:
			var right page.Page
			if err := readPageCopy(h, siblings.rightSibling, &right); err != nil {
				return err
			}
			if err := mergeLeafPages(h, leafID, &leaf, siblings.rightSibling, &right); err != nil {
				return err
			}
			return removeFromInternal(h, parentID, siblings.rightSeparatorKey, siblings.rightSibling)

		case siblings.isLeftmost:
			// Sole child of its parent: detach and free.
			parent, err := h.BPM.FetchPage(parentID)
			if err != nil {
				return err
			}
			parent.SetLeftmostChild(0)
			emptyParent := parent.CellCount() == 0
			if err := h.BPM.UnpinPage(parentID, true); err != nil {
				return err
			}
			if err := updateLeafLinksOnFree(h, &leaf); err != nil {
				return err
			}
			if err := h.FreePage(leafID); err != nil {
				return err
			}
			// A childless internal root means the tree is empty: reset it
			// so the next insert starts from scratch. Deeper childless
			// internals are left in place (internal underflow is not
			// propagated).
			if emptyParent && parentID == h.RootPage {
				if err := setRoot(h, 0); err != nil {
					return err
				}
				return h.FreePage(parentID)
			}
			return nil

		case siblings.leftSibling != 0:
			var left page.Page
			if err := readPageCopy(h, siblings.leftSibling, &left); err != nil {
				return err
			}
			if err := mergeLeafPages(h, siblings.leftSibling, &left, leafID, &leaf); err != nil {
				return err
			}
			return removeFromInternal(h, parentID, siblings.separatorKey, leafID)

		case siblings.rightSibling != 0:
			var right page.Page
			if err := readPageCopy(h, siblings.rightSibling, &right); err != nil {
				return err
			}
			if err := mergeLeafPages(h, leafID, &leaf, siblings.rightSibling, &right); err != nil {
				return err
			}
			return removeFromInternal(h, parentID, siblings.rightSeparatorKey, siblings.rightSibling)

		default:
			if err := updateLeafLinksOnFree(h, &leaf); err != nil {
				return err
			}
			return h.FreePage(leafID)
		}
	}

	return nil
}

// isPageUnderutilized reports whether the page's live bytes (slotted records
// plus the slot directory) fall below the merge threshold. FreeStart is not
// used: it still counts heap space of deleted records.
func isPageUnderutilized(p *page.Page) bool {
	if p.CellCount() == 0 {
		return true
	}
	totalUsed := int(p.LiveRecordBytes()) + int(p.CellCount())*2
	availableSpace := page.PageSize - page.PageHeaderSize
	return totalUsed*100/availableSpace < page.MergeThresholdPercent
}

// canMergePages reports whether the live records of both pages plus the
// combined slot directory fit in a single page.
func canMergePages(left, right *page.Page) bool {
	totalRecords := int(left.LiveRecordBytes()) + int(right.LiveRecordBytes())
	totalSlots := int(left.CellCount()+right.CellCount()) * 2
	return page.PageHeaderSize+totalRecords+totalSlots <= page.PageSize
}

// findLeafSiblings walks the parent's entries to locate the leaf and report
// its neighbours and the separator keys needed to detach either side.
func findLeafSiblings(h *table.Handle, leafID uint32, leaf *page.Page) (*siblingInfo, error) {
	info := &siblingInfo{}

	parentID := leaf.ParentPageID()
	if parentID == 0 {
		info.isLeftmost = true
		info.isRightmost = true
		return info, nil
	}

	var parent page.Page
	if err := readPageCopy(h, parentID, &parent); err != nil {
		return nil, err
	}
	if parent.Level() != page.LevelInternal {
		return nil, errors.Wrapf(ErrInternal, "parent %d of leaf %d is not internal", parentID, leafID)
	}

	leftmost := parent.LeftmostChild()
	if leftmost == leafID {
		info.isLeftmost = true
		if parent.CellCount() > 0 {
			child, ok := internalEntryChild(&parent, 0)
			if !ok {
				return nil, errors.Wrapf(ErrInternal, "parent %d entry 0 is unreadable", parentID)
			}
			sepKey, ok := internalSlotKey(&parent, 0)
			if !ok {
				return nil, errors.Wrapf(ErrInternal, "parent %d entry 0 has no key", parentID)
			}
			info.rightSibling = child
			// For the leftmost child, entry 0's key IS the right separator.
			info.rightSeparatorKey = append([]byte(nil), sepKey...)
		} else {
			info.isRightmost = true
		}
		return info, nil
	}

	for i := uint16(0); i < parent.CellCount(); i++ {
		child, ok := internalEntryChild(&parent, i)
		if !ok {
			return nil, errors.Wrapf(ErrInternal, "parent %d entry %d is unreadable", parentID, i)
		}
		if child != leafID {
			continue
		}

		if i == 0 {
			info.leftSibling = leftmost
		} else {
			prevChild, ok := internalEntryChild(&parent, i-1)
			if !ok {
				return nil, errors.Wrapf(ErrInternal, "parent %d entry %d is unreadable", parentID, i-1)
			}
			info.leftSibling = prevChild
		}

		if i+1 < parent.CellCount() {
			nextChild, ok := internalEntryChild(&parent, i+1)
			if !ok {
				return nil, errors.Wrapf(ErrInternal, "parent %d entry %d is unreadable", parentID, i+1)
			}
			nextKey, ok := internalSlotKey(&parent, i+1)
			if !ok {
				return nil, errors.Wrapf(ErrInternal, "parent %d entry %d has no key", parentID, i+1)
			}
			info.rightSibling = nextChild
			info.rightSeparatorKey = append([]byte(nil), nextKey...)
		} else {
			info.isRightmost = true
		}

		sepKey, ok := internalSlotKey(&parent, i)
		if !ok {
			return nil, errors.Wrapf(ErrInternal, "parent %d entry %d has no key", parentID, i)
		}
		info.separatorKey = append([]byte(nil), sepKey...)
		return info, nil
	}

	return nil, errors.Wrapf(ErrInternal, "leaf %d not found under parent %d", leafID, parentID)
}

// mergeLeafPages folds the right page's live records into the left page and
// frees the right page. The left page is rebuilt from scratch, which also
// compacts deleted heap bytes out of it.
func mergeLeafPages(h *table.Handle, leftID uint32, left *page.Page, rightID uint32, right *page.Page) error {
	savedParentID := left.ParentPageID()
	savedPrevPageID := left.PrevPageID()
	rightNextPageID := right.NextPageID()

	allRecords := make([][]byte, 0, left.CellCount()+right.CellCount())
	for i := uint16(0); i < left.CellCount(); i++ {
		raw, ok := left.SlotRecordBytes(i)
		if !ok {
			return errors.Wrapf(ErrInternal, "leaf %d slot %d is unreadable", leftID, i)
		}
		allRecords = append(allRecords, append([]byte(nil), raw...))
	}
	for i := uint16(0); i < right.CellCount(); i++ {
		raw, ok := right.SlotRecordBytes(i)
		if !ok {
			return errors.Wrapf(ErrInternal, "leaf %d slot %d is unreadable", rightID, i)
		}
		allRecords = append(allRecords, append([]byte(nil), raw...))
	}

	left.Init(leftID, page.TypeData, page.LevelLeaf)
	left.SetParentPageID(savedParentID)
	left.SetPrevPageID(savedPrevPageID)
	left.SetNextPageID(rightNextPageID)

	if rightNextPageID != 0 {
		next, err := h.BPM.FetchPage(rightNextPageID)
		if err != nil {
			return err
		}
		next.SetPrevPageID(leftID)
		if err := h.BPM.UnpinPage(rightNextPageID, true); err != nil {
			return err
		}
	}

	for _, raw := range allRecords {
		offset := left.WriteRawRecord(raw)
		if offset == 0 {
			return errors.Wrap(ErrInternal, "merged page overflow")
		}
		if err := left.InsertSlot(left.CellCount(), offset); err != nil {
			return errors.Wrap(err, "merged page slot overflow")
		}
	}

	if err := writePageBack(h, leftID, left); err != nil {
		return err
	}
	return h.FreePage(rightID)
}

// removeFromInternal detaches a freed child from its parent. When the
// deleted child was the leftmost, entry 0 is promoted into the header
// pointer; otherwise the entry carrying keyToRemove is dropped.
func removeFromInternal(h *table.Handle, parentID uint32, keyToRemove []byte, deletedChildPage uint32) error {
	var parent page.Page
	if err := readPageCopy(h, parentID, &parent); err != nil {
		return err
	}
	if parent.Level() != page.LevelInternal {
		return nil
	}

	if deletedChildPage != 0 && parent.LeftmostChild() == deletedChildPage {
		if parent.CellCount() > 0 {
			child, ok := internalEntryChild(&parent, 0)
			if !ok {
				return errors.Wrapf(ErrInternal, "parent %d entry 0 is unreadable", parentID)
			}
			parent.SetLeftmostChild(child)
			if err := parent.RemoveSlot(0); err != nil {
				return errors.Wrap(err, "failed to promote entry 0")
			}
		} else {
			parent.SetLeftmostChild(0)
		}
		return writePageBack(h, parentID, &parent)
	}

	for i := uint16(0); i < parent.CellCount(); i++ {
		entryKey, ok := internalSlotKey(&parent, i)
		if !ok {
			continue
		}
		if bytes.Equal(entryKey, keyToRemove) {
			if err := parent.RemoveSlot(i); err != nil {
				return errors.Wrap(err, "failed to remove internal entry")
			}
			return writePageBack(h, parentID, &parent)
		}
	}
	return nil
}

// updateLeafLinksOnFree patches the chain around a leaf that is being freed
// without a merge: prev.next skips to my.next, next.prev back to my.prev.
func updateLeafLinksOnFree(h *table.Handle, freed *page.Page) error {
	if prevID := freed.PrevPageID(); prevID != 0 {
		prev, err := h.BPM.FetchPage(prevID)
		if err != nil {
			return err
		}
		prev.SetNextPageID(freed.NextPageID())
		if err := h.BPM.UnpinPage(prevID, true); err != nil {
			return err
		}
	}
	if nextID := freed.NextPageID(); nextID != 0 {
		next, err := h.BPM.FetchPage(nextID)
		if err != nil {
			return err
		}
		next.SetPrevPageID(freed.PrevPageID())
		if err := h.BPM.UnpinPage(nextID, true); err != nil {
			return err
		}
	}
	return nil
}
