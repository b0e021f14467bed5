package btree

import (
	"github.com/pkg/errors"

	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

// insertIntoParent wires a finished split into the tree: the separator and
// the new right page go into the parent of leftID. When the parent itself
// overflows it is split and the new separator propagates upward.
func insertIntoParent(h *table.Handle, leftID uint32, sepKey []byte, rightID uint32) error {
	var left page.Page
	if err := readPageCopy(h, leftID, &left); err != nil {
		return err
	}
	parentID := left.ParentPageID()

	if parentID == 0 || parentID == page.InvalidPageID {
		return createNewRoot(h, leftID, sepKey, rightID)
	}

	var parent page.Page
	if err := readPageCopy(h, parentID, &parent); err != nil {
		return err
	}
	if parent.Level() != page.LevelInternal {
		return createNewRoot(h, leftID, sepKey, rightID)
	}

	sr := internalSearchRecord(&parent, sepKey)
	if sr.Found {
		// A split can never legitimately promote a key the parent already
		// routes on; wiring it again would shadow the existing subtree.
		return errors.Wrapf(ErrInternal, "separator already present in parent %d", parentID)
	}
	if sr.Index == 0 {
		parent.SetLeftmostChild(leftID)
	}

	if insertInternalNoSplit(&parent, sepKey, rightID) {
		return writePageBack(h, parentID, &parent)
	}

	// Parent overflow: split it, place the pending entry into whichever
	// half now covers the separator, then propagate the promoted key.
	split, err := splitInternalPage(h, &parent)
	if err != nil {
		return err
	}

	if page.CompareKeys(sepKey, split.separatorKey) < 0 {
		if !insertInternalNoSplit(&split.left, sepKey, rightID) {
			return errors.Wrap(ErrInternal, "left parent half has no room after split")
		}
		if err := writePageBack(h, parentID, &split.left); err != nil {
			return err
		}
	} else {
		if !insertInternalNoSplit(&split.right, sepKey, rightID) {
			return errors.Wrap(ErrInternal, "right parent half has no room after split")
		}
		if err := writePageBack(h, split.newPageID, &split.right); err != nil {
			return err
		}
		if err := setParent(h, rightID, split.newPageID); err != nil {
			return err
		}
		if err := writePageBack(h, parentID, &split.left); err != nil {
			return err
		}
	}

	return insertIntoParent(h, parentID, split.separatorKey, split.newPageID)
}

// createNewRoot grows the tree by one level: a fresh internal page whose
// leftmost child is the old root (or left half) and whose single entry
// routes the separator to the right half.
func createNewRoot(h *table.Handle, leftID uint32, sepKey []byte, rightID uint32) error {
	newRootID, err := h.AllocatePage()
	if err != nil {
		return err
	}

	root, err := h.BPM.NewPage(newRootID, page.TypeIndex, page.LevelInternal)
	if err != nil {
		return err
	}
	root.SetLeftmostChild(leftID)

	offset := writeInternalEntry(root, sepKey, rightID)
	if offset == 0 {
		h.BPM.UnpinPage(newRootID, true)
		return errors.Wrap(ErrInternal, "separator does not fit in a fresh root")
	}
	if err := root.InsertSlot(0, offset); err != nil {
		h.BPM.UnpinPage(newRootID, true)
		return errors.Wrap(err, "failed to slot separator into fresh root")
	}
	if err := h.BPM.UnpinPage(newRootID, true); err != nil {
		return err
	}

	if err := setRoot(h, newRootID); err != nil {
		return err
	}
	if err := setParent(h, leftID, newRootID); err != nil {
		return err
	}
	return setParent(h, rightID, newRootID)
}
