package btree

import (
	"github.com/pkg/errors"

	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

// Insert stores (key, value) in the tree. Fails with ErrDuplicateKey if the
// key is present and ErrOutOfSpace if the record cannot fit in a page.
func Insert(h *table.Handle, key, value []byte) error {
	// Sized in int: uint16 arithmetic would wrap for keys and values near
	// 64KB and let an oversized record through.
	recordSize := page.RecordHeaderSize + len(key) + len(value)
	if recordSize > maxRecordBytes {
		return errors.Wrapf(ErrOutOfSpace, "record of %d bytes exceeds page capacity", recordSize)
	}

	// Empty tree: allocate a fresh leaf root and insert into it.
	if h.RootPage == 0 {
		rootID, err := h.AllocatePage()
		if err != nil {
			return err
		}
		root, err := h.BPM.NewPage(rootID, page.TypeData, page.LevelLeaf)
		if err != nil {
			return err
		}
		if err := setRoot(h, rootID); err != nil {
			h.BPM.UnpinPage(rootID, true)
			return err
		}
		ok := root.Insert(key, value)
		if err := h.BPM.UnpinPage(rootID, true); err != nil {
			return err
		}
		if !ok {
			return errors.Wrap(ErrInternal, "insert into fresh root failed")
		}
		return nil
	}

	var leaf page.Page
	leafID, err := findLeafPage(h, key, &leaf)
	if err != nil {
		return err
	}

	if leaf.SearchRecord(key).Found {
		return ErrDuplicateKey
	}

	inserted, err := insertLeafNoSplit(h, leafID, key, value)
	if err != nil {
		return err
	}
	if inserted {
		return nil
	}

	// The leaf is full: re-read it (the no-split attempt saw the pool copy)
	// and split. Both halves are at most half full afterwards, so whichever
	// side the comparator picks has room for the pending record.
	if err := readPageCopy(h, leafID, &leaf); err != nil {
		return err
	}
	split, err := splitLeafPage(h, &leaf)
	if err != nil {
		return err
	}

	if page.CompareKeys(key, split.separatorKey) < 0 {
		if !split.left.Insert(key, value) {
			return errors.Wrap(ErrInternal, "left page has no room after split")
		}
		if err := writePageBack(h, leafID, &split.left); err != nil {
			return err
		}
	} else {
		if !split.right.Insert(key, value) {
			return errors.Wrap(ErrInternal, "right page has no room after split")
		}
		if err := writePageBack(h, split.newPageID, &split.right); err != nil {
			return err
		}
	}

	return insertIntoParent(h, leafID, split.separatorKey, split.newPageID)
}

// insertLeafNoSplit tries the cheap path: insert directly into the pool's
// copy of the leaf. Returns false when the page has no room.
func insertLeafNoSplit(h *table.Handle, pageID uint32, key, value []byte) (bool, error) {
	p, err := h.BPM.FetchPage(pageID)
	if err != nil {
		return false, err
	}

	recordSize := page.RecordSize(uint16(len(key)), uint16(len(value)))
	if !p.CanInsert(recordSize) {
		if err := h.BPM.UnpinPage(pageID, false); err != nil {
			return false, err
		}
		return false, nil
	}

	ok := p.Insert(key, value)
	if err := h.BPM.UnpinPage(pageID, ok); err != nil {
		return false, err
	}
	if !ok {
		return false, errors.Wrapf(ErrInternal, "leaf %d refused an insert it had room for", pageID)
	}
	return true, nil
}
