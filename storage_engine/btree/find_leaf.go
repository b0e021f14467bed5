package btree

import (
	"github.com/pkg/errors"

	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

// findLeafPage descends from the root to the leaf that owns key and copies
// it into out. Each visited page is unpinned before the next is fetched.
func findLeafPage(h *table.Handle, key []byte, out *page.Page) (uint32, error) {
	pageID := h.RootPage
	depth := 0

	for {
		p, err := h.BPM.FetchPage(pageID)
		if err != nil {
			return 0, err
		}

		if p.Level() == page.LevelLeaf {
			copy(out.Data[:], p.Data[:])
			if err := h.BPM.UnpinPage(pageID, false); err != nil {
				return 0, err
			}
			return pageID, nil
		}

		nextPageID := internalFindChild(p, key)
		if err := h.BPM.UnpinPage(pageID, false); err != nil {
			return 0, err
		}
		if nextPageID == 0 || nextPageID == page.InvalidPageID {
			return 0, errors.Wrapf(ErrInternal, "page %d routed to invalid child", pageID)
		}

		pageID = nextPageID
		depth++
		if depth > maxDescentDepth {
			return 0, errors.Wrap(ErrInternal, "descent depth limit exceeded")
		}
	}
}

// findLeftmostLeafPage descends by always following the leftmost child.
func findLeftmostLeafPage(h *table.Handle, out *page.Page) (uint32, error) {
	if h.RootPage == 0 {
		return 0, ErrKeyNotFound
	}
	pageID := h.RootPage
	depth := 0

	for {
		p, err := h.BPM.FetchPage(pageID)
		if err != nil {
			return 0, err
		}

		if p.Level() == page.LevelLeaf {
			copy(out.Data[:], p.Data[:])
			if err := h.BPM.UnpinPage(pageID, false); err != nil {
				return 0, err
			}
			return pageID, nil
		}

		if p.Level() != page.LevelInternal {
			h.BPM.UnpinPage(pageID, false)
			return 0, errors.Wrapf(ErrInternal, "page %d has no tree level", pageID)
		}

		nextPageID := p.LeftmostChild()
		if err := h.BPM.UnpinPage(pageID, false); err != nil {
			return 0, err
		}
		if nextPageID == 0 {
			return 0, errors.Wrapf(ErrInternal, "internal page %d has no leftmost child", pageID)
		}

		pageID = nextPageID
		depth++
		if depth > maxDescentDepth {
			return 0, errors.Wrap(ErrInternal, "descent depth limit exceeded")
		}
	}
}
