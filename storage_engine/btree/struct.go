// B+Tree protocol over slotted pages.
/*
Tree
 ├── Internal page (routing keys + child page ids, leftmost child in header)
 │      └── Child internal pages ...
 │             └── Leaf pages (key/value records, linked prev/next)

- slot directories keep keys in ascending byte-wise order
- an internal page with n entries has n+1 children: the header's leftmost
  child plus one child per entry; entry i's key is the smallest key
  reachable through its child ("keys >= separator go right")
- leaf pages form a doubly linked list in key order
- all leaves are at the same depth
- keys are unique across the tree

Most functions here work on page copies: fetch, copy out, unpin, mutate the
copy, then fetch again and copy back in with dirty=true. Small in-place
updates (a leaf insert or delete, a parent or sibling pointer, a fresh root)
mutate the pinned frame directly and unpin right after. Pins are held only
for the span of one such step, which keeps the pool from running out of
frames and keeps the pinned count at zero between operations.
*/
package btree

import (
	"github.com/pkg/errors"

	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrDuplicateKey = errors.New("key already exists")
	ErrOutOfSpace   = errors.New("record does not fit in a page")
	ErrInternal     = errors.New("tree invariant violated")
)

// maxDescentDepth guards descent against a malformed tree (a parent/child
// cycle would otherwise loop forever).
const maxDescentDepth = 100

// maxRecordBytes is the largest encoded record that can ever be placed in an
// empty page together with its slot.
const maxRecordBytes = page.PageSize - page.PageHeaderSize - 2

// splitResult carries the outcome of a leaf or internal split: the freshly
// allocated right page, the separator to route between the halves, and
// copies of both halves as written back to the pool.
type splitResult struct {
	newPageID    uint32
	separatorKey []byte
	left         page.Page
	right        page.Page
}

// readPageCopy copies the page out of its frame so the pin can be released
// immediately.
func readPageCopy(h *table.Handle, pageID uint32, out *page.Page) error {
	p, err := h.BPM.FetchPage(pageID)
	if err != nil {
		return err
	}
	copy(out.Data[:], p.Data[:])
	return h.BPM.UnpinPage(pageID, false)
}

// writePageBack copies a locally modified page into its frame and marks it
// dirty.
func writePageBack(h *table.Handle, pageID uint32, src *page.Page) error {
	p, err := h.BPM.FetchPage(pageID)
	if err != nil {
		return err
	}
	copy(p.Data[:], src.Data[:])
	return h.BPM.UnpinPage(pageID, true)
}

// writeNewPageBack installs a locally built page into the pool under a
// freshly allocated id and marks it dirty.
func writeNewPageBack(h *table.Handle, pageID uint32, src *page.Page, pageType page.PageType, pageLevel page.PageLevel) error {
	p, err := h.BPM.NewPage(pageID, pageType, pageLevel)
	if err != nil {
		return err
	}
	copy(p.Data[:], src.Data[:])
	return h.BPM.UnpinPage(pageID, true)
}

// setRoot records a new tree root on the handle and the meta page.
func setRoot(h *table.Handle, rootID uint32) error {
	h.RootPage = rootID
	meta, err := h.BPM.FetchPage(0)
	if err != nil {
		return errors.Wrap(err, "failed to fetch meta page")
	}
	meta.SetRootPage(rootID)
	return h.BPM.UnpinPage(0, true)
}

// setParent rewrites a page's parent pointer through the pool.
func setParent(h *table.Handle, pageID, parentID uint32) error {
	p, err := h.BPM.FetchPage(pageID)
	if err != nil {
		return err
	}
	p.SetParentPageID(parentID)
	return h.BPM.UnpinPage(pageID, true)
}
