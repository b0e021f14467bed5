// Package btree: tree inspection helpers.
// LeafStats and the chain walkers give tests and debugging tools a view of
// the leaf level without going through the public operations.

package btree

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

// LeafStat summarises one leaf for utilisation checks.
type LeafStat struct {
	PageID             uint32
	CellCount          uint16
	LiveBytes          uint16
	UtilisationPercent int
	IsRoot             bool
}

// LeafStats walks the chain left to right and reports every leaf.
func LeafStats(h *table.Handle) ([]LeafStat, error) {
	if h.RootPage == 0 {
		return nil, nil
	}

	var leaf page.Page
	pageID, err := findLeftmostLeafPage(h, &leaf)
	if err != nil {
		return nil, err
	}

	var stats []LeafStat
	for {
		live := leaf.LiveRecordBytes()
		used := int(live) + int(leaf.CellCount())*2
		stats = append(stats, LeafStat{
			PageID:             pageID,
			CellCount:          leaf.CellCount(),
			LiveBytes:          live,
			UtilisationPercent: used * 100 / (page.PageSize - page.PageHeaderSize),
			IsRoot:             leaf.ParentPageID() == 0,
		})

		nextID := leaf.NextPageID()
		if nextID == 0 {
			return stats, nil
		}
		if err := readPageCopy(h, nextID, &leaf); err != nil {
			return nil, err
		}
		pageID = nextID
	}
}

// CheckLeafChain verifies the doubly linked leaf list: following next from
// the leftmost leaf must visit strictly ascending keys and terminate, and
// following prev from the rightmost leaf must be the exact reverse walk.
func CheckLeafChain(h *table.Handle) error {
	if h.RootPage == 0 {
		return nil
	}

	var leaf page.Page
	pageID, err := findLeftmostLeafPage(h, &leaf)
	if err != nil {
		return err
	}
	if leaf.PrevPageID() != 0 {
		return errors.Wrapf(ErrInternal, "leftmost leaf %d has prev %d", pageID, leaf.PrevPageID())
	}

	var forward []uint32
	var lastKey []byte
	for {
		forward = append(forward, pageID)
		if len(forward) > maxChainLength {
			return errors.Wrap(ErrInternal, "leaf chain does not terminate")
		}

		for i := uint16(0); i < leaf.CellCount(); i++ {
			key, ok := leaf.SlotKey(i)
			if !ok {
				return errors.Wrapf(ErrInternal, "leaf %d slot %d is unreadable", pageID, i)
			}
			if lastKey != nil && page.CompareKeys(lastKey, key) >= 0 {
				return errors.Wrapf(ErrInternal, "keys out of order in leaf %d", pageID)
			}
			lastKey = append(lastKey[:0], key...)
		}

		nextID := leaf.NextPageID()
		if nextID == 0 {
			break
		}
		if err := readPageCopy(h, nextID, &leaf); err != nil {
			return err
		}
		if leaf.PrevPageID() != pageID {
			return errors.Wrapf(ErrInternal, "leaf %d prev is %d, want %d", nextID, leaf.PrevPageID(), pageID)
		}
		pageID = nextID
	}

	// Walk back from the rightmost leaf and compare.
	for i := len(forward) - 1; i >= 0; i-- {
		if pageID != forward[i] {
			return errors.Wrapf(ErrInternal, "reverse walk at %d, forward saw %d", pageID, forward[i])
		}
		prevID := leaf.PrevPageID()
		if i == 0 {
			if prevID != 0 {
				return errors.Wrapf(ErrInternal, "leftmost leaf %d has prev %d after walk", pageID, prevID)
			}
			break
		}
		if err := readPageCopy(h, prevID, &leaf); err != nil {
			return err
		}
		pageID = prevID
	}
	return nil
}

const maxChainLength = 1 << 20

// DumpTree writes a breadth-first dump of the tree to w, for debugging.
func DumpTree(h *table.Handle, w io.Writer) error {
	fmt.Fprintf(w, "table %s: root page id = %d\n", h.Name, h.RootPage)
	if h.RootPage == 0 {
		fmt.Fprintln(w, "(empty tree)")
		return nil
	}

	queue := []uint32{h.RootPage}
	level := 0
	for len(queue) > 0 {
		size := len(queue)
		fmt.Fprintf(w, "level %d:\n", level)
		for i := 0; i < size; i++ {
			pageID := queue[i]
			var p page.Page
			if err := readPageCopy(h, pageID, &p); err != nil {
				return err
			}

			if p.Level() == page.LevelInternal {
				fmt.Fprintf(w, "  [page %d] INTERNAL entries=%d leftmost=%d parent=%d\n",
					pageID, p.CellCount(), p.LeftmostChild(), p.ParentPageID())
				if p.LeftmostChild() != 0 {
					queue = append(queue, p.LeftmostChild())
				}
				for j := uint16(0); j < p.CellCount(); j++ {
					key, _ := internalSlotKey(&p, j)
					child, _ := internalEntryChild(&p, j)
					fmt.Fprintf(w, "    %q -> page %d\n", key, child)
					queue = append(queue, child)
				}
			} else {
				fmt.Fprintf(w, "  [page %d] LEAF records=%d prev=%d next=%d parent=%d\n",
					pageID, p.CellCount(), p.PrevPageID(), p.NextPageID(), p.ParentPageID())
				for j := uint16(0); j < p.CellCount(); j++ {
					key, _ := p.SlotKey(j)
					value, _ := p.SlotValue(j)
					fmt.Fprintf(w, "    %q -> %q\n", key, value)
				}
			}
		}
		queue = queue[size:]
		level++
	}
	return nil
}
