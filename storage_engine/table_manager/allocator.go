package table

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"TomeDB/storage_engine/bufferpool"
	"TomeDB/storage_engine/page"
)

/*
Free-page bitmap allocator.

Page 1 holds one bit per page id after its header: bit (b, i) covers page id
8*b + i, set means allocated. Page ids 0-2 are never handed out. The bitmap
is flushed eagerly on every allocate and free so that the set of live pages
on disk never lags the tree structure by more than the in-flight operation.
*/

// ErrNoFreePages means the bitmap has no clear bit left: the table has
// reached its maximum size of (PageSize - header) * 8 pages.
var ErrNoFreePages = errors.New("no free pages in bitmap")

const bitmapBytes = page.PageSize - page.PageHeaderSize

// AllocatePage claims the first free page id >= 3, sets its bitmap bit and
// flushes the bitmap before returning.
func (h *Handle) AllocatePage() (uint32, error) {
	bitmap, err := h.BPM.FetchPage(1)
	if err != nil {
		return page.InvalidPageID, errors.Wrap(err, "failed to fetch bitmap page")
	}

	for byteIdx := 0; byteIdx < bitmapBytes; byteIdx++ {
		b := bitmap.Data[page.PageHeaderSize+byteIdx]
		if b == 0xff {
			continue
		}
		for bitIdx := 0; bitIdx < 8; bitIdx++ {
			pageID := uint32(byteIdx*8 + bitIdx)
			if pageID < 3 {
				continue
			}
			if b&(1<<bitIdx) != 0 {
				continue
			}
			bitmap.Data[page.PageHeaderSize+byteIdx] |= 1 << bitIdx
			if err := h.BPM.UnpinPage(1, true); err != nil {
				return page.InvalidPageID, err
			}
			if err := h.BPM.FlushPage(1); err != nil {
				return page.InvalidPageID, err
			}
			h.logger.Debug("allocated page", zap.String("table", h.Name), zap.Uint32("pageID", pageID))
			return pageID, nil
		}
	}

	if err := h.BPM.UnpinPage(1, false); err != nil {
		return page.InvalidPageID, err
	}
	return page.InvalidPageID, ErrNoFreePages
}

// FreePage clears the page's bitmap bit, flushes the bitmap, and drops the
// page from the buffer pool without writing it back. The caller must have
// unlinked the page from all tree structures first.
func (h *Handle) FreePage(pageID uint32) error {
	bitmap, err := h.BPM.FetchPage(1)
	if err != nil {
		return errors.Wrap(err, "failed to fetch bitmap page")
	}

	byteIdx := pageID / 8
	bitIdx := pageID % 8
	bitmap.Data[page.PageHeaderSize+byteIdx] &^= 1 << bitIdx

	if err := h.BPM.UnpinPage(1, true); err != nil {
		return err
	}
	if err := h.BPM.FlushPage(1); err != nil {
		return err
	}

	// The page may not be resident, or may have just been unpinned by the
	// caller; not resident is fine.
	if err := h.BPM.DeletePage(pageID); err != nil && !errors.Is(err, bufferpool.ErrPageNotResident) {
		h.logger.Warn("failed to drop freed page from pool", zap.Uint32("pageID", pageID), zap.Error(err))
	}
	h.logger.Debug("freed page", zap.String("table", h.Name), zap.Uint32("pageID", pageID))
	return nil
}
