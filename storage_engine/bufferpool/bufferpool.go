package bufferpool

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	diskmanager "TomeDB/storage_engine/disk_manager"
	"TomeDB/storage_engine/page"
)

/*
This is the main file of the buffer pool.

The pool holds a fixed array of frames and a page-id -> frame hash table.
Unpinned resident frames are eviction candidates, tracked in accessOrder
(most recently used at the end). On a miss the pool prefers an empty frame;
otherwise it evicts the least recently used unpinned frame, writing it back
first if dirty.

Pages are handed out pinned. The caller owns exactly one unpin per fetch or
new, on every control path; an unpaired pin eventually exhausts the pool and
FetchPage starts failing with ErrNoFreeFrames.
*/

var (
	ErrNoFreeFrames    = errors.New("all frames are pinned, cannot evict")
	ErrPageNotResident = errors.New("page not in buffer pool")
	ErrPagePinned      = errors.New("page is pinned")
)

// NewBufferPool creates a pool of poolSize frames over the given disk
// manager.
func NewBufferPool(poolSize int, dm *diskmanager.DiskManager, logger *zap.Logger) *BufferPool {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bp := &BufferPool{
		frames:      make([]Frame, poolSize),
		pageTable:   make(map[uint32]int, poolSize),
		accessOrder: make([]int, 0, poolSize),
		diskManager: dm,
		logger:      logger,
	}
	for i := range bp.frames {
		bp.frames[i].PageID = page.InvalidPageID
	}
	return bp
}

// FetchPage returns the page pinned, reading it from disk if it is not
// resident.
func (bp *BufferPool) FetchPage(pageID uint32) (*page.Page, error) {
	if frameID, exists := bp.pageTable[pageID]; exists {
		frame := &bp.frames[frameID]
		frame.PinCount++
		bp.markFrameUsed(frameID)
		bp.logger.Debug("buffer pool hit", zap.Uint32("pageID", pageID), zap.Uint32("pinCount", frame.PinCount))
		return &frame.Page, nil
	}

	frameID, err := bp.acquireFrame()
	if err != nil {
		return nil, err
	}

	frame := &bp.frames[frameID]
	if err := bp.diskManager.ReadPage(pageID, frame.Page.Data[:]); err != nil {
		return nil, errors.Wrapf(err, "failed to read page %d from disk", pageID)
	}

	bp.logger.Debug("buffer pool miss", zap.Uint32("pageID", pageID))
	frame.PageID = pageID
	frame.PinCount = 1
	frame.Dirty = false
	bp.pageTable[pageID] = frameID
	bp.markFrameUsed(frameID)
	return &frame.Page, nil
}

// NewPage installs a freshly initialised page into a frame without touching
// disk. The page comes back pinned and dirty.
func (bp *BufferPool) NewPage(pageID uint32, pageType page.PageType, pageLevel page.PageLevel) (*page.Page, error) {
	if frameID, exists := bp.pageTable[pageID]; exists {
		frame := &bp.frames[frameID]
		frame.PinCount++
		bp.markFrameUsed(frameID)
		return &frame.Page, nil
	}

	frameID, err := bp.acquireFrame()
	if err != nil {
		return nil, err
	}

	frame := &bp.frames[frameID]
	frame.Page.Init(pageID, pageType, pageLevel)
	frame.PageID = pageID
	frame.PinCount = 1
	frame.Dirty = true
	bp.pageTable[pageID] = frameID
	bp.markFrameUsed(frameID)
	return &frame.Page, nil
}

// UnpinPage releases one pin and ORs in the caller's dirty flag. Fails if
// the page is not resident or was already unpinned.
func (bp *BufferPool) UnpinPage(pageID uint32, dirty bool) error {
	frameID, exists := bp.pageTable[pageID]
	if !exists {
		return errors.Wrapf(ErrPageNotResident, "page %d", pageID)
	}

	frame := &bp.frames[frameID]
	if frame.PinCount == 0 {
		return errors.Errorf("page %d is not pinned", pageID)
	}
	frame.PinCount--
	if dirty {
		frame.Dirty = true
	}
	return nil
}

// FlushPage writes the frame to disk and clears its dirty bit.
func (bp *BufferPool) FlushPage(pageID uint32) error {
	frameID, exists := bp.pageTable[pageID]
	if !exists {
		return errors.Wrapf(ErrPageNotResident, "page %d", pageID)
	}

	frame := &bp.frames[frameID]
	if !frame.Dirty {
		return nil
	}
	if err := bp.diskManager.WritePage(pageID, frame.Page.Data[:]); err != nil {
		return errors.Wrapf(err, "failed to flush page %d", pageID)
	}
	frame.Dirty = false
	return nil
}

// FlushAll writes every resident dirty frame, best-effort: an I/O failure on
// one page does not stop the others, the last failure is returned.
func (bp *BufferPool) FlushAll() error {
	var lastErr error
	flushed := 0
	for pageID, frameID := range bp.pageTable {
		frame := &bp.frames[frameID]
		if !frame.Dirty {
			continue
		}
		if err := bp.diskManager.WritePage(pageID, frame.Page.Data[:]); err != nil {
			bp.logger.Warn("flush failed", zap.Uint32("pageID", pageID), zap.Error(err))
			lastErr = err
			continue
		}
		frame.Dirty = false
		flushed++
	}
	if flushed > 0 {
		bp.logger.Debug("flushed dirty pages", zap.Int("count", flushed))
	}
	return lastErr
}

// DeletePage drops a resident, unpinned page from the pool without writing
// it back. Used when the page has been freed and its bytes no longer matter.
func (bp *BufferPool) DeletePage(pageID uint32) error {
	frameID, exists := bp.pageTable[pageID]
	if !exists {
		return errors.Wrapf(ErrPageNotResident, "page %d", pageID)
	}

	frame := &bp.frames[frameID]
	if frame.PinCount > 0 {
		return errors.Wrapf(ErrPagePinned, "cannot delete page %d", pageID)
	}

	delete(bp.pageTable, pageID)
	bp.removeFromAccessOrder(frameID)
	frame.PageID = page.InvalidPageID
	frame.PinCount = 0
	frame.Dirty = false
	return nil
}

// acquireFrame returns the index of a frame ready to receive a page:
// an empty frame if one exists, else the LRU unpinned frame after evicting
// its current page.
func (bp *BufferPool) acquireFrame() (int, error) {
	for i := range bp.frames {
		if bp.frames[i].PageID == page.InvalidPageID {
			return i, nil
		}
	}

	for i := 0; i < len(bp.accessOrder); i++ {
		frameID := bp.accessOrder[i]
		frame := &bp.frames[frameID]
		if frame.PinCount > 0 {
			continue
		}
		if err := bp.evictFrame(frameID); err != nil {
			return 0, err
		}
		return frameID, nil
	}
	return 0, ErrNoFreeFrames
}

// evictFrame writes the frame back if dirty and resets it to empty.
func (bp *BufferPool) evictFrame(frameID int) error {
	frame := &bp.frames[frameID]
	if frame.PageID == page.InvalidPageID {
		return nil
	}

	bp.logger.Debug("evicting page", zap.Uint32("pageID", frame.PageID), zap.Bool("dirty", frame.Dirty))
	if frame.Dirty {
		if err := bp.diskManager.WritePage(frame.PageID, frame.Page.Data[:]); err != nil {
			return errors.Wrapf(err, "failed to write page %d during eviction", frame.PageID)
		}
	}

	delete(bp.pageTable, frame.PageID)
	bp.removeFromAccessOrder(frameID)
	frame.PageID = page.InvalidPageID
	frame.PinCount = 0
	frame.Dirty = false
	return nil
}

// markFrameUsed moves a frame to the end of the access order (most recently
// used).
func (bp *BufferPool) markFrameUsed(frameID int) {
	bp.removeFromAccessOrder(frameID)
	bp.accessOrder = append(bp.accessOrder, frameID)
}

func (bp *BufferPool) removeFromAccessOrder(frameID int) {
	for i, id := range bp.accessOrder {
		if id == frameID {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			return
		}
	}
}
