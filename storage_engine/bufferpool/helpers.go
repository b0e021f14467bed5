package bufferpool

import (
	"TomeDB/storage_engine/page"
)

/*
This file holds helper functions for the buffer pool.
*/

// PinnedCount returns how many frames currently hold a pinned page. After
// every top-level engine call this must be zero.
func (bp *BufferPool) PinnedCount() int {
	count := 0
	for i := range bp.frames {
		if bp.frames[i].PinCount > 0 {
			count++
		}
	}
	return count
}

// FreeFrameCount returns how many frames are empty.
func (bp *BufferPool) FreeFrameCount() int {
	count := 0
	for i := range bp.frames {
		if bp.frames[i].PageID == page.InvalidPageID {
			count++
		}
	}
	return count
}

// Size returns the number of resident pages.
func (bp *BufferPool) Size() int {
	return len(bp.pageTable)
}

// Capacity returns the number of frames.
func (bp *BufferPool) Capacity() int {
	return len(bp.frames)
}

// GetStats returns current buffer pool statistics.
func (bp *BufferPool) GetStats() Stats {
	stats := Stats{
		ResidentPages: len(bp.pageTable),
		Capacity:      len(bp.frames),
	}
	for i := range bp.frames {
		frame := &bp.frames[i]
		if frame.PageID == page.InvalidPageID {
			continue
		}
		if frame.PinCount > 0 {
			stats.PinnedPages++
		}
		if frame.Dirty {
			stats.DirtyPages++
		}
	}
	return stats
}
