package bufferpool

import (
	"go.uber.org/zap"

	diskmanager "TomeDB/storage_engine/disk_manager"
	"TomeDB/storage_engine/page"
)

// ############################################# BUFFER POOL #############################################

// DefaultPoolSize is the number of frames when the caller does not choose.
const DefaultPoolSize = 128

// Frame is one cache slot: a page plus its residency bookkeeping. A frame
// with PageID == page.InvalidPageID is empty.
type Frame struct {
	PageID   uint32
	PinCount uint32
	Dirty    bool
	Page     page.Page
}

// BufferPool caches pages in a fixed array of frames with LRU eviction.
// Every disk page access above the disk manager goes through here.
//
// A page is resident in at most one frame. PinCount > 0 blocks eviction.
// Dirty is monotone within a residency: once set it is only cleared by a
// successful flush or eviction write-back.
type BufferPool struct {
	frames      []Frame
	pageTable   map[uint32]int // pageID -> frame index
	accessOrder []int          // LRU tracking: most recently used at end
	diskManager *diskmanager.DiskManager
	logger      *zap.Logger
}

// Stats is a point-in-time summary of pool occupancy, used by tests to
// verify the pin discipline.
type Stats struct {
	ResidentPages int
	PinnedPages   int
	DirtyPages    int
	Capacity      int
}
