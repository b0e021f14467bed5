package table

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"TomeDB/storage_engine/bufferpool"
	diskmanager "TomeDB/storage_engine/disk_manager"
	"TomeDB/storage_engine/page"
)

/*
Table lifecycle.

A table is one file with a fixed prelude:

	page 0  meta page; its RootPage header field holds the tree root id
	        (0 means the tree is empty)
	page 1  free-page bitmap, one bit per page id, set means allocated
	page 2  the initial tree root, an empty leaf
	page 3+ allocated on demand through the bitmap

Create writes the prelude through a bare disk manager and flushes; no buffer
pool exists yet at that point. Open wires up the disk manager and buffer
pool and caches the root id on the handle.
*/

// Handle is an open table: its file, its buffer pool, and the cached root
// page id. The B+Tree layer keeps RootPage in sync with the meta page.
type Handle struct {
	Name     string
	Path     string
	DM       *diskmanager.DiskManager
	BPM      *bufferpool.BufferPool
	RootPage uint32

	logger *zap.Logger
}

// Create initialises a new table file at path. Fails if the file already
// exists.
func Create(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("table file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create data directory")
	}

	dm, err := diskmanager.NewDiskManager(path)
	if err != nil {
		return err
	}
	defer dm.Close()

	var meta page.Page
	meta.Init(0, page.TypeMeta, page.LevelNone)
	meta.SetRootPage(2)

	var bitmap page.Page
	bitmap.Init(1, page.TypeMeta, page.LevelNone)
	// Pages 0 (meta), 1 (bitmap) and 2 (root) are pre-allocated.
	bitmap.Data[page.PageHeaderSize] |= 1 << 0
	bitmap.Data[page.PageHeaderSize] |= 1 << 1
	bitmap.Data[page.PageHeaderSize] |= 1 << 2

	var root page.Page
	root.Init(2, page.TypeData, page.LevelLeaf)

	if err := dm.WritePage(0, meta.Data[:]); err != nil {
		return err
	}
	if err := dm.WritePage(1, bitmap.Data[:]); err != nil {
		return err
	}
	if err := dm.WritePage(2, root.Data[:]); err != nil {
		return err
	}
	return dm.Flush()
}

// Open constructs the disk manager and buffer pool for an existing table
// file and reads the root page id from the meta page.
func Open(name, path string, poolSize int, logger *zap.Logger) (*Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "table file %s not found", path)
	}

	dm, err := diskmanager.NewDiskManager(path)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		Name:   name,
		Path:   path,
		DM:     dm,
		BPM:    bufferpool.NewBufferPool(poolSize, dm, logger),
		logger: logger,
	}

	meta, err := h.BPM.FetchPage(0)
	if err != nil {
		dm.Close()
		return nil, errors.Wrapf(err, "failed to read meta page of table %s", name)
	}
	h.RootPage = meta.RootPage()
	if err := h.BPM.UnpinPage(0, false); err != nil {
		dm.Close()
		return nil, err
	}

	logger.Debug("opened table", zap.String("table", name), zap.Uint32("rootPage", h.RootPage))
	return h, nil
}

// OpenWithDiskManager is Open over a pre-built disk manager, for tests that
// run a table on an in-memory file. The prelude must already be written.
func OpenWithDiskManager(name string, dm *diskmanager.DiskManager, poolSize int, logger *zap.Logger) (*Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handle{
		Name:   name,
		DM:     dm,
		BPM:    bufferpool.NewBufferPool(poolSize, dm, logger),
		logger: logger,
	}
	meta, err := h.BPM.FetchPage(0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read meta page of table %s", name)
	}
	h.RootPage = meta.RootPage()
	if err := h.BPM.UnpinPage(0, false); err != nil {
		return nil, err
	}
	return h, nil
}

// CreateWithDiskManager writes the table prelude through an existing disk
// manager, the in-memory counterpart of Create.
func CreateWithDiskManager(dm *diskmanager.DiskManager) error {
	var meta page.Page
	meta.Init(0, page.TypeMeta, page.LevelNone)
	meta.SetRootPage(2)

	var bitmap page.Page
	bitmap.Init(1, page.TypeMeta, page.LevelNone)
	bitmap.Data[page.PageHeaderSize] |= 1 << 0
	bitmap.Data[page.PageHeaderSize] |= 1 << 1
	bitmap.Data[page.PageHeaderSize] |= 1 << 2

	var root page.Page
	root.Init(2, page.TypeData, page.LevelLeaf)

	if err := dm.WritePage(0, meta.Data[:]); err != nil {
		return err
	}
	if err := dm.WritePage(1, bitmap.Data[:]); err != nil {
		return err
	}
	if err := dm.WritePage(2, root.Data[:]); err != nil {
		return err
	}
	return dm.Flush()
}

// Close flushes every dirty page and releases the file.
func (h *Handle) Close() error {
	if err := h.BPM.FlushAll(); err != nil {
		return err
	}
	return h.DM.Close()
}
