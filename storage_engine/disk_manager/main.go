package diskmanager

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"TomeDB/storage_engine/page"
)

/*
This is the main file for the disk manager.

It owns the file handle for a single table file and translates page ids into
byte offsets. Nothing above this layer sees offsets or short reads: ReadPage
always fills a whole page (zero-filling past EOF, so a never-written page
reads back as a zero page) and WritePage either writes a whole page or
fails.

The buffer pool is the only caller during normal operation; table creation
writes its initial pages through a DiskManager directly, before any pool
exists.
*/

// NewDiskManager opens (or creates) the table file at path.
func NewDiskManager(path string) (*DiskManager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open table file %s", path)
	}
	return &DiskManager{file: file, path: path}, nil
}

// NewDiskManagerWithFile wraps an already-open page file. Used by tests to
// run the whole stack over an in-memory file.
func NewDiskManagerWithFile(file PageFile) *DiskManager {
	return &DiskManager{file: file}
}

// Path returns the backing file path; empty for in-memory backends.
func (dm *DiskManager) Path() string {
	return dm.path
}

// ReadPage fills buf with the page at pageID. A short read at EOF zero-fills
// the remainder, so reading past the end of the file yields a zero page.
func (dm *DiskManager) ReadPage(pageID uint32, buf []byte) error {
	if len(buf) != page.PageSize {
		return errors.Errorf("read buffer size %d does not match page size %d", len(buf), page.PageSize)
	}

	offset := int64(pageID) * int64(page.PageSize)
	n, err := dm.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "failed to read page %d", pageID)
	}
	for i := n; i < page.PageSize; i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes the page at pageID, extending the file as needed.
func (dm *DiskManager) WritePage(pageID uint32, buf []byte) error {
	if len(buf) != page.PageSize {
		return errors.Errorf("write buffer size %d does not match page size %d", len(buf), page.PageSize)
	}

	offset := int64(pageID) * int64(page.PageSize)
	n, err := dm.file.WriteAt(buf, offset)
	if err != nil {
		return errors.Wrapf(err, "failed to write page %d", pageID)
	}
	if n != page.PageSize {
		return errors.Errorf("short write for page %d: %d of %d bytes", pageID, n, page.PageSize)
	}
	return nil
}

// Flush pushes buffered writes to stable storage on backends that support
// it; in-memory backends have nothing to commit.
func (dm *DiskManager) Flush() error {
	if s, ok := dm.file.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return errors.Wrap(err, "failed to flush table file")
		}
	}
	return nil
}

// Close flushes and releases the file handle.
func (dm *DiskManager) Close() error {
	if err := dm.Flush(); err != nil {
		return err
	}
	if c, ok := dm.file.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return errors.Wrap(err, "failed to close table file")
		}
	}
	return nil
}
