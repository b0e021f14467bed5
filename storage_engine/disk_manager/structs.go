package diskmanager

import (
	"io"
)

// ############################################# DISK MANAGER #############################################

// PageFile is the backing store of one table: anything addressable in
// absolute byte offsets. *os.File is the production backend; tests use
// memfile.File to keep page I/O in memory.
type PageFile interface {
	io.ReaderAt
	io.WriterAt
}

// DiskManager performs stateless fixed-size page I/O over one file.
// Page id n lives at byte offset n * PageSize; the file grows on demand
// when a page is written past the current end.
type DiskManager struct {
	file PageFile
	path string
}
