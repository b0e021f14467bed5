package bufferpool

import (
	"testing"

	"github.com/dsnet/golib/memfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	diskmanager "TomeDB/storage_engine/disk_manager"
	"TomeDB/storage_engine/page"
)

func newTestPool(t *testing.T, frames int) (*BufferPool, *diskmanager.DiskManager) {
	t.Helper()
	dm := diskmanager.NewDiskManagerWithFile(memfile.New(nil))
	return NewBufferPool(frames, dm, zap.NewNop()), dm
}

func TestFetchPinsAndUnpinReleases(t *testing.T) {
	bp, dm := newTestPool(t, 4)

	var p page.Page
	p.Init(9, page.TypeData, page.LevelLeaf)
	require.NoError(t, dm.WritePage(9, p.Data[:]))

	got, err := bp.FetchPage(9)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), got.PageID())
	assert.Equal(t, 1, bp.PinnedCount())

	// A second fetch stacks a second pin on the same frame.
	_, err = bp.FetchPage(9)
	require.NoError(t, err)
	assert.Equal(t, 1, bp.PinnedCount())
	assert.Equal(t, 1, bp.Size())

	require.NoError(t, bp.UnpinPage(9, false))
	assert.Equal(t, 1, bp.PinnedCount())
	require.NoError(t, bp.UnpinPage(9, false))
	assert.Equal(t, 0, bp.PinnedCount())

	// A third unpin has nothing to release.
	assert.Error(t, bp.UnpinPage(9, false))
}

func TestUnpinNonResidentFails(t *testing.T) {
	bp, _ := newTestPool(t, 4)
	err := bp.UnpinPage(123, false)
	assert.ErrorIs(t, err, ErrPageNotResident)
}

func TestNewPageInitialisesWithoutDiskRead(t *testing.T) {
	bp, _ := newTestPool(t, 4)

	p, err := bp.NewPage(5, page.TypeIndex, page.LevelInternal)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), p.PageID())
	assert.Equal(t, page.LevelInternal, p.Level())

	stats := bp.GetStats()
	assert.Equal(t, 1, stats.PinnedPages)
	assert.Equal(t, 1, stats.DirtyPages)

	require.NoError(t, bp.UnpinPage(5, true))
}

func TestEvictionWritesBackDirtyPage(t *testing.T) {
	bp, dm := newTestPool(t, 1)

	p, err := bp.NewPage(3, page.TypeData, page.LevelLeaf)
	require.NoError(t, err)
	require.True(t, p.Insert([]byte("k"), []byte("v")))
	require.NoError(t, bp.UnpinPage(3, true))

	// Fetching another page through the single frame evicts page 3 and
	// must persist it first.
	_, err = bp.FetchPage(8)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(8, false))

	var check page.Page
	require.NoError(t, dm.ReadPage(3, check.Data[:]))
	result := check.SearchRecord([]byte("k"))
	require.True(t, result.Found)
	value, ok := check.SlotValue(result.Index)
	require.True(t, ok)
	assert.Equal(t, "v", string(value))

	// And page 3 reads back through the pool.
	back, err := bp.FetchPage(3)
	require.NoError(t, err)
	assert.True(t, back.SearchRecord([]byte("k")).Found)
	require.NoError(t, bp.UnpinPage(3, false))
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	bp, _ := newTestPool(t, 2)

	for _, id := range []uint32{1, 2} {
		_, err := bp.NewPage(id, page.TypeData, page.LevelLeaf)
		require.NoError(t, err)
		require.NoError(t, bp.UnpinPage(id, true))
	}

	// Touch page 1 so page 2 becomes the LRU candidate.
	_, err := bp.FetchPage(1)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(1, false))

	_, err = bp.NewPage(3, page.TypeData, page.LevelLeaf)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(3, true))

	stats := bp.GetStats()
	assert.Equal(t, 2, stats.ResidentPages)

	// Page 1 must still be resident; page 2 was evicted.
	assert.Equal(t, 0, bp.FreeFrameCount())
	_, err = bp.FetchPage(1)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(1, false))
}

func TestPoolExhaustion(t *testing.T) {
	bp, _ := newTestPool(t, 2)

	_, err := bp.NewPage(1, page.TypeData, page.LevelLeaf)
	require.NoError(t, err)
	_, err = bp.NewPage(2, page.TypeData, page.LevelLeaf)
	require.NoError(t, err)

	// Both frames pinned: nothing to evict.
	_, err = bp.FetchPage(3)
	assert.ErrorIs(t, err, ErrNoFreeFrames)

	require.NoError(t, bp.UnpinPage(1, false))
	_, err = bp.FetchPage(3)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(3, false))
	require.NoError(t, bp.UnpinPage(2, false))
}

func TestDeletePageRefusesPinned(t *testing.T) {
	bp, _ := newTestPool(t, 2)

	_, err := bp.NewPage(4, page.TypeData, page.LevelLeaf)
	require.NoError(t, err)

	assert.ErrorIs(t, bp.DeletePage(4), ErrPagePinned)

	require.NoError(t, bp.UnpinPage(4, true))
	require.NoError(t, bp.DeletePage(4))
	assert.Equal(t, 0, bp.Size())
	assert.Equal(t, 2, bp.FreeFrameCount())
}

func TestFlushAllIsIdempotent(t *testing.T) {
	bp, dm := newTestPool(t, 4)

	p, err := bp.NewPage(6, page.TypeData, page.LevelLeaf)
	require.NoError(t, err)
	require.True(t, p.Insert([]byte("a"), []byte("b")))
	require.NoError(t, bp.UnpinPage(6, true))

	require.NoError(t, bp.FlushAll())
	assert.Equal(t, 0, bp.GetStats().DirtyPages)
	require.NoError(t, bp.FlushAll())

	var check page.Page
	require.NoError(t, dm.ReadPage(6, check.Data[:]))
	assert.True(t, check.SearchRecord([]byte("a")).Found)
}

func TestFlushPageClearsDirty(t *testing.T) {
	bp, _ := newTestPool(t, 4)

	_, err := bp.NewPage(2, page.TypeData, page.LevelLeaf)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(2, true))

	require.NoError(t, bp.FlushPage(2))
	assert.Equal(t, 0, bp.GetStats().DirtyPages)

	err = bp.FlushPage(77)
	assert.ErrorIs(t, err, ErrPageNotResident)
}
