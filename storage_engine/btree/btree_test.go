package btree

import (
	"fmt"
	"sort"
	"testing"

	"github.com/dsnet/golib/memfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	diskmanager "TomeDB/storage_engine/disk_manager"
	"TomeDB/storage_engine/page"
	table "TomeDB/storage_engine/table_manager"
)

func newTestTree(t *testing.T) *table.Handle {
	t.Helper()
	dm := diskmanager.NewDiskManagerWithFile(memfile.New(nil))
	require.NoError(t, table.CreateWithDiskManager(dm))
	h, err := table.OpenWithDiskManager("kv", dm, 32, zap.NewNop())
	require.NoError(t, err)
	return h
}

func collectKeys(t *testing.T, h *table.Handle) []string {
	t.Helper()
	it, err := NewScan(h, nil, nil)
	require.NoError(t, err)
	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	return keys
}

func TestInsertAndSearchSingleLeaf(t *testing.T) {
	h := newTestTree(t)

	require.NoError(t, Insert(h, []byte("hello"), []byte("world")))

	value, err := Search(h, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(value))

	_, err = Search(h, []byte("absent"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.Equal(t, 0, h.BPM.PinnedCount())
}

func TestInsertDuplicateRejected(t *testing.T) {
	h := newTestTree(t)

	require.NoError(t, Insert(h, []byte("k"), []byte("v1")))
	err := Insert(h, []byte("k"), []byte("v2"))
	assert.ErrorIs(t, err, ErrDuplicateKey)

	value, err := Search(h, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(value), "stored value must be unchanged")
}

func TestSearchEmptyTree(t *testing.T) {
	h := newTestTree(t)
	// Root page 2 exists but is an empty leaf.
	_, err := Search(h, []byte("k"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

// Twenty records force at least one leaf split; all must stay retrievable
// and a full scan must yield the byte-wise order, where "key10" sorts
// between "key1" and "key2".
func TestSplitKeepsAllRecordsInByteWiseOrder(t *testing.T) {
	h := newTestTree(t)

	// Values are padded so 20 records cannot fit in one 2KB page.
	pad := make([]byte, 120)
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("key%d", i)
		value := append([]byte(fmt.Sprintf("value%d-", i)), pad...)
		require.NoError(t, Insert(h, []byte(key), value), "insert %s", key)
	}

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("key%d", i)
		value, err := Search(h, []byte(key))
		require.NoError(t, err, "search %s", key)
		assert.Equal(t, fmt.Sprintf("value%d-", i), string(value[:len(value)-len(pad)]))
	}

	want := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		want = append(want, fmt.Sprintf("key%d", i))
	}
	sort.Strings(want)
	assert.Equal(t, []string{
		"key0", "key1", "key10", "key11", "key12", "key13", "key14",
		"key15", "key16", "key17", "key18", "key19", "key2", "key3",
		"key4", "key5", "key6", "key7", "key8", "key9",
	}, want, "sanity: byte-wise expectation")
	assert.Equal(t, want, collectKeys(t, h))

	require.NoError(t, CheckLeafChain(h))
	assert.Equal(t, 0, h.BPM.PinnedCount())
}

func TestMultiLevelTreeRoundTrip(t *testing.T) {
	h := newTestTree(t)

	value := make([]byte, 100)
	for i := range value {
		value[i] = byte('a' + i%26)
	}

	const n = 300
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key%04d", i)
		require.NoError(t, Insert(h, []byte(key), value), "insert %s", key)
	}

	// The root must have grown past a single leaf.
	var root page.Page
	p, err := h.BPM.FetchPage(h.RootPage)
	require.NoError(t, err)
	copy(root.Data[:], p.Data[:])
	require.NoError(t, h.BPM.UnpinPage(h.RootPage, false))
	require.Equal(t, page.LevelInternal, root.Level())

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key%04d", i)
		got, err := Search(h, []byte(key))
		require.NoError(t, err, "search %s", key)
		assert.Equal(t, value, got)
	}

	keys := collectKeys(t, h)
	require.Len(t, keys, n)
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i], "scan order at %d", i)
	}

	require.NoError(t, CheckLeafChain(h))
	assert.Equal(t, 0, h.BPM.PinnedCount())
}

func TestInsertDescendingKeys(t *testing.T) {
	h := newTestTree(t)

	value := make([]byte, 64)
	const n = 200
	for i := n - 1; i >= 0; i-- {
		key := fmt.Sprintf("key%04d", i)
		require.NoError(t, Insert(h, []byte(key), value))
	}

	keys := collectKeys(t, h)
	require.Len(t, keys, n)
	assert.Equal(t, "key0000", keys[0])
	assert.Equal(t, fmt.Sprintf("key%04d", n-1), keys[n-1])

	require.NoError(t, CheckLeafChain(h))
	assert.Equal(t, 0, h.BPM.PinnedCount())
}

func TestRecordTooLargeRejected(t *testing.T) {
	h := newTestTree(t)

	big := make([]byte, page.PageSize)
	err := Insert(h, []byte("k"), big)
	assert.ErrorIs(t, err, ErrOutOfSpace)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	mf := memfile.New(nil)
	dm := diskmanager.NewDiskManagerWithFile(mf)
	require.NoError(t, table.CreateWithDiskManager(dm))
	h, err := table.OpenWithDiskManager("kv", dm, 32, zap.NewNop())
	require.NoError(t, err)

	value := make([]byte, 100)
	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, Insert(h, []byte(fmt.Sprintf("key%04d", i)), value))
	}
	require.NoError(t, h.BPM.FlushAll())

	// Reopen over the same backing bytes: a cold buffer pool must see
	// everything.
	h2, err := table.OpenWithDiskManager("kv", diskmanager.NewDiskManagerWithFile(mf), 32, zap.NewNop())
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := Search(h2, []byte(fmt.Sprintf("key%04d", i)))
		require.NoError(t, err, "key%04d after reopen", i)
	}
	keys := collectKeys(t, h2)
	assert.Len(t, keys, n)
}
