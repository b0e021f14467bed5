package btree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanEmptyTree(t *testing.T) {
	h := newTestTree(t)

	// The fresh root leaf is empty.
	it, err := NewScan(h, nil, nil)
	require.NoError(t, err)
	assert.False(t, it.Valid())

	// So is a reset tree.
	require.NoError(t, Insert(h, []byte("k"), []byte("v")))
	require.NoError(t, Delete(h, []byte("k")))
	it, err = NewScan(h, nil, nil)
	require.NoError(t, err)
	assert.False(t, it.Valid())
	assert.NoError(t, it.Err())
}

// Scenario: after inserting key0..key9, the inclusive range key2..key7
// yields exactly those six keys in ascending byte-wise order.
func TestRangeBounds(t *testing.T) {
	h := newTestTree(t)

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key%d", i)
		require.NoError(t, Insert(h, []byte(key), []byte("value"+key)))
	}

	it, err := NewScan(h, []byte("key2"), []byte("key7"))
	require.NoError(t, err)

	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"key2", "key3", "key4", "key5", "key6", "key7"}, got)
	assert.Equal(t, 0, h.BPM.PinnedCount())
}

func TestRangeBoundsNotStoredKeys(t *testing.T) {
	h := newTestTree(t)

	for _, k := range []string{"b", "d", "f", "h"} {
		require.NoError(t, Insert(h, []byte(k), []byte("v")))
	}

	// Bounds between stored keys: inclusive semantics over what exists.
	it, err := NewScan(h, []byte("c"), []byte("g"))
	require.NoError(t, err)
	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	assert.Equal(t, []string{"d", "f"}, got)

	// A range entirely past the data is empty.
	it, err = NewScan(h, []byte("x"), []byte("z"))
	require.NoError(t, err)
	assert.False(t, it.Valid())

	// An inverted range is empty.
	it, err = NewScan(h, []byte("g"), []byte("c"))
	require.NoError(t, err)
	assert.False(t, it.Valid())
}

func TestHalfOpenBounds(t *testing.T) {
	h := newTestTree(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, Insert(h, []byte(fmt.Sprintf("key%d", i)), []byte("v")))
	}

	it, err := NewScan(h, []byte("key7"), nil)
	require.NoError(t, err)
	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	assert.Equal(t, []string{"key7", "key8", "key9"}, got)

	it, err = NewScan(h, nil, []byte("key1"))
	require.NoError(t, err)
	got = nil
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	assert.Equal(t, []string{"key0", "key1"}, got)
}

// The iterator must follow next_page_id across leaves and stop at the end
// bound mid-page or at the chain's end.
func TestScanCrossesLeafBoundaries(t *testing.T) {
	h := newTestTree(t)

	value := make([]byte, 100)
	const n = 120
	for i := 0; i < n; i++ {
		require.NoError(t, Insert(h, []byte(fmt.Sprintf("key%03d", i)), value))
	}

	it, err := NewScan(h, []byte("key010"), []byte("key099"))
	require.NoError(t, err)
	count := 0
	last := ""
	for ; it.Valid(); it.Next() {
		key := string(it.Key())
		if last != "" {
			assert.Less(t, last, key)
		}
		last = key
		count++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, 90, count)
	assert.Equal(t, "key099", last)
	assert.Equal(t, 0, h.BPM.PinnedCount())
}

func TestIteratorValuesMatchKeys(t *testing.T) {
	h := newTestTree(t)

	for i := 0; i < 30; i++ {
		key := fmt.Sprintf("key%02d", i)
		require.NoError(t, Insert(h, []byte(key), []byte("value-"+key)))
	}

	it, err := NewScan(h, nil, nil)
	require.NoError(t, err)
	for ; it.Valid(); it.Next() {
		assert.Equal(t, "value-"+string(it.Key()), string(it.Value()))
	}
	require.NoError(t, it.Err())
}
