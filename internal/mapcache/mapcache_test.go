package mapcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMiss(t *testing.T) {
	c := New[string]()
	_, _, ok := c.Get(0)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestPutGet(t *testing.T) {
	c := New[string]()
	require.True(t, c.Put(2, "table-2", 1))

	v, version, ok := c.Get(2)
	require.True(t, ok)
	assert.Equal(t, "table-2", v)
	assert.Equal(t, uint64(1), version)
	assert.Equal(t, 1, c.Len())
}

func TestPutRejectsOlderVersion(t *testing.T) {
	c := New[string]()
	require.True(t, c.Put(0, "new", 5))

	// A slow rebuild finishing late must not clobber the newer table.
	assert.False(t, c.Put(0, "old", 3))

	v, version, ok := c.Get(0)
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, uint64(5), version)
	assert.Equal(t, uint64(1), c.Stats().Rejected)
}

func TestPutReplacesEqualVersion(t *testing.T) {
	// A lazy synchronous build and the async rebuild may both produce the
	// same version; the later write wins and both are equivalent.
	c := New[string]()
	require.True(t, c.Put(0, "first", 2))
	require.True(t, c.Put(0, "second", 2))

	v, _, _ := c.Get(0)
	assert.Equal(t, "second", v)
}

func TestTrim(t *testing.T) {
	c := New[int]()
	for i := 0; i < 6; i++ {
		c.Put(i, i, 1)
	}

	c.Trim(4)
	assert.Equal(t, 4, c.Len())
	_, _, ok := c.Get(3)
	assert.True(t, ok)
	_, _, ok = c.Get(4)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	c := New[int]()
	c.Put(0, 1, 1)
	c.Put(1, 2, 1)
	c.Clear()
	assert.Zero(t, c.Len())
}

func TestStatsCounters(t *testing.T) {
	c := New[int]()
	c.Put(0, 10, 1)
	c.Get(0)
	c.Get(1)

	st := c.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(1), st.Swaps)
	assert.Zero(t, st.Rejected)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for v := 0; v < 200; v++ {
				c.Put(n, v, uint64(v))
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Get(n)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		v, version, ok := c.Get(i)
		require.True(t, ok)
		assert.Equal(t, 199, v, "highest version wins for viewpoint %d", i)
		assert.Equal(t, uint64(199), version)
	}
}
