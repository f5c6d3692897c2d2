package foldercache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := New()
	key := Key("core", "demo", "a/b", "c")
	c.Put(key, Node{GlobalEntityID: "geid-1", ProjectCode: "demo"})

	n, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "geid-1", n.GlobalEntityID)
}

func TestGetMissingKey(t *testing.T) {
	c := New()
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestPutEvictsOldestBeyondCapacity(t *testing.T) {
	c := New()
	for i := 0; i < Capacity+1; i++ {
		c.Put(fmt.Sprintf("key-%d", i), Node{GlobalEntityID: fmt.Sprintf("g-%d", i)})
	}

	assert.Equal(t, Capacity, c.Len())
	_, ok := c.Get("key-0")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get(fmt.Sprintf("key-%d", Capacity))
	assert.True(t, ok, "most recent entry should still be cached")
}

func TestPutOverwriteDoesNotGrowOrder(t *testing.T) {
	c := New()
	c.Put("k", Node{GlobalEntityID: "v1"})
	c.Put("k", Node{GlobalEntityID: "v2"})

	assert.Equal(t, 1, c.Len())
	n, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", n.GlobalEntityID)
}
