package jobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := Open(context.Background(), mr.Addr(), "", "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "job:1", `{"status":"INIT"}`))

	val, ok, err := store.Get(ctx, "job:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"status":"INIT"}`, val)
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t)
	_, ok, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScanPrefixReturnsAllMatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dataaction:s1:a", "A"))
	require.NoError(t, store.Set(ctx, "dataaction:s1:b", "B"))
	require.NoError(t, store.Set(ctx, "dataaction:s2:c", "C"))

	values, err := store.ScanPrefix(ctx, "dataaction:s1:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, values)
}

func TestPipelineBatchesWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pipe := store.Pipeline()
	pipe.Set(ctx, "p1", "v1")
	pipe.Set(ctx, "p2", "v2")
	require.NoError(t, pipe.Execute(ctx))

	v1, ok, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", v1)

	v2, ok, err := store.Get(ctx, "p2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", v2)
}
