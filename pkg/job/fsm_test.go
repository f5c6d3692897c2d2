package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicebob/miniredis/v2"

	"github.com/pilotfs/uploadgateway/pkg/jobstore"
)

func newTestStore(t *testing.T) *jobstore.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := jobstore.Open(context.Background(), mr.Addr(), "", "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCanTransitionHappyPath(t *testing.T) {
	assert.True(t, CanTransition(StateInit, StatePreUploaded))
	assert.True(t, CanTransition(StatePreUploaded, StateChunkUploaded))
	assert.True(t, CanTransition(StateChunkUploaded, StateFinalized))
	assert.True(t, CanTransition(StateFinalized, StateSucceed))
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	assert.False(t, CanTransition(StateInit, StateChunkUploaded))
	assert.False(t, CanTransition(StateInit, StateSucceed))
}

func TestCanTransitionAllowsSameStateOutsideTerminals(t *testing.T) {
	assert.True(t, CanTransition(StateChunkUploaded, StateChunkUploaded))
	assert.True(t, CanTransition(StatePreUploaded, StatePreUploaded))
	assert.False(t, CanTransition(StateSucceed, StateSucceed))
	assert.False(t, CanTransition(StateTerminated, StateTerminated))
}

func TestCanTransitionToTerminatedFromAnyNonTerminal(t *testing.T) {
	assert.True(t, CanTransition(StateInit, StateTerminated))
	assert.True(t, CanTransition(StatePreUploaded, StateTerminated))
	assert.True(t, CanTransition(StateChunkUploaded, StateTerminated))
	assert.False(t, CanTransition(StateSucceed, StateTerminated))
	assert.False(t, CanTransition(StateTerminated, StateTerminated))
}

func TestSetStatusPersistsAndRejectsIllegalMove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := New(store, "session-1", "demo", "alice")
	f.SetJobID("job-1")
	f.SetSource("/a/b.txt")

	require.NoError(t, f.SetStatus(ctx, StatePreUploaded))
	assert.Equal(t, StatePreUploaded, f.Status)

	err := f.SetStatus(ctx, StateSucceed)
	assert.Error(t, err)
	assert.Equal(t, StatePreUploaded, f.Status)
}

func TestSaveRequiresJobIDAndSource(t *testing.T) {
	store := newTestStore(t)
	f := New(store, "session-1", "demo", "alice")
	err := f.Save(context.Background())
	assert.Error(t, err)
}

func TestReadRoundTripsRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := New(store, "session-1", "demo", "alice")
	f.SetJobID("job-1")
	f.SetSource("/a/b.txt")
	f.AddPayload("resumable_identifier", "abc-123")
	require.NoError(t, f.SetStatus(ctx, StatePreUploaded))

	reread := New(store, "session-1", "demo", "alice")
	reread.SetJobID("job-1")
	reread.SetSource("/a/b.txt")
	require.NoError(t, reread.Read(ctx))

	assert.Equal(t, StatePreUploaded, reread.Status)
	assert.Equal(t, "abc-123", reread.Payload["resumable_identifier"])
}

func TestListBySessionFiltersByProjectAndOperator(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := New(store, "session-1", "demo", "alice")
	a.SetJobID("job-a")
	a.SetSource("/a.txt")
	require.NoError(t, a.SetStatus(ctx, StatePreUploaded))

	b := New(store, "session-1", "demo", "bob")
	b.SetJobID("job-b")
	b.SetSource("/b.txt")
	require.NoError(t, b.SetStatus(ctx, StatePreUploaded))

	c := New(store, "session-1", "other-project", "alice")
	c.SetJobID("job-c")
	c.SetSource("/c.txt")
	require.NoError(t, c.SetStatus(ctx, StatePreUploaded))

	records, err := ListBySession(ctx, store, "session-1", "demo", "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "job-a", records[0].JobID)

	all, err := ListBySession(ctx, store, "session-1", "demo", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
