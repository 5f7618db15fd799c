package game

import (
	"testing"

	"github.com/scythe504/mathdash-backend/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameRoom(t *testing.T) {
	reg := NewRegistry()

	a := reg.GetOrCreate("123")
	b := reg.GetOrCreate("123")
	require.Same(t, a, b)
	assert.Equal(t, internal.PhaseWaiting, a.Phase)
	assert.Equal(t, 1, reg.Len())

	_, ok := reg.Get("456")
	assert.False(t, ok)
}

func TestRemoveIfEmptyOnlyRemovesEmptyRooms(t *testing.T) {
	reg := NewRegistry()

	room := reg.GetOrCreate("123")
	room.Mu.Lock()
	room.AddPlayer("p1", "alice")
	room.Mu.Unlock()

	require.False(t, reg.RemoveIfEmpty("123"), "occupied room must survive")
	require.Equal(t, 1, reg.Len())

	room.Mu.Lock()
	room.RemovePlayer("p1")
	epochBefore := room.Epoch
	room.Mu.Unlock()

	require.True(t, reg.RemoveIfEmpty("123"))
	require.Zero(t, reg.Len())

	room.Mu.Lock()
	defer room.Mu.Unlock()
	assert.Equal(t, epochBefore+1, room.Epoch, "teardown must bump the epoch")
	assert.True(t, room.Removed, "teardown must flag the room so stale pointers can tell")

	assert.False(t, reg.RemoveIfEmpty("123"), "removing a removed room is a no-op")
}

func TestJoinableRoomSkipsRunningGames(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.JoinableRoom())

	playing := reg.GetOrCreate("busy")
	playing.Mu.Lock()
	playing.Phase = internal.PhasePlaying
	playing.Mu.Unlock()

	assert.Empty(t, reg.JoinableRoom())

	reg.GetOrCreate("open")
	assert.Equal(t, "open", reg.JoinableRoom())
}
