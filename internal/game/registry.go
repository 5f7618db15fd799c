package game

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/mathdash-backend/internal"
)

// Registry owns every live room. Nothing else retains a *Room past the
// scope of a single handled command. The registry only indexes rooms;
// serializing access to a room's internals is the room mutex's job.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*internal.Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*internal.Room)}
}

// GetOrCreate returns the room for id, creating it in the waiting phase
// on first sight.
func (r *Registry) GetOrCreate(id string) *internal.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[id]; ok {
		return room
	}

	room := &internal.Room{
		Id:      id,
		Phase:   internal.PhaseWaiting,
		Players: make(map[string]*internal.Player),
		Config:  internal.RoomConfig{Mode: internal.ModeAdd, Rounds: internal.DefaultRounds},
	}
	r.rooms[id] = room

	log.Info().Str("room_id", id).Msg("room created")
	return room
}

func (r *Registry) Get(id string) (*internal.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// RemoveIfEmpty tears the room down if its roster is empty, bumping the
// epoch so any in-flight scheduled advance sees stale state and no-ops.
// It re-checks emptiness under the room lock: a join racing the removal
// keeps the room alive.
func (r *Registry) RemoveIfEmpty(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return false
	}

	room.Mu.Lock()
	empty := len(room.Players) == 0
	if empty {
		room.Epoch++
		room.Removed = true
	}
	room.Mu.Unlock()

	if !empty {
		return false
	}

	delete(r.rooms, id)
	log.Info().Str("room_id", id).Msg("room removed, roster empty")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// JoinableRoom returns the id of a room still waiting for its game to
// start, or "" when none exists.
func (r *Registry) JoinableRoom() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		room.Mu.Lock()
		waiting := room.Phase == internal.PhaseWaiting
		room.Mu.Unlock()
		if waiting {
			return room.Id
		}
	}
	return ""
}
