package internal

import (
	"fmt"
	"sync"
	"time"
)

const (
	ScorePerWin     = 10
	DefaultRounds   = 10
	OptionsPerRound = 4
	AdvanceDelay    = 2 * time.Second

	// DifficultyStep is how many points the leading player accumulates
	// before the operand ranges widen by one level.
	DifficultyStep = 50
)

type GameMode string

const (
	ModeAdd GameMode = "add"
	ModeSub GameMode = "sub"
	ModeMul GameMode = "mul"
	ModeDiv GameMode = "div"
	ModeAll GameMode = "all"
)

// ParseMode validates a client-supplied mode string.
func ParseMode(s string) (GameMode, error) {
	switch GameMode(s) {
	case ModeAdd, ModeSub, ModeMul, ModeDiv, ModeAll:
		return GameMode(s), nil
	default:
		return "", fmt.Errorf("unknown game mode %q", s)
	}
}

type GamePhase string

const (
	PhaseWaiting  GamePhase = "waiting"
	PhasePlaying  GamePhase = "playing"
	PhaseFinished GamePhase = "finished"
)

type Player struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Option is a single candidate expression. Value is the evaluated result
// the options are ranked by; Text is what clients render.
type Option struct {
	Id       string `json:"id"`
	A        int    `json:"a"`
	B        int    `json:"b"`
	Operator string `json:"operator"`
	Value    int    `json:"val"`
	Text     string `json:"text"`
}

// Round holds the four candidate expressions of one quiz round. WinnerId
// is the id of the option with the strictly greatest value; the generator
// never emits a round where that option is not unique.
type Round struct {
	Options  []Option `json:"options"`
	WinnerId string   `json:"winnerId"`
}

type RoomConfig struct {
	Mode   GameMode `json:"mode"`
	Rounds int      `json:"rounds"`
	Time   int      `json:"time"`
}

// RoundLimit is the configured number of rounds, falling back to the
// default when the client never set one.
func (c RoomConfig) RoundLimit() int {
	if c.Rounds <= 0 {
		return DefaultRounds
	}
	return c.Rounds
}

type Room struct {
	Id      string
	Phase   GamePhase
	Players map[string]*Player

	// Order preserves join order so roster broadcasts are stable.
	Order []string

	Config       RoomConfig
	RoundNumber  int
	CurrentRound *Round

	// Resolved is set once the current round has been won, so a second
	// correct submission racing the first is evaluated against resolved
	// state and ignored.
	Resolved bool

	// Epoch increments on every (re)start and teardown. A scheduled
	// advance captures the epoch it was created under and becomes a
	// no-op if the room's epoch has moved on.
	Epoch uint64

	// Removed is set when the registry tears the room down. A join that
	// grabbed the pointer before the teardown sees the flag once it gets
	// the lock and retries against a fresh room.
	Removed bool

	// Mu serializes whole transitions: every command against this room
	// runs under it, which is what makes "first correct answer wins"
	// well defined.
	Mu sync.Mutex
}

// AddPlayer inserts a player if their id is not already on the roster.
// Rejoining is idempotent and never resets a live score.
// Caller must hold r.Mu.
func (r *Room) AddPlayer(id, username string) *Player {
	if p, ok := r.Players[id]; ok {
		return p
	}
	p := &Player{Id: id, Username: username}
	r.Players[id] = p
	r.Order = append(r.Order, id)
	return p
}

// RemovePlayer deletes a player from the roster and reports whether the
// room is now empty. Caller must hold r.Mu.
func (r *Room) RemovePlayer(id string) bool {
	if _, ok := r.Players[id]; ok {
		delete(r.Players, id)
		for i, pid := range r.Order {
			if pid == id {
				r.Order = append(r.Order[:i], r.Order[i+1:]...)
				break
			}
		}
	}
	return len(r.Players) == 0
}

// Roster returns the players in join order. Caller must hold r.Mu; the
// returned slice is a snapshot safe to use after unlocking.
func (r *Room) Roster() []Player {
	players := make([]Player, 0, len(r.Order))
	for _, id := range r.Order {
		if p, ok := r.Players[id]; ok {
			players = append(players, *p)
		}
	}
	return players
}

// MaxScore returns the highest score on the roster. Caller must hold r.Mu.
func (r *Room) MaxScore() int {
	max := 0
	for _, p := range r.Players {
		if p.Score > max {
			max = p.Score
		}
	}
	return max
}
