package game

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/mathdash-backend/internal"
	"github.com/scythe504/mathdash-backend/internal/mathgen"
)

var (
	ErrRoomNotFound = errors.New("game: room not found")
	ErrNotPlaying   = errors.New("game: room is not playing")
	ErrGameRunning  = errors.New("game: game already running")
	ErrNotInRoom    = errors.New("game: player not in room")
)

// Broadcaster fans a notification out to every connection currently
// bound to a room. The gateway implements it; tests use a recorder.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msg internal.Message[any])
}

// Service is the multiplayer session coordinator: it applies every
// command against a room under that room's mutex, so commands for the
// same room are totally ordered while rooms stay independent.
type Service struct {
	registry     *Registry
	gen          *mathgen.Generator
	scheduler    *Scheduler
	broadcaster  Broadcaster
	advanceDelay time.Duration
}

func NewService(registry *Registry, gen *mathgen.Generator, scheduler *Scheduler, b Broadcaster) *Service {
	return &Service{
		registry:     registry,
		gen:          gen,
		scheduler:    scheduler,
		broadcaster:  b,
		advanceDelay: internal.AdvanceDelay,
	}
}

// Registry exposes the room index for read-only lookups (HTTP handlers).
func (s *Service) Registry() *Registry {
	return s.registry
}

// Join adds a player to the room, creating it on first sight. Rejoining
// with the same identity is idempotent in any phase.
func (s *Service) Join(roomID, playerID, username string) error {
	// A teardown can land between obtaining the pointer and taking the
	// room lock. A removed room is already out of the registry, so the
	// retry gets a fresh one instead of populating an orphan.
	var room *internal.Room
	for {
		room = s.registry.GetOrCreate(roomID)
		room.Mu.Lock()
		if !room.Removed {
			break
		}
		room.Mu.Unlock()
	}
	room.AddPlayer(playerID, username)
	update := internal.RoomUpdateData{
		Players: room.Roster(),
		State:   room.Phase,
		Config:  room.Config,
	}
	room.Mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("player_id", playerID).
		Str("username", username).
		Msg("player joined room")

	s.broadcaster.BroadcastToRoom(roomID, internal.Message[any]{Type: "room_update", Data: update})
	return nil
}

// Start begins a fresh game: scores reset, round counter back to 1, and
// a new epoch so anything scheduled for the previous game goes stale.
// Valid from the waiting and finished phases only.
func (s *Service) Start(roomID string, config internal.RoomConfig) error {
	room, ok := s.registry.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	room.Mu.Lock()
	if room.Phase == internal.PhasePlaying {
		room.Mu.Unlock()
		return ErrGameRunning
	}

	// Generate before mutating so an unknown mode leaves the room as it was.
	round, err := s.gen.Generate(config.Mode, 1)
	if err != nil {
		room.Mu.Unlock()
		return err
	}

	room.Phase = internal.PhasePlaying
	room.Config = config
	room.RoundNumber = 1
	room.CurrentRound = &round
	room.Resolved = false
	room.Epoch++
	for _, p := range room.Players {
		p.Score = 0
	}
	update := internal.RoomUpdateData{
		Players: room.Roster(),
		State:   room.Phase,
		Config:  room.Config,
	}
	room.Mu.Unlock()

	s.scheduler.Cancel(roomID)

	log.Info().
		Str("room_id", roomID).
		Str("mode", string(config.Mode)).
		Int("rounds", config.RoundLimit()).
		Msg("game started")

	s.broadcaster.BroadcastToRoom(roomID, internal.Message[any]{Type: "room_update", Data: update})
	s.broadcaster.BroadcastToRoom(roomID, internal.Message[any]{
		Type: "game_start",
		Data: internal.GameStartData{RoundData: round},
	})
	return nil
}

// SubmitAnswer processes one answer. The first correct submission the
// room's serialization point accepts wins the round; a wrong option, or
// any submission against an already resolved round, is a silent no-op.
func (s *Service) SubmitAnswer(roomID, playerID, optionID string) error {
	room, ok := s.registry.Get(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	room.Mu.Lock()
	if room.Phase != internal.PhasePlaying || room.CurrentRound == nil {
		room.Mu.Unlock()
		return ErrNotPlaying
	}

	player, ok := room.Players[playerID]
	if !ok {
		room.Mu.Unlock()
		return ErrNotInRoom
	}

	if room.Resolved || optionID != room.CurrentRound.WinnerId {
		room.Mu.Unlock()
		log.Debug().
			Str("room_id", roomID).
			Str("player_id", playerID).
			Str("option_id", optionID).
			Msg("answer ignored")
		return nil
	}

	player.Score += internal.ScorePerWin
	room.Resolved = true

	result := internal.RoundResultData{
		WinnerName: player.Username,
		WinnerId:   player.Id,
		Scores:     make([]internal.PlayerScore, 0, len(room.Order)),
	}
	for _, p := range room.Roster() {
		result.Scores = append(result.Scores, internal.PlayerScore{Id: p.Id, Score: p.Score})
	}
	epoch := room.Epoch
	roundNum := room.RoundNumber
	room.Mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("winner", result.WinnerName).
		Int("round", roundNum).
		Msg("round resolved")

	s.broadcaster.BroadcastToRoom(roomID, internal.Message[any]{Type: "round_result", Data: result})
	s.scheduler.Schedule(roomID, epoch, s.advanceDelay, s.advance)
	return nil
}

// advance is the scheduler callback. It re-checks that the room still
// exists and that its epoch matches the one captured when the advance
// was armed; a mismatch means a restart or teardown superseded this
// round, and the callback must not touch anything.
func (s *Service) advance(roomID string, epoch uint64) {
	room, ok := s.registry.Get(roomID)
	if !ok {
		log.Debug().Str("room_id", roomID).Msg("advance skipped, room gone")
		return
	}

	room.Mu.Lock()
	if room.Epoch != epoch || room.Phase != internal.PhasePlaying {
		room.Mu.Unlock()
		log.Debug().
			Str("room_id", roomID).
			Uint64("scheduled_epoch", epoch).
			Uint64("room_epoch", room.Epoch).
			Msg("advance skipped, stale epoch")
		return
	}

	next := room.RoundNumber + 1
	if next > room.Config.RoundLimit() {
		room.Phase = internal.PhaseFinished
		room.CurrentRound = nil
		room.Resolved = false
		over := internal.GameOverData{Scores: room.Roster()}
		update := internal.RoomUpdateData{
			Players: room.Roster(),
			State:   room.Phase,
			Config:  room.Config,
		}
		room.Mu.Unlock()

		log.Info().Str("room_id", roomID).Msg("game over")
		s.broadcaster.BroadcastToRoom(roomID, internal.Message[any]{Type: "game_over", Data: over})
		s.broadcaster.BroadcastToRoom(roomID, internal.Message[any]{Type: "room_update", Data: update})
		return
	}

	// Difficulty tracks the leading player's score.
	difficulty := room.MaxScore()/internal.DifficultyStep + 1
	round, err := s.gen.Generate(room.Config.Mode, difficulty)
	if err != nil {
		// Mode was validated at start; leave the room untouched.
		room.Mu.Unlock()
		log.Error().Err(err).Str("room_id", roomID).Msg("round generation failed")
		return
	}

	room.RoundNumber = next
	room.CurrentRound = &round
	room.Resolved = false
	room.Mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Int("round", next).
		Int("difficulty", difficulty).
		Msg("next round")

	s.broadcaster.BroadcastToRoom(roomID, internal.Message[any]{
		Type: "next_round",
		Data: internal.NextRoundData{RoundData: round, RoundNum: next},
	})
}

// Leave removes a player in any phase. The game keeps going for whoever
// remains; an emptied room is torn down and its pending advance dies
// with it.
func (s *Service) Leave(roomID, playerID string) {
	room, ok := s.registry.Get(roomID)
	if !ok {
		return
	}

	room.Mu.Lock()
	empty := room.RemovePlayer(playerID)
	update := internal.RoomUpdateData{
		Players: room.Roster(),
		State:   room.Phase,
		Config:  room.Config,
	}
	room.Mu.Unlock()

	log.Info().
		Str("room_id", roomID).
		Str("player_id", playerID).
		Msg("player left room")

	if empty {
		if s.registry.RemoveIfEmpty(roomID) {
			s.scheduler.Cancel(roomID)
		}
		return
	}

	s.broadcaster.BroadcastToRoom(roomID, internal.Message[any]{Type: "room_update", Data: update})
}
