package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Scheduler owns the delayed round-advance re-entry. Each room has at
// most one pending timer; scheduling again replaces it, and Cancel stops
// it outright. Callbacks carry the epoch captured at scheduling time so
// a fire after restart or teardown can be detected by the callee.
type Scheduler struct {
	clock clockwork.Clock

	mu      sync.Mutex
	pending map[string]*pendingAdvance
}

type pendingAdvance struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		clock:   clock,
		pending: make(map[string]*pendingAdvance),
	}
}

// Schedule arms a one-shot timer for the room. When it fires, fn is
// invoked with the room id and the epoch that was current when the timer
// was armed.
func (s *Scheduler) Schedule(roomID string, epoch uint64, delay time.Duration, fn func(roomID string, epoch uint64)) {
	p := &pendingAdvance{
		timer:  s.clock.NewTimer(delay),
		cancel: make(chan struct{}),
	}

	s.mu.Lock()
	if prev, ok := s.pending[roomID]; ok {
		stopAndDrainTimer(prev.timer)
		close(prev.cancel)
	}
	s.pending[roomID] = p
	s.mu.Unlock()

	go func() {
		select {
		case <-p.timer.Chan():
			s.remove(roomID, p)
			fn(roomID, epoch)
		case <-p.cancel:
		}
	}()

	log.Debug().
		Str("room_id", roomID).
		Uint64("epoch", epoch).
		Dur("delay", delay).
		Msg("advance scheduled")
}

// Cancel stops any pending advance for the room.
func (s *Scheduler) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[roomID]; ok {
		stopAndDrainTimer(p.timer)
		close(p.cancel)
		delete(s.pending, roomID)
		log.Debug().Str("room_id", roomID).Msg("pending advance cancelled")
	}
}

// remove clears the entry for a fired timer, unless it was already
// replaced by a newer one.
func (s *Scheduler) remove(roomID string, p *pendingAdvance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[roomID] == p {
		delete(s.pending, roomID)
	}
}

// stopAndDrainTimer stops a timer and drains its channel so the waiting
// goroutine cannot leak a stale fire.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
