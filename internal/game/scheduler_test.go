package game

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firedAdvances struct {
	mu    sync.Mutex
	calls []uint64
}

func (f *firedAdvances) record(_ string, epoch uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, epoch)
}

func (f *firedAdvances) snapshot() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.calls...)
}

func TestScheduleFiresWithCapturedEpoch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock)
	fired := &firedAdvances{}

	s.Schedule("123", 7, 2*time.Second, fired.record)
	clock.Advance(2 * time.Second)

	require.Eventually(t, func() bool { return len(fired.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(7), fired.snapshot()[0])
}

func TestCancelPreventsFire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock)
	fired := &firedAdvances{}

	s.Schedule("123", 1, 2*time.Second, fired.record)
	s.Cancel("123")
	clock.Advance(2 * time.Second)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, fired.snapshot())

	// Cancelling with nothing pending is fine.
	s.Cancel("123")
}

func TestRescheduleReplacesPendingTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock)
	fired := &firedAdvances{}

	s.Schedule("123", 1, 2*time.Second, fired.record)
	s.Schedule("123", 2, 2*time.Second, fired.record)
	clock.Advance(2 * time.Second)

	require.Eventually(t, func() bool { return len(fired.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), fired.snapshot()[0], "only the replacement may fire")
}

func TestRoomsScheduleIndependently(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(clock)
	fired := &firedAdvances{}

	s.Schedule("aaa", 1, 1*time.Second, fired.record)
	s.Schedule("bbb", 2, 3*time.Second, fired.record)

	clock.Advance(1 * time.Second)
	require.Eventually(t, func() bool { return len(fired.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return len(fired.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
}
