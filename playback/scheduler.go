// Package playback schedules decoded buffers back to back on an output clock.
package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/room4-2/OpenInterpret/audio"
)

// ErrStopped is returned by Handle.Stop for a voice that already finished or
// was stopped. The scheduler ignores it.
var ErrStopped = errors.New("playback handle already stopped")

// Clock reports the current position of an output stream.
type Clock interface {
	Now() time.Duration
}

// Handle cancels one scheduled buffer.
type Handle interface {
	Stop() error
}

// Output plays buffers at positions on its own clock. onEnded fires once when
// the buffer finishes or is stopped and must not be invoked from inside Play.
type Output interface {
	Clock
	Play(buf audio.Buffer, at time.Duration, onEnded func()) (Handle, error)
}

// Slot describes where a buffer landed on the output clock.
type Slot struct {
	Start    time.Duration
	Duration time.Duration
}

// End is the first instant after the slot.
func (s Slot) End() time.Duration {
	return s.Start + s.Duration
}

// Scheduler keeps buffers gapless and non-overlapping and can cut off all
// in-flight audio at once.
type Scheduler struct {
	out Output

	mu   sync.Mutex
	next time.Duration
	seq  uint64
	live map[uint64]Handle
}

// NewScheduler creates a scheduler whose first slot starts no earlier than
// the output's current time.
func NewScheduler(out Output) *Scheduler {
	return &Scheduler{
		out:  out,
		next: out.Now(),
		live: make(map[uint64]Handle),
	}
}

// Schedule queues buf right after the previously scheduled buffer, or now if
// the schedule has drained.
func (s *Scheduler) Schedule(buf audio.Buffer) (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.out.Now()
	if s.next > start {
		start = s.next
	}

	s.seq++
	id := s.seq
	h, err := s.out.Play(buf, start, func() { s.remove(id) })
	if err != nil {
		return Slot{}, fmt.Errorf("schedule playback: %w", err)
	}
	s.live[id] = h

	slot := Slot{Start: start, Duration: buf.Duration()}
	s.next = slot.End()
	return slot, nil
}

func (s *Scheduler) remove(id uint64) {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
}

// Flush stops every live buffer and rewinds the schedule to now. It returns
// how many buffers were cut off.
func (s *Scheduler) Flush() int {
	s.mu.Lock()
	live := s.live
	s.live = make(map[uint64]Handle)
	s.next = s.out.Now()
	s.mu.Unlock()

	for _, h := range live {
		_ = h.Stop()
	}
	return len(live)
}

// Active reports how many scheduled buffers have not finished yet.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// NextStart is where the next buffer would start if the clock stood still.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
