package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/room4-2/OpenInterpret/audio"
)

type fakeVoice struct {
	at      time.Duration
	dur     time.Duration
	onEnded func()
	stopped bool
}

func (v *fakeVoice) Stop() error {
	if v.stopped {
		return ErrStopped
	}
	v.stopped = true
	return nil
}

type fakeOutput struct {
	mu     sync.Mutex
	now    time.Duration
	voices []*fakeVoice
	err    error
}

func (o *fakeOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) advance(d time.Duration) {
	o.mu.Lock()
	o.now += d
	o.mu.Unlock()
}

func (o *fakeOutput) Play(buf audio.Buffer, at time.Duration, onEnded func()) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	v := &fakeVoice{at: at, dur: buf.Duration(), onEnded: onEnded}
	o.voices = append(o.voices, v)
	return v, nil
}

func buffer(ms int) audio.Buffer {
	return audio.Buffer{Samples: make([]float32, 24*ms), Rate: 24000}
}

func TestScheduleGapless(t *testing.T) {
	out := &fakeOutput{now: 5 * time.Millisecond}
	s := NewScheduler(out)

	durations := []int{40, 10, 120, 5, 60}
	var prevEnd time.Duration
	for i, ms := range durations {
		slot, err := s.Schedule(buffer(ms))
		if err != nil {
			t.Fatalf("Schedule %d: %v", i, err)
		}
		if i == 0 && slot.Start != out.Now() {
			t.Errorf("first slot starts at %v, want now %v", slot.Start, out.Now())
		}
		if i > 0 && slot.Start != prevEnd {
			t.Errorf("slot %d starts at %v, want %v", i, slot.Start, prevEnd)
		}
		if slot.Duration != time.Duration(ms)*time.Millisecond {
			t.Errorf("slot %d duration = %v", i, slot.Duration)
		}
		prevEnd = slot.End()
		out.advance(2 * time.Millisecond)
	}
	if s.Active() != len(durations) {
		t.Errorf("Active = %d", s.Active())
	}
}

func TestScheduleAfterDrainStartsNow(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler(out)

	if _, err := s.Schedule(buffer(10)); err != nil {
		t.Fatal(err)
	}
	out.advance(time.Second)
	slot, err := s.Schedule(buffer(10))
	if err != nil {
		t.Fatal(err)
	}
	if slot.Start != time.Second {
		t.Errorf("Start = %v, want clock now", slot.Start)
	}
}

func TestCompletionRemovesOnce(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler(out)
	for i := 0; i < 3; i++ {
		if _, err := s.Schedule(buffer(10)); err != nil {
			t.Fatal(err)
		}
	}
	out.voices[1].onEnded()
	out.voices[1].onEnded()
	if got := s.Active(); got != 2 {
		t.Errorf("Active = %d, want 2", got)
	}
}

func TestFlush(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler(out)
	for i := 0; i < 4; i++ {
		if _, err := s.Schedule(buffer(100)); err != nil {
			t.Fatal(err)
		}
	}
	// One voice already finished on its own; stopping it again must not matter.
	_ = out.voices[0].Stop()

	out.advance(30 * time.Millisecond)
	if n := s.Flush(); n != 4 {
		t.Errorf("Flush stopped %d, want 4", n)
	}
	for i, v := range out.voices {
		if !v.stopped {
			t.Errorf("voice %d still playing", i)
		}
	}
	if s.Active() != 0 {
		t.Errorf("Active = %d after flush", s.Active())
	}
	if s.NextStart() != out.Now() {
		t.Errorf("NextStart = %v, want %v", s.NextStart(), out.Now())
	}

	// Late completion callbacks from flushed voices are harmless.
	out.voices[2].onEnded()

	out.advance(10 * time.Millisecond)
	if n := s.Flush(); n != 0 {
		t.Errorf("second Flush stopped %d", n)
	}
	if s.NextStart() != out.Now() {
		t.Errorf("NextStart = %v after second flush", s.NextStart())
	}
}

func TestFlushEmpty(t *testing.T) {
	out := &fakeOutput{now: time.Second}
	s := NewScheduler(out)
	if n := s.Flush(); n != 0 {
		t.Errorf("Flush = %d", n)
	}
	if s.NextStart() != time.Second {
		t.Errorf("NextStart = %v", s.NextStart())
	}
}

func TestScheduleOutputError(t *testing.T) {
	out := &fakeOutput{err: errors.New("device gone")}
	s := NewScheduler(out)
	if _, err := s.Schedule(buffer(10)); err == nil {
		t.Fatal("expected error")
	}
	if s.NextStart() != 0 || s.Active() != 0 {
		t.Error("failed schedule must not advance the schedule")
	}
}
