package device

import (
	"sync"
	"time"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/playback"
)

// mixer places buffers at absolute frame positions and sums them into the
// device's output periods. Its clock advances only while the device pulls
// frames, so a suspended output holds its time.
type mixer struct {
	rate int

	mu     sync.Mutex
	frames int64
	tail   int64 // end frame of the most recently placed voice
	voices map[*voice]struct{}
}

type voice struct {
	m       *mixer
	start   int64
	samples []float32
	onEnded func()
	done    bool
}

func newMixer(rate int) *mixer {
	return &mixer{rate: rate, voices: make(map[*voice]struct{})}
}

func (m *mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toDuration(m.frames)
}

func (m *mixer) Play(buf audio.Buffer, at time.Duration, onEnded func()) (playback.Handle, error) {
	v := &voice{
		m:       m,
		start:   m.toFrames(at),
		samples: audio.Resample(buf.Samples, buf.Rate, m.rate),
		onEnded: onEnded,
	}
	m.mu.Lock()
	// Durations are whole nanoseconds, so a buffer meant to follow the last
	// one can land a frame off. Butt it against the tail instead.
	if d := v.start - m.tail; d >= -1 && d <= 1 && m.tail >= m.frames {
		v.start = m.tail
	}
	m.tail = v.start + int64(len(v.samples))
	m.voices[v] = struct{}{}
	m.mu.Unlock()
	return v, nil
}

// render fills out with the next len(out) frames and advances the clock.
func (m *mixer) render(out []float32) {
	for i := range out {
		out[i] = 0
	}

	m.mu.Lock()
	from := m.frames
	to := from + int64(len(out))
	var ended []*voice
	for v := range m.voices {
		end := v.start + int64(len(v.samples))
		lo, hi := max(v.start, from), min(end, to)
		for f := lo; f < hi; f++ {
			out[f-from] += v.samples[f-v.start]
		}
		if end <= to {
			v.done = true
			delete(m.voices, v)
			ended = append(ended, v)
		}
	}
	m.frames = to
	m.mu.Unlock()

	for i := range out {
		if out[i] > 1 {
			out[i] = 1
		} else if out[i] < -1 {
			out[i] = -1
		}
	}
	for _, v := range ended {
		if v.onEnded != nil {
			v.onEnded()
		}
	}
}

// Stop cuts the voice off. The completion callback still fires once.
func (v *voice) Stop() error {
	m := v.m
	m.mu.Lock()
	if v.done {
		m.mu.Unlock()
		return playback.ErrStopped
	}
	v.done = true
	delete(m.voices, v)
	m.mu.Unlock()

	if v.onEnded != nil {
		v.onEnded()
	}
	return nil
}

func (m *mixer) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// toFrames rounds to the nearest frame.
func (m *mixer) toFrames(d time.Duration) int64 {
	return (int64(d)*int64(m.rate) + int64(time.Second)/2) / int64(time.Second)
}

func (m *mixer) toDuration(frames int64) time.Duration {
	return time.Duration(frames * int64(time.Second) / int64(m.rate))
}
