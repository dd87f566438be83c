package device

import (
	"errors"
	"testing"
	"time"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/playback"
)

func ones(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 0.25
	}
	return s
}

func TestMixerPlacesVoices(t *testing.T) {
	m := newMixer(1000)
	ended := 0
	if _, err := m.Play(audio.Buffer{Samples: ones(4), Rate: 1000}, 2*time.Millisecond, func() { ended++ }); err != nil {
		t.Fatal(err)
	}

	out := make([]float32, 4)
	m.render(out)
	want := []float32{0, 0, 0.25, 0.25}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("period 1 frame %d = %v, want %v", i, out[i], want[i])
		}
	}
	if ended != 0 {
		t.Fatal("voice ended early")
	}

	m.render(out)
	want = []float32{0.25, 0.25, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("period 2 frame %d = %v, want %v", i, out[i], want[i])
		}
	}
	if ended != 1 {
		t.Errorf("onEnded fired %d times", ended)
	}
	if m.Now() != 8*time.Millisecond {
		t.Errorf("Now = %v", m.Now())
	}
}

func TestMixerScheduledBuffersAreGapless(t *testing.T) {
	m := newMixer(1000)
	s := playback.NewScheduler(m)
	for i := 0; i < 3; i++ {
		if _, err := s.Schedule(audio.Buffer{Samples: ones(3), Rate: 1000}); err != nil {
			t.Fatal(err)
		}
	}
	out := make([]float32, 10)
	m.render(out)
	for i := 0; i < 9; i++ {
		if out[i] != 0.25 {
			t.Errorf("frame %d = %v, want continuous audio", i, out[i])
		}
	}
	if out[9] != 0 {
		t.Errorf("frame 9 = %v, want silence", out[9])
	}
	if s.Active() != 0 {
		t.Errorf("scheduler still tracks %d voices", s.Active())
	}
}

func TestMixerLongReplyStaysContiguous(t *testing.T) {
	const (
		rate    = 24000
		buffers = 200
		size    = 1000 // not a whole number of nanoseconds per buffer
	)
	m := newMixer(rate)
	s := playback.NewScheduler(m)
	for i := 0; i < buffers; i++ {
		if _, err := s.Schedule(audio.Buffer{Samples: ones(size), Rate: rate}); err != nil {
			t.Fatal(err)
		}
	}

	total := buffers * size
	rendered := make([]float32, 0, total+480)
	period := make([]float32, 480)
	for len(rendered) < total+1 {
		m.render(period)
		rendered = append(rendered, period...)
	}
	bad := 0
	for i := 0; i < total; i++ {
		if rendered[i] != 0.25 {
			if bad < 5 {
				t.Errorf("frame %d = %v, want 0.25", i, rendered[i])
			}
			bad++
		}
	}
	if bad > 0 {
		t.Errorf("%d frames overlapped or missing", bad)
	}
	if rendered[total] != 0 {
		t.Errorf("frame %d = %v, want silence after the reply", total, rendered[total])
	}
}

func TestVoiceStop(t *testing.T) {
	m := newMixer(1000)
	ended := 0
	h, _ := m.Play(audio.Buffer{Samples: ones(100), Rate: 1000}, 0, func() { ended++ })
	if err := h.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := h.Stop(); !errors.Is(err, playback.ErrStopped) {
		t.Errorf("second Stop = %v", err)
	}
	if ended != 1 || m.active() != 0 {
		t.Errorf("ended=%d active=%d", ended, m.active())
	}
	out := make([]float32, 4)
	m.render(out)
	for i, v := range out {
		if v != 0 {
			t.Errorf("frame %d = %v after stop", i, v)
		}
	}
}

func TestMixerResamplesAndClips(t *testing.T) {
	m := newMixer(2000)
	loud := []float32{0.9, 0.9}
	_, _ = m.Play(audio.Buffer{Samples: loud, Rate: 1000}, 0, nil)
	_, _ = m.Play(audio.Buffer{Samples: loud, Rate: 1000}, 0, nil)
	out := make([]float32, 4)
	m.render(out)
	for i, v := range out {
		if v != 1 {
			t.Errorf("frame %d = %v, want clipped 1", i, v)
		}
	}
}

func TestBytesFloatRoundTrip(t *testing.T) {
	raw := make([]byte, 8)
	putFloat32(raw, 0, 0.5)
	putFloat32(raw, 1, -1)
	got := bytesToFloat32(raw)
	if len(got) != 2 || got[0] != 0.5 || got[1] != -1 {
		t.Errorf("got %v", got)
	}
}
