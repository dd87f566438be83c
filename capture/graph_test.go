package capture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/playback"
)

type fakeStream struct {
	blocks chan []float32
	once   sync.Once
}

func (s *fakeStream) Blocks() <-chan []float32 { return s.blocks }

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.blocks) })
	return nil
}

type fakeContext struct {
	mu        sync.Mutex
	rate      int
	resumes   int
	suspends  int
	closed    bool
	suspended bool
	openErr   error
	streams   []*fakeStream
}

func (c *fakeContext) SampleRate() int { return c.rate }

func (c *fakeContext) OpenMic() (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, c.openErr
	}
	s := &fakeStream{blocks: make(chan []float32, 8)}
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeContext) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumes++
	c.suspended = false
	return nil
}

func (c *fakeContext) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspends++
	c.suspended = true
	return nil
}

func (c *fakeContext) Close() error {
	c.closed = true
	return nil
}

type fakeHandle struct{ stopped *int }

func (h fakeHandle) Stop() error {
	*h.stopped++
	return nil
}

type fakeOutput struct {
	fakeContext
	stopped int
}

func (o *fakeOutput) Now() time.Duration { return 0 }

func (o *fakeOutput) Play(audio.Buffer, time.Duration, func()) (playback.Handle, error) {
	return fakeHandle{stopped: &o.stopped}, nil
}

type fakeBackend struct {
	capture    *fakeContext
	output     *fakeOutput
	newCapture int
	newOutput  int
	captureErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		capture: &fakeContext{rate: 48000},
		output:  &fakeOutput{},
	}
}

func (b *fakeBackend) NewCapture() (CaptureContext, error) {
	if b.captureErr != nil {
		return nil, b.captureErr
	}
	b.newCapture++
	return b.capture, nil
}

func (b *fakeBackend) NewOutput() (OutputContext, error) {
	b.newOutput++
	return b.output, nil
}

func TestAcquireCreatesOnce(t *testing.T) {
	b := newFakeBackend()
	m := NewManager(b, Options{}, nil)

	for i := 0; i < 3; i++ {
		if err := m.Acquire(); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		m.Teardown(i%2 == 0)
	}
	if b.newCapture != 1 || b.newOutput != 1 {
		t.Errorf("contexts created %d/%d times, want once", b.newCapture, b.newOutput)
	}
	if b.capture.resumes != 3 {
		t.Errorf("capture resumed %d times", b.capture.resumes)
	}
	if m.Player() == nil {
		t.Error("no player after Acquire")
	}
}

func TestAcquireDeviceError(t *testing.T) {
	b := newFakeBackend()
	b.captureErr = errors.New("permission denied")
	m := NewManager(b, Options{}, nil)
	if err := m.Acquire(); err == nil {
		t.Fatal("expected error")
	}
}

func TestConnectRequiresAcquire(t *testing.T) {
	m := NewManager(newFakeBackend(), Options{}, nil)
	if err := m.Connect(func(audio.Frame) {}); !errors.Is(err, ErrNotAcquired) {
		t.Errorf("Connect = %v, want ErrNotAcquired", err)
	}
}

func TestConnectStreamsFrames(t *testing.T) {
	b := newFakeBackend()
	m := NewManager(b, Options{ChunkSize: 160}, nil)
	if err := m.Acquire(); err != nil {
		t.Fatal(err)
	}

	frames := make(chan audio.Frame, 16)
	if err := m.Connect(func(f audio.Frame) { frames <- f }); err != nil {
		t.Fatal(err)
	}
	if !m.Streaming() {
		t.Fatal("not streaming after Connect")
	}

	// 480 samples at 48 kHz decimate to 160 at 16 kHz: exactly one chunk.
	b.capture.streams[0].blocks <- make([]float32, 480)
	select {
	case f := <-frames:
		if f.MIMEType != "audio/pcm;rate=16000" {
			t.Errorf("MIMEType = %q", f.MIMEType)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame produced")
	}

	m.Teardown(false)
	if m.Streaming() {
		t.Error("still streaming after teardown")
	}
}

func TestTeardown(t *testing.T) {
	b := newFakeBackend()
	m := NewManager(b, Options{}, nil)
	if err := m.Acquire(); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(func(audio.Frame) {}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := m.Player().Schedule(audio.Buffer{Samples: make([]float32, 240), Rate: 24000}); err != nil {
			t.Fatal(err)
		}
	}

	m.Teardown(false)
	if !b.capture.suspended {
		t.Error("capture context not suspended")
	}
	if b.output.suspended {
		t.Error("partial teardown suspended the output context")
	}
	if b.output.stopped != 2 {
		t.Errorf("stopped %d playback handles, want 2", b.output.stopped)
	}
	if b.capture.closed {
		t.Error("teardown destroyed the capture context")
	}

	m.Teardown(true)
	m.Teardown(true)
	if !b.output.suspended {
		t.Error("full teardown left the output context running")
	}
}

func TestCloseDestroysContexts(t *testing.T) {
	b := newFakeBackend()
	m := NewManager(b, Options{}, nil)
	if err := m.Acquire(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if !b.capture.closed || !b.output.closed {
		t.Error("contexts not closed")
	}
	if err := m.Acquire(); !errors.Is(err, ErrClosed) {
		t.Errorf("Acquire after Close = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestLevelTapThrottles(t *testing.T) {
	var got []audio.Level
	tap := newLevelTap(50*time.Millisecond, func(l audio.Level) { got = append(got, l) })
	clock := time.Unix(0, 0)
	tap.now = func() time.Time { return clock }
	tap.last = clock

	tap.observe([]float32{0.2})
	clock = clock.Add(20 * time.Millisecond)
	tap.observe([]float32{-0.8})
	if len(got) != 0 {
		t.Fatalf("reported %d levels before the interval", len(got))
	}

	clock = clock.Add(40 * time.Millisecond)
	tap.observe([]float32{0.1})
	if len(got) != 1 {
		t.Fatalf("reported %d levels", len(got))
	}
	if got[0].Peak < 0.79 {
		t.Errorf("peak %v did not carry over the interval", got[0].Peak)
	}
}
