package device

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/room4-2/OpenInterpret/capture"
)

// captureContext is a started-or-stopped microphone device. The data
// callback hands copies of each period to the attached stream, if any.
type captureContext struct {
	device  *malgo.Device
	queue   int
	logger  *slog.Logger
	stream  atomic.Pointer[micStream]
	dropped atomic.Int64
}

func newCaptureContext(ctx malgo.Context, opts Options, logger *slog.Logger) (*captureContext, error) {
	c := &captureContext{queue: opts.QueueBlocks, logger: logger}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(opts.CaptureRate)
	cfg.PeriodSizeInMilliseconds = uint32(opts.PeriodMillis)

	dev, err := malgo.InitDevice(ctx, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			s := c.stream.Load()
			if s == nil || len(in) == 0 {
				return
			}
			if !s.push(bytesToFloat32(in)) {
				c.dropped.Add(1)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	c.device = dev
	return c, nil
}

func (c *captureContext) SampleRate() int {
	return int(c.device.SampleRate())
}

func (c *captureContext) OpenMic() (capture.Stream, error) {
	s := &micStream{blocks: make(chan []float32, c.queue), owner: c}
	if old := c.stream.Swap(s); old != nil {
		old.close()
	}
	return s, nil
}

func (c *captureContext) Resume() error {
	if c.device.IsStarted() {
		return nil
	}
	return c.device.Start()
}

func (c *captureContext) Suspend() error {
	if !c.device.IsStarted() {
		return nil
	}
	if n := c.dropped.Swap(0); n > 0 {
		c.logger.Warn("⚠️ Dropped capture blocks", "blocks", n)
	}
	return c.device.Stop()
}

func (c *captureContext) Close() error {
	if s := c.stream.Swap(nil); s != nil {
		s.close()
	}
	c.device.Uninit()
	return nil
}

// micStream is the one-way boundary between the audio thread and the
// encoder stage.
type micStream struct {
	blocks chan []float32
	owner  *captureContext

	mu     sync.Mutex
	closed bool
}

func (s *micStream) Blocks() <-chan []float32 {
	return s.blocks
}

// push never blocks the audio thread; it reports false when the block was
// dropped.
func (s *micStream) push(block []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.blocks <- block:
		return true
	default:
		return false
	}
}

func (s *micStream) Close() error {
	s.owner.stream.CompareAndSwap(s, nil)
	s.close()
	return nil
}

func (s *micStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.blocks)
	}
}
