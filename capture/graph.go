// Package capture owns the process-wide capture and output audio contexts and
// wires the microphone through the level tap into the PCM encoder.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/playback"
)

var (
	ErrClosed      = errors.New("capture graph closed")
	ErrNotAcquired = errors.New("capture graph not acquired")
)

// Stream is an open microphone. Blocks is closed once the stream stops.
type Stream interface {
	Blocks() <-chan []float32
	Close() error
}

// CaptureContext is the device-side context microphones are opened on.
type CaptureContext interface {
	SampleRate() int
	OpenMic() (Stream, error)
	Resume() error
	Suspend() error
	Close() error
}

// OutputContext is the playback device and its clock.
type OutputContext interface {
	playback.Output
	Resume() error
	Suspend() error
	Close() error
}

// Backend creates the contexts. It is called at most once per context per
// process; afterwards contexts are only resumed and suspended.
type Backend interface {
	NewCapture() (CaptureContext, error)
	NewOutput() (OutputContext, error)
}

// Options tune the encoder stage and the level tap.
type Options struct {
	TargetRate    int
	ChunkSize     int
	LevelInterval time.Duration
	OnLevel       func(audio.Level)
}

// Manager is the capture graph: device source, level tap, encoder stage and
// sink, plus the playback scheduler on the output context.
type Manager struct {
	backend Backend
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	capture CaptureContext
	output  OutputContext
	player  *playback.Scheduler
	tap     *levelTap
	stage   *stage
	closed  bool
}

// NewManager creates an idle graph. Nothing touches the devices until Acquire.
func NewManager(backend Backend, opts Options, logger *slog.Logger) *Manager {
	if opts.TargetRate <= 0 {
		opts.TargetRate = audio.TargetRate
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = audio.ChunkSize
	}
	if opts.LevelInterval <= 0 {
		opts.LevelInterval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{backend: backend, opts: opts, logger: logger}
}

// Acquire creates the contexts on first use and resumes them afterwards.
func (m *Manager) Acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if m.capture == nil {
		c, err := m.backend.NewCapture()
		if err != nil {
			return fmt.Errorf("open capture context: %w", err)
		}
		m.capture = c
		m.tap = newLevelTap(m.opts.LevelInterval, m.opts.OnLevel)
		m.logger.Info("🎙️ Capture context created", "sample_rate", c.SampleRate())
	}
	if err := m.capture.Resume(); err != nil {
		return fmt.Errorf("resume capture context: %w", err)
	}

	if m.output == nil {
		o, err := m.backend.NewOutput()
		if err != nil {
			return fmt.Errorf("open output context: %w", err)
		}
		m.output = o
		m.player = playback.NewScheduler(o)
		m.logger.Info("🔈 Output context created")
	}
	if err := m.output.Resume(); err != nil {
		return fmt.Errorf("resume output context: %w", err)
	}
	return nil
}

// Connect opens the microphone and starts feeding encoded frames to sink.
// sink runs on the stage goroutine and must not block.
func (m *Manager) Connect(sink func(audio.Frame)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.capture == nil {
		return ErrNotAcquired
	}
	if m.stage != nil {
		m.stopStageLocked()
	}

	enc, err := audio.NewEncoder(m.capture.SampleRate(), m.opts.TargetRate, m.opts.ChunkSize)
	if err != nil {
		return err
	}
	stream, err := m.capture.OpenMic()
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}

	m.stage = startStage(stream, m.tap, enc, sink)
	m.logger.Info("🎤 Microphone connected", "ratio", enc.Ratio())
	return nil
}

// Teardown disconnects the microphone, stops the encoder stage, cuts off all
// playback and suspends the capture context. A full teardown also suspends
// the output context. Calling it repeatedly is safe.
func (m *Manager) Teardown(full bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked(full)
}

func (m *Manager) teardownLocked(full bool) {
	if m.stage != nil {
		m.stopStageLocked()
	}
	if m.player != nil {
		if n := m.player.Flush(); n > 0 {
			m.logger.Debug("🔇 Flushed playback", "handles", n)
		}
	}
	if m.capture != nil {
		if err := m.capture.Suspend(); err != nil {
			m.logger.Warn("⚠️ Failed to suspend capture context", "error", err)
		}
	}
	if full && m.output != nil {
		if err := m.output.Suspend(); err != nil {
			m.logger.Warn("⚠️ Failed to suspend output context", "error", err)
		}
	}
}

func (m *Manager) stopStageLocked() {
	st := m.stage
	m.stage = nil
	st.stop()
	m.logger.Info("🎤 Microphone disconnected", "blocks", st.blocks)
}

// Player returns the playback scheduler, or nil before the first Acquire.
func (m *Manager) Player() *playback.Scheduler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.player
}

// Streaming reports whether the microphone stage is running.
func (m *Manager) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage != nil
}

// Close tears everything down and destroys both contexts. It is meant for
// process exit; the manager cannot be acquired again.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.teardownLocked(true)
	m.closed = true

	var errs []error
	if m.capture != nil {
		errs = append(errs, m.capture.Close())
	}
	if m.output != nil {
		errs = append(errs, m.output.Close())
	}
	return errors.Join(errs...)
}

// stage runs device blocks through the tap and encoder.
type stage struct {
	stream Stream
	quit   chan struct{}
	done   chan struct{}
	blocks int
}

func startStage(stream Stream, tap *levelTap, enc *audio.Encoder, sink func(audio.Frame)) *stage {
	st := &stage{
		stream: stream,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(st.done)
		blocks := stream.Blocks()
		for {
			select {
			case <-st.quit:
				return
			case block, ok := <-blocks:
				if !ok {
					return
				}
				st.blocks++
				tap.observe(block)
				for _, f := range enc.Encode(block) {
					sink(f)
				}
			}
		}
	}()
	return st
}

func (st *stage) stop() {
	close(st.quit)
	_ = st.stream.Close()
	<-st.done
}

// levelTap reports input loudness at most once per interval. It never alters
// the samples.
type levelTap struct {
	interval time.Duration
	onLevel  func(audio.Level)
	now      func() time.Time
	last     time.Time
	peak     audio.Level
}

func newLevelTap(interval time.Duration, onLevel func(audio.Level)) *levelTap {
	return &levelTap{interval: interval, onLevel: onLevel, now: time.Now}
}

func (t *levelTap) observe(block []float32) {
	if t == nil || t.onLevel == nil {
		return
	}
	lvl := audio.Measure(block)
	if lvl.RMS > t.peak.RMS {
		t.peak.RMS = lvl.RMS
	}
	if lvl.Peak > t.peak.Peak {
		t.peak.Peak = lvl.Peak
	}
	now := t.now()
	if now.Sub(t.last) < t.interval {
		return
	}
	t.last = now
	t.onLevel(t.peak)
	t.peak = audio.Level{}
}
