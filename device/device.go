// Package device provides capture and output contexts on top of miniaudio.
package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/room4-2/OpenInterpret/capture"
)

// Options configure the hardware devices.
type Options struct {
	CaptureRate  int // 0 picks the device's native rate
	OutputRate   int
	PeriodMillis int
	QueueBlocks  int // capture blocks buffered before new ones are dropped
}

// Backend opens contexts on one miniaudio context. It implements
// capture.Backend.
type Backend struct {
	ctx    *malgo.AllocatedContext
	opts   Options
	logger *slog.Logger
}

// Open initializes miniaudio.
func Open(opts Options, logger *slog.Logger) (*Backend, error) {
	if opts.OutputRate <= 0 {
		opts.OutputRate = 24000
	}
	if opts.PeriodMillis <= 0 {
		opts.PeriodMillis = 20
	}
	if opts.QueueBlocks <= 0 {
		opts.QueueBlocks = 32
	}
	if logger == nil {
		logger = slog.Default()
	}

	config := malgo.ContextConfig{}
	config.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, config, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Backend{ctx: ctx, opts: opts, logger: logger}, nil
}

// NewCapture opens the default microphone.
func (b *Backend) NewCapture() (capture.CaptureContext, error) {
	return newCaptureContext(b.ctx.Context, b.opts, b.logger)
}

// NewOutput opens the default speaker.
func (b *Backend) NewOutput() (capture.OutputContext, error) {
	return newOutputContext(b.ctx.Context, b.opts, b.logger)
}

// Info describes one audio endpoint.
type Info struct {
	Name      string
	IsDefault bool
}

// Devices lists capture and playback endpoints.
func (b *Backend) Devices() (inputs, outputs []Info, err error) {
	list := func(kind malgo.DeviceType) ([]Info, error) {
		infos, err := b.ctx.Devices(kind)
		if err != nil {
			return nil, err
		}
		out := make([]Info, 0, len(infos))
		for i := range infos {
			out = append(out, Info{Name: infos[i].Name(), IsDefault: infos[i].IsDefault != 0})
		}
		return out, nil
	}
	if inputs, err = list(malgo.Capture); err != nil {
		return nil, nil, fmt.Errorf("list capture devices: %w", err)
	}
	if outputs, err = list(malgo.Playback); err != nil {
		return nil, nil, fmt.Errorf("list playback devices: %w", err)
	}
	return inputs, outputs, nil
}

// Close releases miniaudio. Contexts opened from b must be closed first.
func (b *Backend) Close() error {
	err := b.ctx.Uninit()
	b.ctx.Free()
	return err
}

func bytesToFloat32(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func putFloat32(dst []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
}
