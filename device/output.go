package device

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
)

// outputContext is the speaker device driven by a mixer.
type outputContext struct {
	*mixer
	device  *malgo.Device
	logger  *slog.Logger
	scratch []float32
}

func newOutputContext(ctx malgo.Context, opts Options, logger *slog.Logger) (*outputContext, error) {
	o := &outputContext{mixer: newMixer(opts.OutputRate), logger: logger}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(opts.OutputRate)
	cfg.PeriodSizeInMilliseconds = uint32(opts.PeriodMillis)

	dev, err := malgo.InitDevice(ctx, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frames uint32) {
			n := int(frames)
			if cap(o.scratch) < n {
				o.scratch = make([]float32, n)
			}
			buf := o.scratch[:n]
			o.render(buf)
			for i, v := range buf {
				putFloat32(out, i, v)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	o.device = dev
	return o, nil
}

func (o *outputContext) Resume() error {
	if o.device.IsStarted() {
		return nil
	}
	return o.device.Start()
}

func (o *outputContext) Suspend() error {
	if !o.device.IsStarted() {
		return nil
	}
	return o.device.Stop()
}

func (o *outputContext) Close() error {
	o.device.Uninit()
	return nil
}
