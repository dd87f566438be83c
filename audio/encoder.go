package audio

import (
	"fmt"
	"math"
)

// Encoder decimates device-rate float blocks to the target rate and emits
// fixed-size PCM16 chunks.
//
// Resampling is nearest-sample: output sample k of a block is input sample
// floor(k*ratio). There is no anti-aliasing filter. Speech recognition on
// the service side tolerates the aliasing and the stage stays cheap enough
// to run per device period.
type Encoder struct {
	deviceRate int
	targetRate int
	ratio      float64
	acc        []int16
	capacity   int
}

// NewEncoder creates an encoder for one capture session. Only downsampling
// is supported, so deviceRate must be at least targetRate.
func NewEncoder(deviceRate, targetRate, capacity int) (*Encoder, error) {
	if targetRate <= 0 || deviceRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", deviceRate, targetRate)
	}
	if deviceRate < targetRate {
		return nil, fmt.Errorf("device rate %d is below target rate %d", deviceRate, targetRate)
	}
	if capacity <= 0 {
		capacity = ChunkSize
	}
	return &Encoder{
		deviceRate: deviceRate,
		targetRate: targetRate,
		ratio:      float64(deviceRate) / float64(targetRate),
		acc:        make([]int16, 0, capacity),
		capacity:   capacity,
	}, nil
}

// Ratio returns deviceRate/targetRate.
func (e *Encoder) Ratio() float64 {
	return e.ratio
}

// Pending reports how many samples sit in the accumulator.
func (e *Encoder) Pending() int {
	return len(e.acc)
}

// Process consumes one block of device samples and returns every chunk that
// filled up. Empty blocks and blocks holding NaN or Inf are ignored.
func (e *Encoder) Process(block []float32) []Chunk {
	if len(block) == 0 || !finite(block) {
		return nil
	}

	var out []Chunk
	n := int(float64(len(block)) / e.ratio)
	for k := 0; k < n; k++ {
		idx := int(float64(k) * e.ratio)
		if idx >= len(block) {
			break
		}
		e.acc = append(e.acc, Float32ToPCM16(block[idx]))
		if len(e.acc) == e.capacity {
			samples := make([]int16, e.capacity)
			copy(samples, e.acc)
			out = append(out, Chunk{Samples: samples, Rate: e.targetRate})
			e.acc = e.acc[:0]
		}
	}
	return out
}

// Encode runs Process and wraps the resulting chunks as frames.
func (e *Encoder) Encode(block []float32) []Frame {
	chunks := e.Process(block)
	if len(chunks) == 0 {
		return nil
	}
	frames := make([]Frame, len(chunks))
	for i, c := range chunks {
		frames[i] = EncodeChunk(c)
	}
	return frames
}

func finite(block []float32) bool {
	for _, s := range block {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return false
		}
	}
	return true
}
