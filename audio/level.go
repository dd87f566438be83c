package audio

import "math"

// Level summarizes the loudness of a block for the input meter.
type Level struct {
	RMS  float64 `json:"rms"`
	Peak float64 `json:"peak"`
}

// Measure computes the RMS and absolute peak of a float block.
func Measure(block []float32) Level {
	if len(block) == 0 {
		return Level{}
	}
	var sum, peak float64
	for _, s := range block {
		v := float64(s)
		sum += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return Level{RMS: math.Sqrt(sum / float64(len(block))), Peak: peak}
}
