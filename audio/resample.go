package audio

// Resample converts samples between rates by nearest-sample picking, the same
// trade-off the encoder makes. It returns the input unchanged when the rates
// match.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(from) / float64(to)
	n := int(float64(len(samples)) / ratio)
	out := make([]float32, n)
	for k := range out {
		idx := int(float64(k) * ratio)
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		out[k] = samples[idx]
	}
	return out
}
