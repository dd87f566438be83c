// Package audio converts between device float samples and the 16-bit PCM
// frames exchanged with the live speech service.
package audio

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// TargetRate is the sample rate the live service expects for input audio.
	TargetRate = 16000
	// OutputRate is the default rate of synthesized audio coming back.
	OutputRate = 24000
	// ChunkSize is the encoder accumulator capacity (~128 ms at 16 kHz).
	ChunkSize = 2048

	pcmMIMEPrefix = "audio/pcm"
)

// MIMEType returns the codec tag for raw 16-bit PCM at the given rate.
func MIMEType(rate int) string {
	return fmt.Sprintf("%s;rate=%d", pcmMIMEPrefix, rate)
}

// ParseRate extracts the rate parameter from a PCM MIME tag such as
// "audio/pcm;rate=24000". Missing or malformed tags fall back to def.
func ParseRate(mimeType string, def int) int {
	if !strings.HasPrefix(mimeType, pcmMIMEPrefix) {
		return def
	}
	for _, param := range strings.Split(mimeType, ";")[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || key != "rate" {
			continue
		}
		rate, err := strconv.Atoi(value)
		if err != nil || rate <= 0 {
			return def
		}
		return rate
	}
	return def
}

// Chunk is a block of mono 16-bit samples at Rate.
type Chunk struct {
	Samples []int16
	Rate    int
}

// Duration reports how long the chunk plays.
func (c Chunk) Duration() time.Duration {
	return samplesDuration(len(c.Samples), c.Rate)
}

// Frame is an encoded chunk ready for the wire.
type Frame struct {
	Data     string `json:"data"`     // Base64-encoded PCM16LE
	MIMEType string `json:"mimeType"` // "audio/pcm;rate=16000"
}

// Buffer is decoded mono audio ready for playback.
type Buffer struct {
	Samples []float32
	Rate    int
}

// Duration reports how long the buffer plays.
func (b Buffer) Duration() time.Duration {
	return samplesDuration(len(b.Samples), b.Rate)
}

func samplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
