package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOddLength is returned when a PCM16 payload has a trailing half sample.
var ErrOddLength = errors.New("pcm payload has odd byte length")

// DecodeError describes a frame that could not be turned into samples.
type DecodeError struct {
	MIMEType string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.MIMEType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Float32ToPCM16 clamps s to [-1, 1] and scales it to int16. Negative values
// scale by 32768 and non-negative by 32767 so +1.0 stays in range.
func Float32ToPCM16(s float32) int16 {
	if s != s {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// PCM16ToFloat32 maps an int16 sample back to [-1, 1).
func PCM16ToFloat32(v int16) float32 {
	return float32(v) / 32768.0
}

// EncodeChunk writes the chunk as little-endian bytes and wraps it in a frame.
func EncodeChunk(c Chunk) Frame {
	buf := make([]byte, len(c.Samples)*2)
	for i, v := range c.Samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return Frame{
		Data:     base64.StdEncoding.EncodeToString(buf),
		MIMEType: MIMEType(c.Rate),
	}
}

// EncodeBytes wraps raw PCM16LE bytes in a frame.
func EncodeBytes(pcm []byte, rate int) Frame {
	return Frame{
		Data:     base64.StdEncoding.EncodeToString(pcm),
		MIMEType: MIMEType(rate),
	}
}

// Decode turns a frame into a float buffer. The rate comes from the frame's
// MIME tag and falls back to defaultRate.
func Decode(f Frame, defaultRate int) (Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return Buffer{}, &DecodeError{MIMEType: f.MIMEType, Err: err}
	}
	samples, err := PCM16BytesToFloat32(raw)
	if err != nil {
		return Buffer{}, &DecodeError{MIMEType: f.MIMEType, Err: err}
	}
	return Buffer{Samples: samples, Rate: ParseRate(f.MIMEType, defaultRate)}, nil
}

// PCM16BytesToFloat32 converts little-endian PCM16 bytes to floats.
func PCM16BytesToFloat32(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, len(raw))
	}
	out := make([]float32, len(raw)/2)
	for i := range out {
		out[i] = PCM16ToFloat32(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}
	return out, nil
}
