package pcm

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample is the width of one mono PCM16 sample on the wire.
const BytesPerSample = 2

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K Format = iota
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K
)

// Format represents a mono PCM16 audio format configuration.
type Format int

// FormatForRate returns the Format for a sample rate, if one is defined.
func FormatForRate(rate int) (Format, bool) {
	switch rate {
	case 16000:
		return L16Mono16K, true
	case 24000:
		return L16Mono24K, true
	case 48000:
		return L16Mono48K, true
	}
	return 0, false
}

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid audio format")
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes / BytesPerSample
}

// Bytes returns the number of bytes occupied by the given number of samples.
func (f Format) Bytes(samples int64) int64 {
	return samples * BytesPerSample
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// Duration returns the duration of the given number of samples.
func (f Format) Duration(samples int64) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate())
}

// String returns the MIME-style description of the format.
func (f Format) String() string {
	switch f {
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	case L16Mono48K:
		return "audio/L16; rate=48000; channels=1"
	}
	panic("pcm: invalid audio format")
}

// ToFloat32 decodes little-endian signed 16-bit samples from p into
// normalized float32 values in [-1, 1), dividing by 32768. The result is
// written into dst, which is grown if its capacity is insufficient, and
// returned resized to the decoded sample count. A trailing odd byte in p is
// ignored.
func ToFloat32(dst []float32, p []byte) []float32 {
	n := len(p) / BytesPerSample
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(p[i*BytesPerSample:]))
		dst[i] = float32(s) / 32768.0
	}
	return dst
}

// AppendSamples appends the little-endian wire encoding of samples to dst
// and returns the extended slice.
func AppendSamples(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// Silence returns n samples of digital silence in wire encoding.
func Silence(n int) []byte {
	return make([]byte, n*BytesPerSample)
}

// Sine generates n samples of a freq Hz sine at the given rate, scaled by
// amp in [0, 1]. Useful as a deterministic non-silent test signal.
func Sine(n, rate int, freq, amp float64) []int16 {
	out := make([]int16, n)
	if amp > 1 {
		amp = 1
	}
	scale := amp * 32767
	step := 2 * math.Pi * freq / float64(rate)
	for i := range out {
		out[i] = int16(scale * math.Sin(step*float64(i)))
	}
	return out
}
