// Package wav reads and writes 16-bit PCM WAV files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/visagekit/visage/pkg/audio/pcm"
)

// Decode parses a PCM WAV file and returns mono 16-bit samples plus the
// sample rate. Multi-channel audio is downmixed by averaging.
func Decode(data []byte) ([]int16, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("wav: not a RIFF/WAVE file")
	}

	var (
		channels      int
		sampleRate    int
		bitsPerSample int
		raw           []byte
		haveFmt       bool
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if off+size > len(data) {
			return nil, 0, errors.New("wav: truncated chunk")
		}
		body := data[off : off+size]

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("wav: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 {
				return nil, 0, fmt.Errorf("wav: unsupported audio format %d (PCM only)", format)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		case "data":
			raw = body
		}

		// Chunks are word aligned.
		off += size + size%2
	}

	if !haveFmt || raw == nil {
		return nil, 0, errors.New("wav: missing fmt or data chunk")
	}
	if bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("wav: unsupported bit depth %d (16-bit only)", bitsPerSample)
	}
	if channels < 1 {
		return nil, 0, errors.New("wav: invalid channel count")
	}

	frameBytes := 2 * channels
	frames := len(raw) / frameBytes
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(int16(binary.LittleEndian.Uint16(raw[base+2*c:])))
		}
		samples[i] = int16(sum / channels)
	}
	return samples, sampleRate, nil
}

// Encode builds a mono 16-bit PCM WAV file.
func Encode(samples []int16, sampleRate int) []byte {
	dataLen := 2 * len(samples)
	out := make([]byte, 0, 44+dataLen)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+dataLen))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1) // PCM
	out = binary.LittleEndian.AppendUint16(out, 1) // mono
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*2))
	out = binary.LittleEndian.AppendUint16(out, 2)
	out = binary.LittleEndian.AppendUint16(out, 16)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataLen))
	out = pcm.AppendSamples(out, samples)
	return out
}
