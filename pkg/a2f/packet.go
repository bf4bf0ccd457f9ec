package a2f

import (
	"encoding/binary"
	"math"
)

// Animation frame payload layout, all fields little-endian:
//
//	offset 0  u32  magic "A2FB"
//	offset 4  u32  version
//	offset 8  u32  weight count
//	offset 12 u32  reserved (zero)
//	offset 16 u64  frame index
//	offset 24 i64  timestamp of this frame, in samples
//	offset 32 i64  timestamp of the next frame, in samples
//	offset 40 f32* weights
const (
	FrameMagic   uint32 = 0x42463241
	FrameVersion uint32 = 1

	frameHeaderSize = 40
)

// AnimationHeader is the per-frame metadata preceding the weight vector.
type AnimationHeader struct {
	FrameIndex uint64
	TsCurrent  int64
	TsNext     int64
}

// AppendAnimationFrame appends one encoded animation frame to dst and
// returns the extended slice.
func AppendAnimationFrame(dst []byte, h AnimationHeader, weights []float32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, FrameMagic)
	dst = binary.LittleEndian.AppendUint32(dst, FrameVersion)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(weights)))
	dst = binary.LittleEndian.AppendUint32(dst, 0)
	dst = binary.LittleEndian.AppendUint64(dst, h.FrameIndex)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(h.TsCurrent))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(h.TsNext))
	for _, w := range weights {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(w))
	}
	return dst
}

// ParseAnimationFrame decodes an animation frame payload. The weights
// are copied out of p.
func ParseAnimationFrame(p []byte) (AnimationHeader, []float32, error) {
	var h AnimationHeader
	if len(p) < frameHeaderSize {
		return h, nil, ErrMalformedFrame
	}
	if binary.LittleEndian.Uint32(p[0:4]) != FrameMagic {
		return h, nil, ErrMalformedFrame
	}
	if binary.LittleEndian.Uint32(p[4:8]) != FrameVersion {
		return h, nil, ErrMalformedFrame
	}
	n := int(binary.LittleEndian.Uint32(p[8:12]))
	if len(p) != frameHeaderSize+4*n {
		return h, nil, ErrMalformedFrame
	}
	h.FrameIndex = binary.LittleEndian.Uint64(p[16:24])
	h.TsCurrent = int64(binary.LittleEndian.Uint64(p[24:32]))
	h.TsNext = int64(binary.LittleEndian.Uint64(p[32:40]))
	weights := make([]float32, n)
	for i := range weights {
		off := frameHeaderSize + 4*i
		weights[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[off : off+4]))
	}
	return h, weights, nil
}

// AppendPushAudio appends an encoded PushAudio payload to dst: an 8-byte
// little-endian start sample index followed by 16-bit PCM mono.
func AppendPushAudio(dst []byte, start int64, pcm []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(start))
	return append(dst, pcm...)
}

// ParsePushAudio splits a PushAudio payload into its start sample index
// and PCM bytes. The PCM slice aliases p.
func ParsePushAudio(p []byte) (start int64, pcm []byte, err error) {
	if len(p) < 8 || (len(p)-8)%2 != 0 {
		return 0, nil, ErrMalformedPushAudio
	}
	start = int64(binary.LittleEndian.Uint64(p[0:8]))
	return start, p[8:], nil
}
