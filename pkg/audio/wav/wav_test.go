package wav

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/visagekit/visage/pkg/audio/pcm"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := pcm.Sine(1600, 16000, 440, 0.5)
	data := Encode(want, 16000)

	got, rate, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

// encodeMulti builds an interleaved multi-channel file for downmix tests.
func encodeMulti(channels int, frames [][]int16, sampleRate int) []byte {
	dataLen := 2 * channels * len(frames)
	out := make([]byte, 0, 44+dataLen)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+dataLen))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1)
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*2*channels))
	out = binary.LittleEndian.AppendUint16(out, uint16(2*channels))
	out = binary.LittleEndian.AppendUint16(out, 16)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataLen))
	for _, frame := range frames {
		out = pcm.AppendSamples(out, frame)
	}
	return out
}

func TestDecodeDownmixesStereo(t *testing.T) {
	data := encodeMulti(2, [][]int16{{100, 200}, {-100, 100}, {0, 0}}, 48000)

	got, rate, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rate != 48000 {
		t.Errorf("rate = %d, want 48000", rate)
	}
	want := []int16{150, 0, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	good := Encode([]int16{1, 2, 3}, 16000)

	badMagic := append([]byte(nil), good...)
	copy(badMagic, "RIFX")

	floatFmt := append([]byte(nil), good...)
	binary.LittleEndian.PutUint16(floatFmt[20:22], 3)

	depth8 := append([]byte(nil), good...)
	binary.LittleEndian.PutUint16(depth8[34:36], 8)

	truncated := good[:len(good)-2]

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "not a RIFF/WAVE"},
		{"bad magic", badMagic, "not a RIFF/WAVE"},
		{"float format", floatFmt, "unsupported audio format"},
		{"8-bit depth", depth8, "unsupported bit depth"},
		{"truncated data", truncated, "truncated chunk"},
		{"header only", good[:12], "missing fmt or data"},
	}

	for _, tt := range tests {
		_, _, err := Decode(tt.data)
		if err == nil {
			t.Errorf("%s: Decode succeeded", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error = %v, want substring %q", tt.name, err, tt.want)
		}
	}
}
