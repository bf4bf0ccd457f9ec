package ws0

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WebSocket opcodes.
const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// Opcode identifies the frame type in the low nibble of the first header byte.
type Opcode byte

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "CONTINUATION"
	case OpText:
		return "TEXT"
	case OpBinary:
		return "BINARY"
	case OpClose:
		return "CLOSE"
	case OpPing:
		return "PING"
	case OpPong:
		return "PONG"
	default:
		return fmt.Sprintf("OPCODE(%#x)", byte(o))
	}
}

// Frame is a single complete WebSocket frame.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// readFrame reads one complete frame from r. maxPayload caps the payload
// length and is enforced from the header length field, before any payload
// byte is read or buffered. Frames with FIN clear are rejected. Masked
// payloads are unmasked in place.
func readFrame(r *bufio.Reader, maxPayload int) (Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}

	fin := hdr[0]&0x80 != 0
	opcode := Opcode(hdr[0] & 0x0f)
	if !fin {
		return Frame{}, ErrFragmentedFrame
	}

	masked := hdr[1]&0x80 != 0
	length := int64(hdr[1] & 0x7f)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = int64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		v := binary.BigEndian.Uint64(ext[:])
		if v > math.MaxInt64 {
			return Frame{}, fmt.Errorf("%w: length %d", ErrFrameTooLarge, v)
		}
		length = int64(v)
	}
	if length > int64(maxPayload) {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxPayload)
	}

	var mask [4]byte
	if masked {
		if _, err := io.ReadFull(r, mask[:]); err != nil {
			return Frame{}, err
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	if masked {
		for i := range payload {
			payload[i] ^= mask[i&3]
		}
	}

	return Frame{Opcode: opcode, Payload: payload}, nil
}

// appendFrame appends the wire encoding of an unmasked frame with FIN set,
// which is the only form a server sends.
func appendFrame(dst []byte, opcode Opcode, payload []byte) []byte {
	dst = append(dst, 0x80|byte(opcode)&0x0f)
	switch n := len(payload); {
	case n < 126:
		dst = append(dst, byte(n))
	case n <= math.MaxUint16:
		dst = append(dst, 126)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, 127)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}
	return append(dst, payload...)
}

// frameSize returns the encoded size of a frame with the given payload length.
func frameSize(payloadLen int) int {
	switch {
	case payloadLen < 126:
		return 2 + payloadLen
	case payloadLen <= math.MaxUint16:
		return 4 + payloadLen
	default:
		return 10 + payloadLen
	}
}
