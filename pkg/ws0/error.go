package ws0

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrConnClosed is returned when operating on a closed connection.
	ErrConnClosed = errors.New("ws0: connection closed")

	// ErrFrameTooLarge is returned when a frame declares a payload larger
	// than the caller's cap. It is produced from the header alone, before
	// any payload is read.
	ErrFrameTooLarge = errors.New("ws0: frame payload too large")

	// ErrFragmentedFrame is returned when a frame arrives with FIN clear.
	ErrFragmentedFrame = errors.New("ws0: fragmented frames not supported")
)

// HandshakeError is returned when the opening handshake cannot complete.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("ws0: handshake failed: %s", e.Reason)
}
