package a2f

import "errors"

var (
	// ErrMalformedPushAudio reports a binary payload that does not carry
	// the 8-byte start index plus whole PCM16 samples.
	ErrMalformedPushAudio = errors.New("a2f: malformed PushAudio payload")

	// ErrMalformedFrame reports an animation frame payload with a bad
	// magic, version, or length.
	ErrMalformedFrame = errors.New("a2f: malformed animation frame")

	// ErrAlreadyRunning is returned by Serve when the server is running.
	ErrAlreadyRunning = errors.New("a2f: server already running")
)

// Error kinds label client_errors_total; every Error message sent to a
// client carries exactly one kind.
const (
	kindProtocol     = "protocol"
	kindSessionState = "session_state"
	kindValidation   = "validation"
	kindAudioOrder   = "audio_order"
	kindCapacity     = "capacity"
	kindEngine       = "engine"
)
