package a2f

import "encoding/json"

// ProtocolVersion is the control protocol and frame payload version.
const ProtocolVersion = 1

// Control message type tags.
const (
	TypeStartSession   = "StartSession"
	TypeEndSession     = "EndSession"
	TypeSessionStarted = "SessionStarted"
	TypeSessionEnded   = "SessionEnded"
	TypeError          = "Error"
)

// StartSessionRequest carries the client's validation hints. Fields stay
// raw so wrong JSON types produce targeted errors instead of a blanket
// parse failure; unknown fields are ignored.
type StartSessionRequest struct {
	Type      string          `json:"type"`
	Model     json.RawMessage `json:"model,omitempty"`
	FPS       json.RawMessage `json:"fps,omitempty"`
	FrameRate json.RawMessage `json:"frame_rate,omitempty"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// EndSessionRequest optionally names the session it ends.
type EndSessionRequest struct {
	Type      string          `json:"type"`
	SessionID json.RawMessage `json:"session_id,omitempty"`
}

// ProtocolInfo is the protocol block of SessionStarted.
type ProtocolInfo struct {
	Version int `json:"version"`
}

// FrameRate is a rational frames-per-second value.
type FrameRate struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// SessionOptions mirrors the server's solver configuration.
type SessionOptions struct {
	UseGpuSolver    bool   `json:"use_gpu_solver"`
	ExecutionOption string `json:"execution_option"`
}

// ChannelGroup names a contiguous run of output channels.
type ChannelGroup struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SessionStarted is the server's offered session configuration, sent in
// reply to an accepted StartSession.
type SessionStarted struct {
	Type          string         `json:"type"`
	Protocol      ProtocolInfo   `json:"protocol"`
	SessionID     string         `json:"session_id"`
	Model         string         `json:"model"`
	Options       SessionOptions `json:"options"`
	SamplingRate  int            `json:"sampling_rate"`
	FrameRate     FrameRate      `json:"frame_rate"`
	WeightCount   int            `json:"weight_count"`
	Channels      []string       `json:"channels"`
	ChannelGroups []ChannelGroup `json:"channel_groups"`
}

// SessionEnded acknowledges an EndSession.
type SessionEnded struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ErrorMessage reports a request failure to the client. The connection
// stays usable.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
