package a2f

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/visagekit/visage/pkg/ws0"
)

// DefaultMaxPayload caps a single WebSocket message at 4 MB.
const DefaultMaxPayload = 4 << 20

// Server accepts WebSocket connections and speaks the streaming
// protocol: JSON control messages as text frames, PushAudio and
// animation frames as binary frames.
type Server struct {
	// Pool supplies inference sessions. Required.
	Pool *Pool

	// MaxPayload is the maximum WebSocket message size.
	// Default is DefaultMaxPayload (4MB).
	MaxPayload int

	// OnConnect is called after a completed handshake.
	OnConnect func(remote string)

	// OnDisconnect is called when a connection goes away.
	OnDisconnect func(remote string)

	// internal state
	running atomic.Bool
}

// Serve accepts connections from the listener, one goroutine each.
// It blocks until the listener is closed or an error occurs.
func (s *Server) Serve(ln net.Listener) error {
	if s.running.Swap(true) {
		return ErrAlreadyRunning
	}

	s.init()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.running.Load() {
				return err
			}
			return nil // Closed normally
		}

		go s.handleConnection(conn)
	}
}

// ServeConn handles a single connection.
// This is useful for custom listeners or testing.
func (s *Server) ServeConn(conn net.Conn) {
	s.init()
	s.handleConnection(conn)
}

func (s *Server) init() {
	if s.MaxPayload == 0 {
		s.MaxPayload = DefaultMaxPayload
	}
}

// Close stops the server.
func (s *Server) Close() error {
	s.running.Store(false)
	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	ws, err := ws0.Upgrade(conn)
	if err != nil {
		slog.Debug("a2f: handshake failed", "error", err)
		return
	}
	defer ws.Close()

	remote := conn.RemoteAddr().String()
	if s.OnConnect != nil {
		s.OnConnect(remote)
	}
	slog.Info("a2f: client connected", "remote", remote)

	s.serveClient(ws)

	if s.OnDisconnect != nil {
		s.OnDisconnect(remote)
	}
	slog.Info("a2f: client disconnected", "remote", remote)
}

// serveClient runs the per-connection dispatch loop. Protocol errors go
// back as Error messages; only transport failures end the loop. The
// session, if any, is released when the connection ends.
func (s *Server) serveClient(ws *ws0.Conn) {
	session := -1
	defer func() {
		if session >= 0 {
			s.Pool.Release(session)
		}
	}()

	for {
		frame, err := ws.ReadFrame(s.MaxPayload)
		if err != nil {
			if err != io.EOF {
				slog.Debug("a2f: read error", "error", err)
			}
			return
		}

		switch frame.Opcode {
		case ws0.OpPing:
			_ = ws.WritePong(frame.Payload)

		case ws0.OpClose:
			_ = ws.WriteClose()
			return

		case ws0.OpText:
			session = s.handleControl(ws, session, frame.Payload)

		case ws0.OpBinary:
			if session < 0 {
				s.sendError(ws, kindSessionState, "StartSession must be called before PushAudio")
				continue
			}
			if len(frame.Payload) < 8 || (len(frame.Payload)-8)%2 != 0 {
				s.sendError(ws, kindProtocol, "Invalid PushAudio binary payload")
				continue
			}
			start, pcmBytes, err := ParsePushAudio(frame.Payload)
			if err != nil {
				s.sendError(ws, kindProtocol, "Invalid PushAudio header")
				continue
			}
			// Failures are reported in-band; the connection stays up.
			_ = s.Pool.Get(session).PushAudio(start, pcmBytes)
		}
	}
}

// handleControl dispatches one JSON control message and returns the
// possibly-updated session index.
func (s *Server) handleControl(ws *ws0.Conn, session int, payload []byte) int {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		s.sendError(ws, kindProtocol, fmt.Sprintf("Invalid JSON: %v", err))
		return session
	}

	switch env.Type {
	case TypeStartSession:
		return s.handleStartSession(ws, session, payload)
	case TypeEndSession:
		return s.handleEndSession(ws, session, payload)
	default:
		s.sendError(ws, kindProtocol, "Unknown message type")
		return session
	}
}

func (s *Server) handleStartSession(ws *ws0.Conn, session int, payload []byte) int {
	if session >= 0 {
		s.sendError(ws, kindSessionState, "Session already started for this connection")
		return session
	}

	var req StartSessionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ws, kindProtocol, fmt.Sprintf("Invalid JSON: %v", err))
		return session
	}

	idx, ok := s.Pool.Acquire(ws)
	if !ok {
		s.sendError(ws, kindCapacity, "Server busy (no free sessions)")
		return session
	}

	started := s.Pool.Get(idx).DescribeSessionStarted()
	if msg, ok := validateStartSession(&req, started); !ok {
		s.Pool.Release(idx)
		s.sendError(ws, kindValidation, msg)
		return session
	}

	reply, err := json.Marshal(started)
	if err != nil {
		s.Pool.Release(idx)
		slog.Error("a2f: encode SessionStarted failed", "error", err)
		return session
	}
	if err := ws.WriteFrame(ws0.OpText, reply); err != nil {
		s.Pool.Release(idx)
		return session
	}
	slog.Info("a2f: session started", "remote", ws.RemoteAddr(), "session_id", started.SessionID)
	return idx
}

func (s *Server) handleEndSession(ws *ws0.Conn, session int, payload []byte) int {
	if session < 0 {
		s.sendError(ws, kindSessionState, "No active session for this connection")
		return session
	}

	sid := s.Pool.Get(session).SessionID()

	var req EndSessionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(ws, kindProtocol, fmt.Sprintf("Invalid JSON: %v", err))
		return session
	}
	if len(req.SessionID) > 0 {
		if jsonKind(req.SessionID) != '"' {
			s.sendError(ws, kindSessionState, "EndSession.session_id must be a string")
			return session
		}
		var reqSid string
		if err := json.Unmarshal(req.SessionID, &reqSid); err != nil {
			s.sendError(ws, kindSessionState, "EndSession.session_id must be a string")
			return session
		}
		if reqSid != sid {
			s.sendError(ws, kindSessionState, "EndSession.session_id does not match active session")
			return session
		}
	}

	s.Pool.Release(session)

	if reply, err := json.Marshal(&SessionEnded{Type: TypeSessionEnded, SessionID: sid}); err == nil {
		_ = ws.WriteFrame(ws0.OpText, reply)
	}
	slog.Info("a2f: session ended", "remote", ws.RemoteAddr(), "session_id", sid)
	return -1
}

// sendError reports a request failure without tearing down the
// connection.
func (s *Server) sendError(ws *ws0.Conn, kind, message string) {
	clientErrorsTotal.WithLabelValues(kind).Inc()
	payload, err := json.Marshal(&ErrorMessage{Type: TypeError, Message: message})
	if err != nil {
		return
	}
	_ = ws.WriteFrame(ws0.OpText, payload)
}
