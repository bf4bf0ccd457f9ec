package ws0

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"strings"
)

// acceptGUID is the fixed key-derivation constant from RFC 6455 §1.3.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// maxHandshakeBytes caps the size of the HTTP upgrade request.
const maxHandshakeBytes = 16 * 1024

// AcceptKey computes the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key.
func AcceptKey(secKey string) string {
	sum := sha1.Sum([]byte(secKey + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// recvUntil reads from r until delim has been seen, returning everything
// read including the delimiter. Fails once max bytes accumulate without a
// match.
func recvUntil(r *bufio.Reader, delim string, max int) ([]byte, error) {
	buf := make([]byte, 0, 512)
	for {
		if len(buf) >= max {
			return nil, &HandshakeError{Reason: "request exceeds size limit"}
		}
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if len(buf) >= len(delim) && string(buf[len(buf)-len(delim):]) == delim {
			return buf, nil
		}
	}
}

// serverHandshake reads the client's HTTP upgrade request from r and writes
// the 101 response to w. Header names are matched case-insensitively. The
// request must be a GET carrying "Upgrade: websocket" and a
// Sec-WebSocket-Key.
func serverHandshake(w io.Writer, r *bufio.Reader) error {
	raw, err := recvUntil(r, "\r\n\r\n", maxHandshakeBytes)
	if err != nil {
		return err
	}

	lines := strings.Split(string(raw), "\r\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "GET ") {
		return &HandshakeError{Reason: "not an HTTP GET request"}
	}

	headers := make(map[string]string, len(lines))
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	if !strings.EqualFold(headers["upgrade"], "websocket") {
		return &HandshakeError{Reason: "missing Upgrade: websocket header"}
	}
	secKey := headers["sec-websocket-key"]
	if secKey == "" {
		return &HandshakeError{Reason: "missing Sec-WebSocket-Key header"}
	}

	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + AcceptKey(secKey) + "\r\n\r\n"
	_, err = w.Write([]byte(resp))
	return err
}
