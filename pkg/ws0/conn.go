package ws0

import (
	"bufio"
	"net"
	"sync"
)

// Conn is a server-side WebSocket connection after a completed handshake.
//
// ReadFrame must be called from a single goroutine. WriteFrame is safe for
// concurrent use; each frame is emitted with one Write on the underlying
// connection.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader

	wmu    sync.Mutex
	closed bool
}

// Upgrade performs the server half of the opening handshake on c and wraps
// it as a Conn. TCP connections get NODELAY. On handshake failure the raw
// connection is closed.
func Upgrade(c net.Conn) (*Conn, error) {
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	r := bufio.NewReader(c)
	if err := serverHandshake(c, r); err != nil {
		c.Close()
		return nil, err
	}
	return &Conn{conn: c, r: r}, nil
}

// ReadFrame reads the next frame, rejecting payloads above maxPayload from
// the header alone. It returns io.EOF when the peer closes the connection
// between frames.
func (c *Conn) ReadFrame(maxPayload int) (Frame, error) {
	return readFrame(c.r, maxPayload)
}

// WriteFrame sends one unmasked frame with FIN set. It returns
// ErrConnClosed after Close.
func (c *Conn) WriteFrame(opcode Opcode, payload []byte) error {
	buf := appendFrame(make([]byte, 0, frameSize(len(payload))), opcode, payload)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	_, err := c.conn.Write(buf)
	return err
}

// WritePong replies to a ping with the identical payload.
func (c *Conn) WritePong(payload []byte) error {
	return c.WriteFrame(OpPong, payload)
}

// WriteClose sends an empty close frame.
func (c *Conn) WriteClose() error {
	return c.WriteFrame(OpClose, nil)
}

// Close closes the underlying connection. Further calls are no-ops.
func (c *Conn) Close() error {
	c.wmu.Lock()
	if c.closed {
		c.wmu.Unlock()
		return nil
	}
	c.closed = true
	c.wmu.Unlock()
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
