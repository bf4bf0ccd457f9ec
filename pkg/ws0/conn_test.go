package ws0

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer accepts one connection, upgrades it, and echoes text and
// binary frames until close or error.
func echoServer(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		conn, err := Upgrade(c)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			frame, err := conn.ReadFrame(4 << 20)
			if err != nil {
				return
			}
			switch frame.Opcode {
			case OpPing:
				if err := conn.WritePong(frame.Payload); err != nil {
					return
				}
			case OpClose:
				conn.WriteClose()
				return
			case OpText, OpBinary:
				if err := conn.WriteFrame(frame.Opcode, frame.Payload); err != nil {
					return
				}
			}
		}
	}()
}

// dialWS connects a gorilla client to the listener, proving handshake
// interop with an independent implementation.
func dialWS(t *testing.T, ln net.Listener) *websocket.Conn {
	t.Helper()
	// The server rejects fragmented frames per spec; size the client write
	// buffer so gorilla sends each message as a single frame.
	dialer := websocket.Dialer{WriteBufferSize: 4 << 20}
	conn, _, err := dialer.Dial("ws://"+ln.Addr().String()+"/", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func newTestListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func TestConnGorillaEcho(t *testing.T) {
	ln := newTestListener(t)
	echoServer(t, ln)
	conn := dialWS(t, ln)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	mt, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if mt != websocket.TextMessage || string(msg) != "hello" {
		t.Errorf("echo = (%d, %q), want (text, hello)", mt, msg)
	}

	// A payload above 64 KiB exercises the 64-bit length form both ways.
	big := make([]byte, 70000)
	for i := range big {
		big[i] = byte(i)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, big); err != nil {
		t.Fatalf("WriteMessage(binary) failed: %v", err)
	}
	mt, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage(binary) failed: %v", err)
	}
	if mt != websocket.BinaryMessage || !bytes.Equal(msg, big) {
		t.Errorf("binary echo mismatch: type %d, %d bytes", mt, len(msg))
	}
}

func TestConnGorillaPing(t *testing.T) {
	ln := newTestListener(t)
	echoServer(t, ln)
	conn := dialWS(t, ln)

	pong := make(chan string, 1)
	conn.SetPongHandler(func(data string) error {
		pong <- data
		return nil
	})

	if err := conn.WriteControl(websocket.PingMessage, []byte("pp"), time.Now().Add(time.Second)); err != nil {
		t.Fatalf("WriteControl(ping) failed: %v", err)
	}
	// Pongs surface during a read; follow with an echo to pump the reader.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("x")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	select {
	case data := <-pong:
		if data != "pp" {
			t.Errorf("pong payload = %q, want %q", data, "pp")
		}
	default:
		t.Error("no pong received")
	}
}

func TestConnWriteAfterClose(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()

	c := &Conn{conn: b, r: bufio.NewReader(b)}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if err := c.WriteFrame(OpText, []byte("x")); !errors.Is(err, ErrConnClosed) {
		t.Errorf("WriteFrame after Close = %v, want ErrConnClosed", err)
	}
}

func TestUpgradeRejectsPlainHTTP(t *testing.T) {
	ln := newTestListener(t)

	done := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		_, err = Upgrade(c)
		done <- err
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()
	if _, err := io.WriteString(c, "GET / HTTP/1.1\r\nHost: x\r\n\r\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Upgrade succeeded on plain HTTP request")
		}
		if _, ok := err.(*HandshakeError); !ok {
			t.Errorf("error = %T (%v), want *HandshakeError", err, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Upgrade did not return")
	}
}
