// Package ws0 provides a minimal server-side WebSocket (RFC 6455) transport:
// the HTTP upgrade handshake and single-frame message I/O over a net.Conn.
//
// The implementation is deliberately narrow. It supports unfragmented text,
// binary, close, ping, and pong frames with a caller-supplied payload cap,
// masks applied on inbound client frames, and unmasked outbound server
// frames written with a single Write call. Fragmented messages, extensions,
// per-message compression, and the client side of the handshake are not
// supported; clients are expected to use a general-purpose WebSocket
// library.
//
// # Example
//
//	ln, err := ws0.Listen("tcp", ":8765")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    c, err := ln.Accept()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    go func() {
//	        conn, err := ws0.Upgrade(c)
//	        if err != nil {
//	            return
//	        }
//	        defer conn.Close()
//	        for {
//	            frame, err := conn.ReadFrame(4 << 20)
//	            if err != nil {
//	                return
//	            }
//	            if frame.Opcode == ws0.OpText {
//	                conn.WriteFrame(ws0.OpText, frame.Payload)
//	            }
//	        }
//	    }()
//	}
package ws0
