// Package a2f implements the audio-to-face streaming protocol: JSON
// control messages and binary animation frames over WebSocket.
//
// A Server owns a Pool of pre-initialized inference sessions. Each
// accepted connection is upgraded and dispatched on its own goroutine;
// StartSession binds a pooled session to the connection, PushAudio
// messages feed PCM16 audio into the session's engine bundle, and solved
// blendshape weights stream back as binary frames. Sessions return to
// the pool on EndSession or disconnect and are reset before reuse.
//
//	pool, err := a2f.NewPool(sim.New(), a2f.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Destroy()
//
//	ln, err := ws0.Listen("tcp", "0.0.0.0:8765")
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv := &a2f.Server{Pool: pool}
//	log.Fatal(srv.Serve(ln))
package a2f
