package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/visagekit/visage/pkg/a2f"
	"github.com/visagekit/visage/pkg/audio/pcm"
	"github.com/visagekit/visage/pkg/audio/wav"
)

var (
	clientURL     string
	clientWav     string
	clientSeconds float64
	clientFreq    float64
	clientChunkMs int
	clientModel   string
	clientFPS     int
	clientExec    string
	clientDump    string
	clientIdle    time.Duration
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Stream audio to a server and collect animation frames",
	Long: `Connect to a running server, start a session, push audio as
sequential PushAudio chunks, and read back the animation frames.

Audio comes from a 16-bit PCM WAV file (--wav) or from a generated
sine tone (--seconds, --freq). WAV input must already match the
server's sampling rate; multi-channel files are downmixed to mono.

Examples:
  visage client --wav speech.wav
  visage client --seconds 3 --freq 220 --chunk_ms 250
  visage client --wav speech.wav --dump frames.msgpack`,
	RunE: runClient,
}

func init() {
	f := clientCmd.Flags()
	f.StringVar(&clientURL, "url", "ws://127.0.0.1:8765/", "Server WebSocket URL")
	f.StringVar(&clientWav, "wav", "", "Path to a 16-bit PCM WAV file")
	f.Float64Var(&clientSeconds, "seconds", 2.0, "Seconds of sine tone when no WAV is given")
	f.Float64Var(&clientFreq, "freq", 440, "Sine tone frequency in Hz")
	f.IntVar(&clientChunkMs, "chunk_ms", 500, "PushAudio chunk duration in milliseconds")
	f.StringVar(&clientModel, "model", "", "Model path to validate against the server")
	f.IntVar(&clientFPS, "fps", 0, "Frame rate to validate against the server (0 skips)")
	f.StringVar(&clientExec, "execution_option", "", "Execution option to validate against the server")
	f.StringVar(&clientDump, "dump", "", "Write received frames to a msgpack capture file")
	f.DurationVar(&clientIdle, "idle_timeout", 2*time.Second, "Stop waiting for frames after this idle gap")

	rootCmd.AddCommand(clientCmd)
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

// frameRecord is the msgpack capture format, one record per frame.
type frameRecord struct {
	FrameIndex uint64    `msgpack:"frame_index"`
	TsCurrent  int64     `msgpack:"ts_current"`
	TsNext     int64     `msgpack:"ts_next"`
	Weights    []float32 `msgpack:"weights"`
}

// clientEvent is one incoming server message, decoded.
type clientEvent struct {
	header  a2f.AnimationHeader
	weights []float32
	errMsg  string
	ended   bool
}

func runClient(cmd *cobra.Command, args []string) error {
	setupLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// WAV input decodes up front; the sine tone needs the sampling rate
	// from the handshake.
	var wavSamples []int16
	wavRate := 0
	if clientWav != "" {
		data, err := os.ReadFile(clientWav)
		if err != nil {
			return fmt.Errorf("read wav: %w", err)
		}
		wavSamples, wavRate, err = wav.Decode(data)
		if err != nil {
			return err
		}
	}

	// The server rejects fragmented frames per spec; size the write buffer
	// to the protocol's message cap so every message goes as one frame.
	dialer := *websocket.DefaultDialer
	dialer.WriteBufferSize = a2f.DefaultMaxPayload
	conn, _, err := dialer.DialContext(ctx, clientURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", clientURL, err)
	}
	defer conn.Close()

	started, err := startRemoteSession(conn)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", labelStyle.Render("session"), started.SessionID)
	fmt.Printf("%s %s\n", labelStyle.Render("model"), started.Model)
	fmt.Printf("%s %d Hz, %d/%d fps, %d weights (%s)\n",
		labelStyle.Render("stream"),
		started.SamplingRate, started.FrameRate.Numerator, started.FrameRate.Denominator,
		started.WeightCount, started.Options.ExecutionOption)

	samples := wavSamples
	if clientWav == "" {
		n := int(clientSeconds * float64(started.SamplingRate))
		samples = pcm.Sine(n, started.SamplingRate, clientFreq, 0.5)
	} else if wavRate != started.SamplingRate {
		return fmt.Errorf("wav sample rate %d does not match server %d (resample first)", wavRate, started.SamplingRate)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no audio to send")
	}
	chunkSamples := started.SamplingRate * clientChunkMs / 1000
	if chunkSamples <= 0 {
		return fmt.Errorf("chunk_ms %d is below one sample", clientChunkMs)
	}

	var dumpFile *os.File
	var dump *msgpack.Encoder
	if clientDump != "" {
		dumpFile, err = os.Create(clientDump)
		if err != nil {
			return fmt.Errorf("create capture file: %w", err)
		}
		defer dumpFile.Close()
		dump = msgpack.NewEncoder(dumpFile)
	}

	// All incoming messages funnel through one channel; the reader
	// goroutine exits when the connection closes.
	events := make(chan clientEvent, 256)
	go func() {
		defer close(events)
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch mt {
			case websocket.BinaryMessage:
				h, weights, err := a2f.ParseAnimationFrame(payload)
				if err != nil {
					slog.Warn("Bad animation frame", "error", err)
					continue
				}
				events <- clientEvent{header: h, weights: weights}
			case websocket.TextMessage:
				var msg struct {
					Type    string `json:"type"`
					Message string `json:"message"`
				}
				if json.Unmarshal(payload, &msg) != nil {
					continue
				}
				switch msg.Type {
				case a2f.TypeError:
					events <- clientEvent{errMsg: msg.Message}
				case a2f.TypeSessionEnded:
					events <- clientEvent{ended: true}
				}
			}
		}
	}()

	frames := 0
	serverErrs := 0
	var lastHeader a2f.AnimationHeader
	handle := func(ev clientEvent) {
		if ev.errMsg != "" {
			slog.Error("Server error", "message", ev.errMsg)
			serverErrs++
			return
		}
		if ev.ended {
			return
		}
		frames++
		lastHeader = ev.header
		if dump != nil {
			rec := frameRecord{
				FrameIndex: ev.header.FrameIndex,
				TsCurrent:  ev.header.TsCurrent,
				TsNext:     ev.header.TsNext,
				Weights:    ev.weights,
			}
			if err := dump.Encode(&rec); err != nil {
				slog.Error("Capture write failed", "error", err)
				dump = nil
			}
		}
	}

	// drain consumes whatever has already arrived without blocking.
	drain := func() (bool, error) {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return false, nil
				}
				handle(ev)
			case <-ctx.Done():
				return false, ctx.Err()
			default:
				return true, nil
			}
		}
	}

	startTime := time.Now()
	chunks := 0
	var pcmBuf, msgBuf []byte
	for start := 0; start < len(samples); start += chunkSamples {
		end := min(start+chunkSamples, len(samples))
		pcmBuf = pcm.AppendSamples(pcmBuf[:0], samples[start:end])
		msgBuf = a2f.AppendPushAudio(msgBuf[:0], int64(start), pcmBuf)
		if err := conn.WriteMessage(websocket.BinaryMessage, msgBuf); err != nil {
			return fmt.Errorf("send PushAudio: %w", err)
		}
		chunks++

		alive, err := drain()
		if err != nil {
			return err
		}
		if !alive {
			return fmt.Errorf("connection closed while sending")
		}
	}
	fmt.Printf("%s %d samples in %d chunks\n", labelStyle.Render("pushed"), len(samples), chunks)

	// Frames trail the audio; wait until the stream goes quiet.
	idle := time.NewTimer(clientIdle)
	defer idle.Stop()
waitLoop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break waitLoop
			}
			handle(ev)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(clientIdle)
		case <-idle.C:
			break waitLoop
		case <-ctx.Done():
			break waitLoop
		}
	}

	endRemoteSession(conn, started.SessionID, events, handle)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	elapsed := time.Since(startTime)
	fmt.Printf("%s %d frames in %s", labelStyle.Render("received"), frames, elapsed.Round(time.Millisecond))
	if frames > 0 {
		animSeconds := float64(lastHeader.TsNext) / float64(started.SamplingRate)
		fmt.Printf(" %s", dimStyle.Render(fmt.Sprintf("(%.2fs of animation)", animSeconds)))
	}
	fmt.Println()
	if serverErrs > 0 {
		fmt.Printf("%s %d server error(s), see log\n", labelStyle.Render("errors"), serverErrs)
	}
	if dumpFile != nil {
		fmt.Printf("%s %s\n", labelStyle.Render("capture"), clientDump)
	}
	return nil
}

// startRemoteSession performs the StartSession exchange.
func startRemoteSession(conn *websocket.Conn) (*a2f.SessionStarted, error) {
	req := map[string]any{"type": a2f.TypeStartSession}
	if clientModel != "" {
		req["model"] = clientModel
	}
	if clientFPS > 0 {
		req["fps"] = clientFPS
	}
	if clientExec != "" {
		req["options"] = map[string]any{"execution_option": clientExec}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("send StartSession: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, reply, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read StartSession reply: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var env struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(reply, &env); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	if env.Type == a2f.TypeError {
		return nil, fmt.Errorf("server rejected session: %s", env.Message)
	}
	var started a2f.SessionStarted
	if err := json.Unmarshal(reply, &started); err != nil {
		return nil, fmt.Errorf("parse SessionStarted: %w", err)
	}
	return &started, nil
}

// endRemoteSession sends EndSession and waits briefly for the
// acknowledgement, handling any frames still in flight.
func endRemoteSession(conn *websocket.Conn, sessionID string, events <-chan clientEvent, handle func(clientEvent)) {
	req, err := json.Marshal(map[string]any{"type": a2f.TypeEndSession, "session_id": sessionID})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		return
	}

	ack := time.NewTimer(2 * time.Second)
	defer ack.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok || ev.ended {
				return
			}
			handle(ev)
		case <-ack.C:
			return
		}
	}
}
