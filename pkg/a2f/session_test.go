package a2f

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/visagekit/visage/pkg/audio/pcm"
	"github.com/visagekit/visage/pkg/engine/sim"
	"github.com/visagekit/visage/pkg/ws0"
)

// frameRecorder captures frames a session writes, standing in for a
// WebSocket connection.
type frameRecorder struct {
	frames []recordedFrame
	fail   bool
}

type recordedFrame struct {
	opcode  ws0.Opcode
	payload []byte
}

func (r *frameRecorder) WriteFrame(opcode ws0.Opcode, payload []byte) error {
	if r.fail {
		return errors.New("sink closed")
	}
	r.frames = append(r.frames, recordedFrame{opcode, append([]byte(nil), payload...)})
	return nil
}

func (r *frameRecorder) binaryFrames(t *testing.T) []recordedFrame {
	t.Helper()
	var out []recordedFrame
	for _, f := range r.frames {
		if f.opcode == ws0.OpBinary {
			out = append(out, f)
		}
	}
	return out
}

func (r *frameRecorder) errorMessages(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, f := range r.frames {
		if f.opcode != ws0.OpText {
			continue
		}
		var msg ErrorMessage
		if err := json.Unmarshal(f.payload, &msg); err != nil {
			t.Fatalf("unmarshal text frame: %v", err)
		}
		if msg.Type == TypeError {
			out = append(out, msg.Message)
		}
	}
	return out
}

func testConfig() ServerConfig {
	cfg := DefaultConfig()
	cfg.Model = "models/test/model.json"
	cfg.MaxSessions = 1
	return cfg
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := newSession(sim.New(), testConfig())
	if err != nil {
		t.Fatalf("newSession failed: %v", err)
	}
	t.Cleanup(func() { s.Destroy() })
	return s
}

// oneSecond is 16,000 samples of a 440 Hz sine in wire encoding.
func oneSecond() []byte {
	return pcm.AppendSamples(nil, pcm.Sine(16000, sim.SampleRate, 440, 0.5))
}

func TestSessionStreamsFrames(t *testing.T) {
	s := newTestSession(t)
	rec := &frameRecorder{}
	s.Start(rec)

	if !s.PushAudio(0, oneSecond()) {
		t.Fatalf("PushAudio failed: %v", rec.errorMessages(t))
	}

	frames := rec.binaryFrames(t)
	if len(frames) != 60 {
		t.Fatalf("frame count = %d, want 60", len(frames))
	}

	var prev AnimationHeader
	for i, f := range frames {
		h, weights, err := ParseAnimationFrame(f.payload)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if h.FrameIndex != uint64(i) {
			t.Errorf("frame %d: index = %d", i, h.FrameIndex)
		}
		if len(weights) != s.weightCount {
			t.Errorf("frame %d: weight count = %d, want %d", i, len(weights), s.weightCount)
		}
		if i == 0 && h.TsCurrent != 0 {
			t.Errorf("first frame tsCurrent = %d, want 0", h.TsCurrent)
		}
		if i > 0 && h.TsCurrent != prev.TsNext {
			t.Errorf("frame %d: tsCurrent = %d, want %d", i, h.TsCurrent, prev.TsNext)
		}
		prev = h
	}
}

func TestSessionFillsGapWithSilence(t *testing.T) {
	s := newTestSession(t)
	rec := &frameRecorder{}
	s.Start(rec)

	// One second of silence before the payload.
	if !s.PushAudio(16000, oneSecond()) {
		t.Fatalf("PushAudio failed: %v", rec.errorMessages(t))
	}
	if msgs := rec.errorMessages(t); len(msgs) != 0 {
		t.Fatalf("unexpected errors: %v", msgs)
	}

	frames := rec.binaryFrames(t)
	if len(frames) != 120 {
		t.Fatalf("frame count = %d, want 120 (gap plus audio)", len(frames))
	}

	// The first second of frames covers the zero-filled gap.
	h, weights, err := ParseAnimationFrame(frames[0].payload)
	if err != nil {
		t.Fatalf("parse first frame: %v", err)
	}
	if h.TsCurrent != 0 {
		t.Errorf("first frame tsCurrent = %d, want 0", h.TsCurrent)
	}
	for i, w := range weights {
		if w != 0 {
			t.Errorf("silence frame weight[%d] = %v, want 0", i, w)
		}
	}
}

func TestSessionRejectsOutOfOrderAudio(t *testing.T) {
	s := newTestSession(t)
	rec := &frameRecorder{}
	s.Start(rec)

	chunk := pcm.AppendSamples(nil, pcm.Sine(1000, sim.SampleRate, 440, 0.5))
	if !s.PushAudio(0, chunk) {
		t.Fatalf("first PushAudio failed: %v", rec.errorMessages(t))
	}
	if s.PushAudio(500, chunk) {
		t.Fatal("out-of-order PushAudio succeeded")
	}

	msgs := rec.errorMessages(t)
	if len(msgs) != 1 {
		t.Fatalf("error count = %d, want 1", len(msgs))
	}
	want := "PushAudio startSampleIndex is behind the accumulator (out-of-order audio)"
	if msgs[0] != want {
		t.Errorf("message = %q, want %q", msgs[0], want)
	}
}

func TestSessionRejectsOversizedGap(t *testing.T) {
	s := newTestSession(t)
	rec := &frameRecorder{}
	s.Start(rec)

	if s.PushAudio(160001, nil) {
		t.Fatal("oversized gap accepted")
	}

	msgs := rec.errorMessages(t)
	if len(msgs) != 1 || msgs[0] != "Audio gap too large" {
		t.Fatalf("messages = %v, want [Audio gap too large]", msgs)
	}
	if frames := rec.binaryFrames(t); len(frames) != 0 {
		t.Errorf("frame count = %d, want 0", len(frames))
	}
}

func TestSessionRejectsNegativeStart(t *testing.T) {
	s := newTestSession(t)
	rec := &frameRecorder{}
	s.Start(rec)

	if s.PushAudio(-1, nil) {
		t.Fatal("negative start accepted")
	}
	msgs := rec.errorMessages(t)
	if len(msgs) != 1 || msgs[0] != "startSampleIndex must be >= 0" {
		t.Fatalf("messages = %v, want [startSampleIndex must be >= 0]", msgs)
	}
}

func TestSessionBackpressureCancelsTrack(t *testing.T) {
	s := newTestSession(t)
	rec := &frameRecorder{}
	s.Start(rec)

	// Twenty seconds in one message produces 1200 ready frames, far past
	// the staging capacity.
	twenty := pcm.AppendSamples(nil, pcm.Sine(20*16000, sim.SampleRate, 440, 0.5))
	s.PushAudio(0, twenty)

	msgs := rec.errorMessages(t)
	if len(msgs) != 1 || msgs[0] != "Too many pending frames (client too slow?)" {
		t.Fatalf("messages = %v, want the pending-cap error", msgs)
	}

	// The staged frames still go out after the cancellation.
	frames := rec.binaryFrames(t)
	if len(frames) != maxStagedFrames {
		t.Fatalf("frame count = %d, want %d", len(frames), maxStagedFrames)
	}

	// The error precedes the flushed frames on the wire.
	if rec.frames[0].opcode != ws0.OpText {
		t.Errorf("first frame opcode = %v, want text error", rec.frames[0].opcode)
	}

	// The track is cancelled: more audio produces no more frames.
	before := len(rec.binaryFrames(t))
	s.PushAudio(20*16000, oneSecond())
	if after := len(rec.binaryFrames(t)); after != before {
		t.Errorf("frames after cancel = %d, want %d", after, before)
	}

	// A reset restores frame production from index zero.
	if err := s.ResetForReuse(); err != nil {
		t.Fatalf("ResetForReuse failed: %v", err)
	}
	rec2 := &frameRecorder{}
	s.Start(rec2)
	if !s.PushAudio(0, oneSecond()) {
		t.Fatalf("PushAudio after reset failed: %v", rec2.errorMessages(t))
	}
	frames2 := rec2.binaryFrames(t)
	if len(frames2) != 60 {
		t.Fatalf("frame count after reset = %d, want 60", len(frames2))
	}
	h, _, err := ParseAnimationFrame(frames2[0].payload)
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	if h.FrameIndex != 0 {
		t.Errorf("first frame index after reset = %d, want 0", h.FrameIndex)
	}
}

func TestSessionReuseRestartsClock(t *testing.T) {
	s := newTestSession(t)

	rec1 := &frameRecorder{}
	id1 := s.Start(rec1)
	if len(id1) != 32 {
		t.Fatalf("session id length = %d, want 32", len(id1))
	}
	if _, err := hex.DecodeString(id1); err != nil {
		t.Fatalf("session id is not hex: %v", err)
	}
	if !s.PushAudio(0, oneSecond()) {
		t.Fatalf("PushAudio failed: %v", rec1.errorMessages(t))
	}

	s.Stop()
	if err := s.ResetForReuse(); err != nil {
		t.Fatalf("ResetForReuse failed: %v", err)
	}

	rec2 := &frameRecorder{}
	id2 := s.Start(rec2)
	if id2 == id1 {
		t.Error("session id not refreshed on reuse")
	}

	// Sample zero is valid again after the reset.
	if !s.PushAudio(0, oneSecond()) {
		t.Fatalf("PushAudio after reuse failed: %v", rec2.errorMessages(t))
	}
	frames := rec2.binaryFrames(t)
	if len(frames) != 60 {
		t.Fatalf("frame count = %d, want 60", len(frames))
	}
	h, _, err := ParseAnimationFrame(frames[0].payload)
	if err != nil {
		t.Fatalf("parse frame: %v", err)
	}
	if h.FrameIndex != 0 || h.TsCurrent != 0 {
		t.Errorf("first frame = index %d ts %d, want 0 0", h.FrameIndex, h.TsCurrent)
	}
}

func TestSessionDetachedPushIsSilent(t *testing.T) {
	s := newTestSession(t)
	rec := &frameRecorder{}
	s.Start(rec)
	s.Stop()

	if s.PushAudio(0, oneSecond()) {
		t.Fatal("detached PushAudio succeeded")
	}
	if len(rec.frames) != 0 {
		t.Errorf("recorded %d frames after detach, want 0", len(rec.frames))
	}
}

func TestSessionSendFailureAbortsFlush(t *testing.T) {
	s := newTestSession(t)
	rec := &frameRecorder{fail: true}
	s.Start(rec)

	if s.PushAudio(0, oneSecond()) {
		t.Fatal("PushAudio succeeded with a dead sink")
	}

	// The session recovers after a reset with a healthy connection.
	if err := s.ResetForReuse(); err != nil {
		t.Fatalf("ResetForReuse failed: %v", err)
	}
	rec2 := &frameRecorder{}
	s.Start(rec2)
	if !s.PushAudio(0, oneSecond()) {
		t.Fatalf("PushAudio failed: %v", rec2.errorMessages(t))
	}
	if frames := rec2.binaryFrames(t); len(frames) != 60 {
		t.Errorf("frame count = %d, want 60", len(frames))
	}
}

func TestDescribeSessionStarted(t *testing.T) {
	s := newTestSession(t)
	rec := &frameRecorder{}
	id := s.Start(rec)

	started := s.DescribeSessionStarted()
	if started.Type != TypeSessionStarted {
		t.Errorf("type = %q", started.Type)
	}
	if started.Protocol.Version != ProtocolVersion {
		t.Errorf("protocol version = %d, want %d", started.Protocol.Version, ProtocolVersion)
	}
	if started.SessionID != id {
		t.Errorf("session id = %q, want %q", started.SessionID, id)
	}
	if started.Model != "models/test/model.json" {
		t.Errorf("model = %q", started.Model)
	}
	if !started.Options.UseGpuSolver {
		t.Error("use_gpu_solver = false, want true")
	}
	if started.Options.ExecutionOption != "SkinTongue" {
		t.Errorf("execution_option = %q, want SkinTongue", started.Options.ExecutionOption)
	}
	if started.SamplingRate != sim.SampleRate {
		t.Errorf("sampling_rate = %d, want %d", started.SamplingRate, sim.SampleRate)
	}
	if started.FrameRate.Numerator != 60 || started.FrameRate.Denominator != 1 {
		t.Errorf("frame_rate = %d/%d, want 60/1", started.FrameRate.Numerator, started.FrameRate.Denominator)
	}
	if started.WeightCount != len(started.Channels) {
		t.Errorf("weight_count = %d, channels = %d", started.WeightCount, len(started.Channels))
	}
	if len(started.ChannelGroups) != 2 {
		t.Fatalf("channel groups = %d, want 2", len(started.ChannelGroups))
	}
	if started.ChannelGroups[0].Name != "skin" || started.ChannelGroups[1].Name != "tongue" {
		t.Errorf("group names = %q, %q", started.ChannelGroups[0].Name, started.ChannelGroups[1].Name)
	}
	if got := started.ChannelGroups[0].Count + started.ChannelGroups[1].Count; got != started.WeightCount {
		t.Errorf("group counts sum = %d, want %d", got, started.WeightCount)
	}
}
