package a2f

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visagekit/visage/pkg/audio/pcm"
	"github.com/visagekit/visage/pkg/engine"
	"github.com/visagekit/visage/pkg/ws0"
)

const (
	// flushThresholdFrames triggers a mid-drive flush once this many
	// frames are staged.
	flushThresholdFrames = 32

	// maxStagedFrames is the staging buffer capacity in frames. The
	// results callback cancels the track when it fills up.
	maxStagedFrames = 256

	// maxAudioGapSamples is the largest gap a PushAudio may declare; the
	// session zero-fills anything up to 10 seconds at 16 kHz.
	maxAudioGapSamples = 16000 * 10
)

// FrameSender is the write half of a client connection. *ws0.Conn
// implements it; tests substitute a recorder.
type FrameSender interface {
	WriteFrame(opcode ws0.Opcode, payload []byte) error
}

// pendingFrame is one produced result whose weights sit in a staging
// slot, awaiting a stream synchronize before they are host-readable.
type pendingFrame struct {
	frameIndex uint64
	tsCurrent  int64
	tsNext     int64
	slot       int
}

// Session owns one executor bundle and streams animation frames to one
// client connection at a time. Sessions are built once at startup and
// recycled across connections by the pool.
//
// The results callback runs inline during Execute, on the goroutine
// that already holds mu inside PushAudio, so it reads and writes
// session state without locking.
type Session struct {
	provider engine.Provider
	device   int

	bundle   engine.Bundle
	executor engine.Executor
	audio    engine.AudioAccumulator
	emotion  engine.EmotionAccumulator
	staging  engine.HostBuffer

	// Fixed per-bundle facts reported in SessionStarted.
	model        string
	execution    string
	useGpuSolver bool
	samplingRate int
	fpsNum       int
	fpsDen       int
	weightCount  int
	channels     []string
	skinCount    int
	tongueCount  int

	mu             sync.Mutex
	sender         FrameSender
	sessionID      string
	pending        []pendingFrame
	nextFrameIndex uint64
	lastStream     engine.Stream
	scratch        []float32
	frameBuf       []byte
}

// newSession builds a ready-to-reuse session: bundle, results callback,
// channel list, and pinned staging memory for maxStagedFrames frames.
// On failure everything already allocated is released.
func newSession(p engine.Provider, cfg ServerConfig) (*Session, error) {
	if !cfg.UseGpuSolver {
		return nil, fmt.Errorf("a2f: only the GPU blendshape solver is supported")
	}
	bc, err := cfg.BundleConfig()
	if err != nil {
		return nil, err
	}
	if err := p.UseDevice(cfg.CudaDevice); err != nil {
		return nil, fmt.Errorf("a2f: set device %d: %w", cfg.CudaDevice, err)
	}
	bundle, err := p.NewBundle(bc)
	if err != nil {
		return nil, fmt.Errorf("a2f: create executor bundle from %s: %w", cfg.Model, err)
	}

	s := &Session{
		provider:     p,
		device:       cfg.CudaDevice,
		bundle:       bundle,
		executor:     bundle.Executor(),
		audio:        bundle.AudioAccumulator(0),
		emotion:      bundle.EmotionAccumulator(0),
		model:        cfg.Model,
		execution:    bc.Execution.String(),
		useGpuSolver: cfg.UseGpuSolver,
	}

	ok := false
	defer func() {
		if !ok {
			_ = s.Destroy()
		}
	}()

	if rt := s.executor.ResultType(); rt != engine.ResultDevice {
		return nil, fmt.Errorf("a2f: expected DEVICE results from the GPU solver, got %s", rt)
	}
	s.executor.SetResultsCallback(s.onDeviceResults)

	if s.samplingRate, err = s.executor.SamplingRate(); err != nil {
		return nil, fmt.Errorf("a2f: query sampling rate: %w", err)
	}
	if s.fpsNum, s.fpsDen, err = s.executor.FrameRate(); err != nil {
		return nil, fmt.Errorf("a2f: query frame rate: %w", err)
	}
	if s.weightCount, err = s.executor.WeightCount(); err != nil {
		return nil, fmt.Errorf("a2f: query weight count: %w", err)
	}

	skin, tongue, err := bundle.Channels()
	if err != nil {
		return nil, fmt.Errorf("a2f: query channels: %w", err)
	}
	s.skinCount = len(skin)
	s.tongueCount = len(tongue)
	s.channels = append(append(make([]string, 0, s.weightCount), skin...), tongue...)
	if len(s.channels) != s.weightCount {
		return nil, fmt.Errorf("a2f: channel count mismatch (channels=%d, weights=%d)",
			len(s.channels), s.weightCount)
	}

	if s.staging, err = bundle.NewHostBuffer(s.weightCount * maxStagedFrames); err != nil {
		return nil, fmt.Errorf("a2f: allocate staging buffer: %w", err)
	}

	if err := s.ResetForReuse(); err != nil {
		return nil, err
	}
	ok = true
	return s, nil
}

// Destroy releases the staging buffer and the bundle. The session is
// unusable afterwards.
func (s *Session) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = nil
	s.clearPendingLocked()
	var firstErr error
	if s.staging != nil {
		firstErr = s.staging.Free()
		s.staging = nil
	}
	if s.bundle != nil {
		if err := s.bundle.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.bundle = nil
	}
	return firstErr
}

// ResetForReuse rewinds the executor and both accumulators to a fresh
// state and re-primes the neutral emotion, so a recycled session starts
// from sample zero.
func (s *Session) ResetForReuse() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bundle == nil {
		return fmt.Errorf("a2f: session already destroyed")
	}
	_ = s.executor.Wait(0)
	if err := s.executor.Reset(0); err != nil {
		return fmt.Errorf("a2f: executor reset: %w", err)
	}
	if err := s.audio.Reset(); err != nil {
		return fmt.Errorf("a2f: audio accumulator reset: %w", err)
	}
	if err := s.emotion.Reset(); err != nil {
		return fmt.Errorf("a2f: emotion accumulator reset: %w", err)
	}
	if err := s.primeNeutralEmotionLocked(); err != nil {
		return err
	}
	s.clearPendingLocked()
	s.nextFrameIndex = 0
	s.lastStream = nil
	return nil
}

// primeNeutralEmotionLocked accumulates an all-zero emotion vector at
// timestamp zero and closes the stream, so audio alone drives output.
func (s *Session) primeNeutralEmotionLocked() error {
	zeros := make([]float32, s.emotion.Width())
	if err := s.emotion.Accumulate(0, zeros); err != nil {
		return fmt.Errorf("a2f: set neutral emotion: %w", err)
	}
	if err := s.emotion.Close(); err != nil {
		return fmt.Errorf("a2f: close emotion accumulator: %w", err)
	}
	return nil
}

// Start attaches the session to a connection and assigns a fresh id.
func (s *Session) Start(sender FrameSender) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
	u := uuid.New()
	s.sessionID = hex.EncodeToString(u[:])
	s.clearPendingLocked()
	s.nextFrameIndex = 0
	return s.sessionID
}

// Stop detaches the session from its connection. An in-flight PushAudio
// observes the nil sender and goes quiet.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = nil
}

// SessionID returns the id assigned by the last Start.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// DescribeSessionStarted reports the session's fixed configuration as
// the SessionStarted reply.
func (s *Session) DescribeSessionStarted() *SessionStarted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &SessionStarted{
		Type:      TypeSessionStarted,
		Protocol:  ProtocolInfo{Version: ProtocolVersion},
		SessionID: s.sessionID,
		Model:     s.model,
		Options: SessionOptions{
			UseGpuSolver:    s.useGpuSolver,
			ExecutionOption: s.execution,
		},
		SamplingRate: s.samplingRate,
		FrameRate:    FrameRate{Numerator: s.fpsNum, Denominator: s.fpsDen},
		WeightCount:  s.weightCount,
		Channels:     append([]string(nil), s.channels...),
		ChannelGroups: []ChannelGroup{
			{Name: "skin", Count: s.skinCount},
			{Name: "tongue", Count: s.tongueCount},
		},
	}
}

// PushAudio feeds one chunk of 16-bit PCM at an absolute sample position
// into the accumulator, drives the executor until nothing is ready, and
// flushes produced frames to the client. A gap between the accumulator
// end and startSample is zero-filled. On failure an Error message goes
// to the client and false is returned; the connection stays usable.
func (s *Session) PushAudio(startSample int64, pcmBytes []byte) bool {
	if startSample < 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.sendErrorLocked(kindValidation, "startSampleIndex must be >= 0")
		return false
	}

	// Goroutines migrate between OS threads; re-assert device affinity
	// before any call that may touch device memory.
	if err := s.provider.UseDevice(s.device); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.sendErrorLocked(kindEngine, fmt.Sprintf("Failed to set CUDA device: %v", err))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sender == nil {
		return false
	}
	if s.bundle == nil {
		s.sendErrorLocked(kindEngine, "Internal error: missing executor bundle")
		return false
	}

	accumulated, err := s.audio.AccumulatedSamples()
	if err != nil {
		s.sendErrorLocked(kindEngine, fmt.Sprintf("Failed to accumulate audio: %v", err))
		return false
	}
	if startSample < accumulated {
		s.sendErrorLocked(kindAudioOrder, "PushAudio startSampleIndex is behind the accumulator (out-of-order audio)")
		return false
	}

	gap := startSample - accumulated
	if gap > maxAudioGapSamples {
		s.sendErrorLocked(kindAudioOrder, "Audio gap too large")
		return false
	}

	if gap > 0 {
		if cap(s.scratch) < int(gap) {
			s.scratch = make([]float32, gap)
		}
		s.scratch = s.scratch[:gap]
		clear(s.scratch)
		if err := s.audio.Accumulate(s.scratch); err != nil {
			s.sendErrorLocked(kindEngine, fmt.Sprintf("Failed to fill audio gap: %v", err))
			return false
		}
	}

	s.scratch = pcm.ToFloat32(s.scratch, pcmBytes)
	if err := s.audio.Accumulate(s.scratch); err != nil {
		s.sendErrorLocked(kindEngine, fmt.Sprintf("Failed to accumulate audio: %v", err))
		return false
	}
	audioSamplesTotal.Add(float64(gap) + float64(len(s.scratch)))

	for {
		ready, err := s.executor.ReadyTracks()
		if err != nil {
			s.sendErrorLocked(kindEngine, fmt.Sprintf("Execute() failed: %v", err))
			return false
		}
		if ready == 0 {
			break
		}
		if err := s.executor.Execute(); err != nil {
			s.sendErrorLocked(kindEngine, fmt.Sprintf("Execute() failed: %v", err))
			return false
		}
		if len(s.pending) >= flushThresholdFrames {
			if !s.flushPendingLocked() {
				return false
			}
		}
	}

	if !s.flushPendingLocked() {
		return false
	}

	// Drop consumed audio and emotion to bound accumulator memory.
	if next, err := s.executor.NextAudioSampleToRead(0); err == nil {
		_ = s.audio.DropSamplesBefore(next)
	}
	if next, err := s.executor.NextEmotionTimestampToRead(0); err == nil {
		_ = s.emotion.DropEmotionsBefore(next)
	}

	return true
}

// onDeviceResults stages one produced frame: it queues an async copy of
// the device weights into the next staging slot and records the frame
// metadata. Runs without locking; see the Session comment.
func (s *Session) onDeviceResults(r engine.DeviceResults) bool {
	if s.sender == nil {
		return false
	}
	n := r.Weights.Len()
	if n == 0 {
		return true
	}
	if n != s.weightCount {
		s.sendErrorLocked(kindEngine, "Unexpected weight vector size from executor")
		return false
	}
	if len(s.pending) >= maxStagedFrames {
		s.sendErrorLocked(kindCapacity, "Too many pending frames (client too slow?)")
		return false
	}

	slot := len(s.pending)
	dst := s.staging.Floats()[slot*s.weightCount : (slot+1)*s.weightCount]
	if err := r.Weights.CopyToHostAsync(dst, r.Stream); err != nil {
		s.sendErrorLocked(kindEngine, fmt.Sprintf("CopyDeviceToHost failed: %v", err))
		return false
	}

	s.lastStream = r.Stream
	s.pending = append(s.pending, pendingFrame{
		frameIndex: s.nextFrameIndex,
		tsCurrent:  r.TsCurrent,
		tsNext:     r.TsNext,
		slot:       slot,
	})
	s.nextFrameIndex++
	pendingFrames.Inc()
	return true
}

// flushPendingLocked synchronizes the producing stream, then encodes and
// sends every staged frame in order. A send failure returns false
// without an Error message; the read loop notices the dead connection.
func (s *Session) flushPendingLocked() bool {
	if len(s.pending) == 0 {
		return true
	}
	if s.lastStream == nil {
		s.sendErrorLocked(kindEngine, "Internal error: no CUDA stream associated with pending frames")
		return false
	}

	start := time.Now()
	if err := s.bundle.Stream().Synchronize(); err != nil {
		s.sendErrorLocked(kindEngine, fmt.Sprintf("CUDA stream synchronization failed: %v", err))
		return false
	}

	floats := s.staging.Floats()
	for _, f := range s.pending {
		weights := floats[f.slot*s.weightCount : (f.slot+1)*s.weightCount]
		s.frameBuf = AppendAnimationFrame(s.frameBuf[:0], AnimationHeader{
			FrameIndex: f.frameIndex,
			TsCurrent:  f.tsCurrent,
			TsNext:     f.tsNext,
		}, weights)
		if s.sender.WriteFrame(ws0.OpBinary, s.frameBuf) != nil {
			return false
		}
		framesSentTotal.Inc()
	}
	flushDuration.Observe(time.Since(start).Seconds())

	s.clearPendingLocked()
	return true
}

func (s *Session) clearPendingLocked() {
	if n := len(s.pending); n > 0 {
		pendingFrames.Sub(float64(n))
		s.pending = s.pending[:0]
	}
}

// sendErrorLocked reports a failure to the client on a best-effort
// basis.
func (s *Session) sendErrorLocked(kind, message string) {
	if s.sender == nil {
		return
	}
	clientErrorsTotal.WithLabelValues(kind).Inc()
	payload, err := json.Marshal(&ErrorMessage{Type: TypeError, Message: message})
	if err != nil {
		return
	}
	_ = s.sender.WriteFrame(ws0.OpText, payload)
}
