//go:build cuda

package native

/*
#cgo LDFLAGS: -lva2f

#include <stdlib.h>
#include "va2f.h"

extern int visageResultsBridge(uintptr_t userdata, int track,
                               float* weights, int64_t weight_count,
                               int64_t ts_current, int64_t ts_next);

static void va2f_install_results_bridge(va2f_bundle* b, uintptr_t userdata) {
	va2f_set_results_callback(b, (va2f_results_fn)visageResultsBridge, userdata);
}

static void va2f_clear_results_bridge(va2f_bundle* b) {
	va2f_set_results_callback(b, 0, 0);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/visagekit/visage/pkg/engine"
)

func lastError(op string) error {
	msg := C.GoString(C.va2f_last_error())
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Errorf("native: %s: %s", op, msg)
}

func cbool(v bool) C.int {
	if v {
		return 1
	}
	return 0
}

// Provider builds bundles on the accelerator runtime.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (*Provider) UseDevice(device int) error {
	if rc := C.va2f_set_cuda_device(C.int(device)); rc != 0 {
		return lastError("set cuda device")
	}
	return nil
}

func (*Provider) NewBundle(cfg engine.BundleConfig) (engine.Bundle, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("native: empty model path")
	}
	cpath := C.CString(cfg.ModelPath)
	defer C.free(unsafe.Pointer(cpath))
	ccfg := C.va2f_config{
		model_path:     cpath,
		device:         C.int(cfg.Device),
		diffusion:      cbool(cfg.Diffusion),
		identity:       C.int(cfg.Identity),
		constant_noise: cbool(cfg.ConstantNoise),
		solve_skin:     cbool(cfg.Execution.SolvesSkin()),
		solve_tongue:   cbool(cfg.Execution.SolvesTongue()),
		fps_num:        C.int(cfg.FPSNum),
		fps_den:        C.int(cfg.FPSDen),
	}
	var raw *C.va2f_bundle
	if rc := C.va2f_bundle_create(&ccfg, &raw); rc != 0 || raw == nil {
		return nil, lastError("create bundle")
	}
	st := &stream{raw: C.va2f_bundle_stream(raw)}
	return &bundle{
		raw:    raw,
		exec:   &executor{raw: raw, stream: st},
		stream: st,
	}, nil
}

type bundle struct {
	mu        sync.Mutex
	destroyed bool

	raw    *C.va2f_bundle
	exec   *executor
	stream *stream
}

func (b *bundle) Executor() engine.Executor { return b.exec }

func (b *bundle) AudioAccumulator(track int) engine.AudioAccumulator {
	return &audioAccumulator{raw: b.raw, track: C.int(track)}
}

func (b *bundle) EmotionAccumulator(track int) engine.EmotionAccumulator {
	return &emotionAccumulator{
		raw:   b.raw,
		track: C.int(track),
		width: int(C.va2f_emotion_width(b.raw)),
	}
}

func (b *bundle) Stream() engine.Stream { return b.stream }

func (b *bundle) Channels() (skin, tongue []string, err error) {
	if skin, err = b.surfaceNames(C.VA2F_SURFACE_SKIN); err != nil {
		return nil, nil, err
	}
	if tongue, err = b.surfaceNames(C.VA2F_SURFACE_TONGUE); err != nil {
		return nil, nil, err
	}
	return skin, tongue, nil
}

func (b *bundle) surfaceNames(surface C.int) ([]string, error) {
	n := C.va2f_channel_count(b.raw, surface)
	if n < 0 {
		return nil, lastError("channel count")
	}
	names := make([]string, 0, int(n))
	for i := C.int(0); i < n; i++ {
		p := C.va2f_channel_name(b.raw, surface, i)
		if p == nil {
			return nil, lastError("channel name")
		}
		names = append(names, C.GoString(p))
	}
	return names, nil
}

func (b *bundle) NewHostBuffer(n int) (engine.HostBuffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("native: invalid host buffer size %d", n)
	}
	p := C.va2f_alloc_host_pinned(C.int64_t(n))
	if p == nil {
		return nil, lastError("alloc pinned host buffer")
	}
	return &hostBuffer{ptr: p, n: n}, nil
}

func (b *bundle) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return errors.New("native: bundle already destroyed")
	}
	b.destroyed = true
	b.exec.SetResultsCallback(nil)
	C.va2f_bundle_destroy(b.raw)
	b.raw = nil
	return nil
}

type executor struct {
	mu     sync.Mutex
	fn     engine.ResultsFunc
	handle cgo.Handle

	raw    *C.va2f_bundle
	stream *stream
}

func (e *executor) ResultType() engine.ResultType { return engine.ResultDevice }

func (e *executor) SetResultsCallback(fn engine.ResultsFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		if e.handle != 0 {
			C.va2f_clear_results_bridge(e.raw)
			e.handle.Delete()
			e.handle = 0
		}
		e.fn = nil
		return
	}
	e.fn = fn
	if e.handle == 0 {
		e.handle = cgo.NewHandle(e)
		C.va2f_install_results_bridge(e.raw, C.uintptr_t(e.handle))
	}
}

func (e *executor) callback() engine.ResultsFunc {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fn
}

func (e *executor) SamplingRate() (int, error) {
	n := C.va2f_sampling_rate(e.raw)
	if n <= 0 {
		return 0, lastError("sampling rate")
	}
	return int(n), nil
}

func (e *executor) FrameRate() (num, den int, err error) {
	var cn, cd C.int
	if rc := C.va2f_frame_rate(e.raw, &cn, &cd); rc != 0 {
		return 0, 0, lastError("frame rate")
	}
	return int(cn), int(cd), nil
}

func (e *executor) WeightCount() (int, error) {
	n := C.va2f_weight_count(e.raw)
	if n < 0 {
		return 0, lastError("weight count")
	}
	return int(n), nil
}

func (e *executor) Wait(track int) error {
	if rc := C.va2f_wait(e.raw, C.int(track)); rc != 0 {
		return lastError("wait")
	}
	return nil
}

func (e *executor) Reset(track int) error {
	if rc := C.va2f_reset(e.raw, C.int(track)); rc != 0 {
		return lastError("reset")
	}
	return nil
}

func (e *executor) ReadyTracks() (int, error) {
	n := C.va2f_ready_tracks(e.raw)
	if n < 0 {
		return 0, lastError("ready tracks")
	}
	return int(n), nil
}

func (e *executor) Execute() error {
	if rc := C.va2f_execute(e.raw); rc != 0 {
		return lastError("execute")
	}
	return nil
}

func (e *executor) NextAudioSampleToRead(track int) (int64, error) {
	n := C.va2f_next_audio_sample(e.raw, C.int(track))
	if n < 0 {
		return 0, lastError("next audio sample")
	}
	return int64(n), nil
}

func (e *executor) NextEmotionTimestampToRead(track int) (int64, error) {
	n := C.va2f_next_emotion_ts(e.raw, C.int(track))
	if n < 0 {
		return 0, lastError("next emotion timestamp")
	}
	return int64(n), nil
}

type audioAccumulator struct {
	raw   *C.va2f_bundle
	track C.int
}

func (a *audioAccumulator) Accumulate(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	rc := C.va2f_accumulate_audio(a.raw, a.track,
		(*C.float)(unsafe.Pointer(&samples[0])), C.int64_t(len(samples)))
	if rc != 0 {
		return lastError("accumulate audio")
	}
	return nil
}

func (a *audioAccumulator) Close() error {
	if rc := C.va2f_close_audio(a.raw, a.track); rc != 0 {
		return lastError("close audio")
	}
	return nil
}

func (a *audioAccumulator) Reset() error {
	if rc := C.va2f_reset_audio(a.raw, a.track); rc != 0 {
		return lastError("reset audio")
	}
	return nil
}

func (a *audioAccumulator) AccumulatedSamples() (int64, error) {
	n := C.va2f_accumulated_samples(a.raw, a.track)
	if n < 0 {
		return 0, lastError("accumulated samples")
	}
	return int64(n), nil
}

func (a *audioAccumulator) DropSamplesBefore(sample int64) error {
	if rc := C.va2f_drop_audio_before(a.raw, a.track, C.int64_t(sample)); rc != 0 {
		return lastError("drop audio")
	}
	return nil
}

type emotionAccumulator struct {
	raw   *C.va2f_bundle
	track C.int
	width int
}

func (a *emotionAccumulator) Width() int { return a.width }

func (a *emotionAccumulator) Accumulate(ts int64, values []float32) error {
	if len(values) != a.width {
		return fmt.Errorf("native: emotion vector has %d values, want %d", len(values), a.width)
	}
	rc := C.va2f_accumulate_emotion(a.raw, a.track, C.int64_t(ts),
		(*C.float)(unsafe.Pointer(&values[0])), C.int(len(values)))
	if rc != 0 {
		return lastError("accumulate emotion")
	}
	return nil
}

func (a *emotionAccumulator) Close() error {
	if rc := C.va2f_close_emotion(a.raw, a.track); rc != 0 {
		return lastError("close emotion")
	}
	return nil
}

func (a *emotionAccumulator) Reset() error {
	if rc := C.va2f_reset_emotion(a.raw, a.track); rc != 0 {
		return lastError("reset emotion")
	}
	return nil
}

func (a *emotionAccumulator) DropEmotionsBefore(ts int64) error {
	if rc := C.va2f_drop_emotion_before(a.raw, a.track, C.int64_t(ts)); rc != 0 {
		return lastError("drop emotion")
	}
	return nil
}

type deviceView struct {
	ptr *C.float
	n   int
}

func (v *deviceView) Len() int { return v.n }

// CopyToHostAsync requires dst to view pinned memory from NewHostBuffer;
// the copy completes only once the stream is synchronized.
func (v *deviceView) CopyToHostAsync(dst []float32, es engine.Stream) error {
	s, ok := es.(*stream)
	if !ok {
		return errors.New("native: stream belongs to another engine")
	}
	if len(dst) < v.n {
		return fmt.Errorf("native: host destination holds %d floats, view has %d", len(dst), v.n)
	}
	if v.n == 0 {
		return nil
	}
	rc := C.va2f_copy_device_to_host_async(v.ptr,
		(*C.float)(unsafe.Pointer(&dst[0])), C.int64_t(v.n), s.raw)
	if rc != 0 {
		return lastError("copy device to host")
	}
	return nil
}

type stream struct {
	raw *C.va2f_stream
}

func (s *stream) Synchronize() error {
	if rc := C.va2f_stream_synchronize(s.raw); rc != 0 {
		return lastError("stream synchronize")
	}
	return nil
}

type hostBuffer struct {
	mu  sync.Mutex
	ptr *C.float
	n   int
}

func (b *hostBuffer) Floats() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(b.ptr)), b.n)
}

func (b *hostBuffer) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ptr == nil {
		return errors.New("native: host buffer already freed")
	}
	C.va2f_free_host_pinned(b.ptr)
	b.ptr = nil
	return nil
}
