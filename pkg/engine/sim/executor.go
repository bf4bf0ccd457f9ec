package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/visagekit/visage/pkg/engine"
)

type track struct {
	audio   *audioAccumulator
	emotion *emotionAccumulator

	nextFrame int64
	primed    bool
	cancelled bool
}

// executor paces frames against the absolute sample clock. Frame f covers
// the window [start(f), start(f+1)) where start(f) = f*rate*den/num; it
// becomes ready once its window is fully accumulated, one frame later for
// diffusion bundles, or as a clipped tail once the stream is closed.
type executor struct {
	mu sync.Mutex

	sampleRate  int
	fpsNum      int
	fpsDen      int
	weightCount int
	diffusion   bool
	noise       *rand.Rand

	tracks []*track
	stream *stream
	cb     engine.ResultsFunc
}

func (e *executor) ResultType() engine.ResultType { return engine.ResultDevice }

func (e *executor) SetResultsCallback(fn engine.ResultsFunc) {
	e.mu.Lock()
	e.cb = fn
	e.mu.Unlock()
}

func (e *executor) SamplingRate() (int, error) { return e.sampleRate, nil }

func (e *executor) FrameRate() (num, den int, err error) { return e.fpsNum, e.fpsDen, nil }

func (e *executor) WeightCount() (int, error) { return e.weightCount, nil }

func (e *executor) track(i int) (*track, error) {
	if i < 0 || i >= len(e.tracks) {
		return nil, fmt.Errorf("sim: no track %d", i)
	}
	return e.tracks[i], nil
}

// Wait is trivial: the sim engine runs inference inline during Execute,
// so there is never in-flight work to drain.
func (e *executor) Wait(track int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.track(track)
	return err
}

func (e *executor) Reset(track int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.track(track)
	if err != nil {
		return err
	}
	t.nextFrame = 0
	t.primed = false
	t.cancelled = false
	return nil
}

func (e *executor) ReadyTracks() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.tracks {
		if e.ready(t) {
			n++
		}
	}
	return n, nil
}

func (e *executor) NextAudioSampleToRead(track int) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.track(track)
	if err != nil {
		return 0, err
	}
	return e.sampleStart(t.nextFrame), nil
}

// NextEmotionTimestampToRead shares the audio sample clock: emotions are
// keyed by the sample index they take effect at.
func (e *executor) NextEmotionTimestampToRead(track int) (int64, error) {
	return e.NextAudioSampleToRead(track)
}

func (e *executor) sampleStart(frame int64) int64 {
	return frame * int64(e.sampleRate) * int64(e.fpsDen) / int64(e.fpsNum)
}

func (e *executor) ready(t *track) bool {
	if t.cancelled {
		return false
	}
	total, closed := t.audio.snapshot()
	if closed {
		return e.sampleStart(t.nextFrame) < total
	}
	lookahead := int64(1)
	if e.diffusion {
		lookahead = 2
	}
	return e.sampleStart(t.nextFrame+lookahead) <= total
}

// Execute drains every ready frame on every track, invoking the results
// callback once per frame. A callback returning false cancels the track
// until Reset.
func (e *executor) Execute() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, t := range e.tracks {
		if !e.ready(t) {
			continue
		}
		if e.cb == nil {
			return errors.New("sim: no results callback registered")
		}
		if e.diffusion && !t.primed {
			t.primed = true
			if !e.cb(engine.DeviceResults{Track: i, Weights: &deviceView{}, Stream: e.stream}) {
				t.cancelled = true
				continue
			}
		}
		for e.ready(t) {
			f := t.nextFrame
			start, end := e.sampleStart(f), e.sampleStart(f+1)
			total, _ := t.audio.snapshot()
			window, err := t.audio.slice(start, min(end, total))
			if err != nil {
				return fmt.Errorf("sim: frame %d window: %w", f, err)
			}
			weights := e.synthesize(f, window, t.emotion.valueAt(start))
			t.nextFrame++
			ok := e.cb(engine.DeviceResults{
				Track:     i,
				Weights:   &deviceView{data: weights},
				Stream:    e.stream,
				TsCurrent: start,
				TsNext:    end,
			})
			if !ok {
				t.cancelled = true
				break
			}
		}
	}
	return nil
}

func (e *executor) synthesize(frame int64, window, emotion []float32) []float32 {
	bias := 0.0
	if len(emotion) > 0 {
		var sum float64
		for _, v := range emotion {
			sum += float64(v)
		}
		bias = 0.1 * sum / float64(len(emotion))
	}
	env := math.Min(1, 8*rms(window)+bias)
	w := make([]float32, e.weightCount)
	for i := range w {
		v := env * (0.5 + 0.5*math.Sin(0.13*float64(frame)+0.71*float64(i)))
		if e.noise != nil {
			v += (e.noise.Float64() - 0.5) * 0.05 * env
		}
		w[i] = float32(math.Max(0, math.Min(1, v)))
	}
	return w
}

func rms(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}
