package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/visagekit/visage/pkg/buffer"
)

type audioAccumulator struct {
	mu     sync.Mutex
	win    *buffer.Window[float32]
	closed bool
}

func newAudioAccumulator() *audioAccumulator {
	return &audioAccumulator{win: buffer.NewWindow[float32](SampleRate)}
}

func (a *audioAccumulator) Accumulate(samples []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("sim: audio accumulator closed")
	}
	a.win.Append(samples)
	return nil
}

func (a *audioAccumulator) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

func (a *audioAccumulator) Reset() error {
	a.mu.Lock()
	a.win.Reset()
	a.closed = false
	a.mu.Unlock()
	return nil
}

func (a *audioAccumulator) AccumulatedSamples() (int64, error) {
	return a.win.Total(), nil
}

func (a *audioAccumulator) DropSamplesBefore(sample int64) error {
	a.win.DropBefore(sample)
	return nil
}

// snapshot returns the absolute sample count and whether the stream has
// been closed, as one consistent view for the executor's readiness check.
func (a *audioAccumulator) snapshot() (total int64, closed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.win.Total(), a.closed
}

func (a *audioAccumulator) slice(from, to int64) ([]float32, error) {
	return a.win.Slice(from, to)
}

type emotionEntry struct {
	ts     int64
	values []float32
}

type emotionAccumulator struct {
	mu      sync.Mutex
	width   int
	entries []emotionEntry
	// current is the newest entry folded out by DropEmotionsBefore; it
	// stays the baseline for timestamps that precede all live entries.
	current []float32
	closed  bool
}

func newEmotionAccumulator(width int) *emotionAccumulator {
	return &emotionAccumulator{width: width}
}

func (a *emotionAccumulator) Width() int { return a.width }

func (a *emotionAccumulator) Accumulate(ts int64, values []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("sim: emotion accumulator closed")
	}
	if len(values) != a.width {
		return fmt.Errorf("sim: emotion vector has %d values, want %d", len(values), a.width)
	}
	if n := len(a.entries); n > 0 && ts < a.entries[n-1].ts {
		return fmt.Errorf("sim: emotion timestamp %d regressed below %d", ts, a.entries[n-1].ts)
	}
	a.entries = append(a.entries, emotionEntry{ts: ts, values: append([]float32(nil), values...)})
	return nil
}

func (a *emotionAccumulator) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

func (a *emotionAccumulator) Reset() error {
	a.mu.Lock()
	a.entries = nil
	a.current = nil
	a.closed = false
	a.mu.Unlock()
	return nil
}

func (a *emotionAccumulator) DropEmotionsBefore(ts int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for n < len(a.entries) && a.entries[n].ts < ts {
		n++
	}
	if n > 0 {
		a.current = a.entries[n-1].values
		a.entries = append(a.entries[:0], a.entries[n:]...)
	}
	return nil
}

// valueAt returns the emotion vector in effect at ts, or nil when nothing
// has been accumulated yet.
func (a *emotionAccumulator) valueAt(ts int64) []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := a.current
	for _, e := range a.entries {
		if e.ts > ts {
			break
		}
		v = e.values
	}
	return v
}
