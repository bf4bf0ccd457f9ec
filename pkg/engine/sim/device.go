package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/visagekit/visage/pkg/engine"
)

// stream queues copy operations and applies them on Synchronize, so code
// that reads a destination before synchronizing observes stale data just
// as it would on real hardware.
type stream struct {
	mu      sync.Mutex
	pending []func()
}

func (s *stream) Synchronize() error {
	s.mu.Lock()
	ops := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, op := range ops {
		op()
	}
	return nil
}

func (s *stream) enqueue(op func()) {
	s.mu.Lock()
	s.pending = append(s.pending, op)
	s.mu.Unlock()
}

type deviceView struct {
	data []float32
}

func (v *deviceView) Len() int { return len(v.data) }

func (v *deviceView) CopyToHostAsync(dst []float32, es engine.Stream) error {
	s, ok := es.(*stream)
	if !ok {
		return errors.New("sim: stream belongs to another engine")
	}
	if len(dst) < len(v.data) {
		return fmt.Errorf("sim: host destination holds %d floats, view has %d", len(dst), len(v.data))
	}
	src := v.data
	s.enqueue(func() { copy(dst, src) })
	return nil
}

type hostBuffer struct {
	mu    sync.Mutex
	buf   []float32
	freed bool
}

func (b *hostBuffer) Floats() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}

func (b *hostBuffer) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return errors.New("sim: host buffer already freed")
	}
	b.freed = true
	b.buf = nil
	return nil
}
