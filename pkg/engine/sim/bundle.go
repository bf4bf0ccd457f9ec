package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/visagekit/visage/pkg/engine"
)

var (
	skinChannels = []string{
		"browDown_L", "browDown_R",
		"eyeBlink_L", "eyeBlink_R",
		"jawOpen", "mouthFunnel",
		"mouthSmile_L", "mouthSmile_R",
	}
	tongueChannels = []string{"tongueOut", "tongueUp"}
)

// emotionWidth is the dimension of the emotion vectors the sim model takes.
const emotionWidth = 10

type bundle struct {
	mu        sync.Mutex
	destroyed bool

	cfg    engine.BundleConfig
	skin   []string
	tongue []string

	exec   *executor
	tracks []*track
	stream *stream
}

func newBundle(cfg engine.BundleConfig, fpsNum, fpsDen int) *bundle {
	var skin, tongue []string
	if cfg.Execution.SolvesSkin() {
		skin = skinChannels
	}
	if cfg.Execution.SolvesTongue() {
		tongue = tongueChannels
	}
	tr := &track{
		audio:   newAudioAccumulator(),
		emotion: newEmotionAccumulator(emotionWidth),
	}
	b := &bundle{
		cfg:    cfg,
		skin:   skin,
		tongue: tongue,
		tracks: []*track{tr},
		stream: &stream{},
	}
	var noise *rand.Rand
	if cfg.Diffusion {
		s1, s2 := uint64(1), uint64(cfg.Identity)+2
		if !cfg.ConstantNoise {
			s1, s2 = rand.Uint64(), rand.Uint64()
		}
		noise = rand.New(rand.NewPCG(s1, s2))
	}
	b.exec = &executor{
		sampleRate:  SampleRate,
		fpsNum:      fpsNum,
		fpsDen:      fpsDen,
		weightCount: len(skin) + len(tongue),
		diffusion:   cfg.Diffusion,
		noise:       noise,
		tracks:      b.tracks,
		stream:      b.stream,
	}
	return b
}

func (b *bundle) Executor() engine.Executor { return b.exec }

func (b *bundle) AudioAccumulator(track int) engine.AudioAccumulator {
	if track < 0 || track >= len(b.tracks) {
		return nil
	}
	return b.tracks[track].audio
}

func (b *bundle) EmotionAccumulator(track int) engine.EmotionAccumulator {
	if track < 0 || track >= len(b.tracks) {
		return nil
	}
	return b.tracks[track].emotion
}

func (b *bundle) Stream() engine.Stream { return b.stream }

func (b *bundle) Channels() (skin, tongue []string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, nil, errors.New("sim: bundle destroyed")
	}
	skin = append([]string(nil), b.skin...)
	tongue = append([]string(nil), b.tongue...)
	return skin, tongue, nil
}

func (b *bundle) NewHostBuffer(n int) (engine.HostBuffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sim: invalid host buffer size %d", n)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, errors.New("sim: bundle destroyed")
	}
	return &hostBuffer{buf: make([]float32, n)}, nil
}

func (b *bundle) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return errors.New("sim: bundle already destroyed")
	}
	b.destroyed = true
	b.exec.SetResultsCallback(nil)
	return nil
}
