package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/visagekit/visage/pkg/engine"
)

// SampleRate is the audio rate the sim model consumes.
const SampleRate = 16000

// Provider manufactures sim bundles. The zero device is always present;
// any non-negative ordinal is accepted so multi-device configurations can
// be exercised without hardware.
type Provider struct {
	mu     sync.Mutex
	device int
}

// New returns a sim provider.
func New() *Provider {
	return &Provider{device: -1}
}

// UseDevice records the accelerator ordinal for the calling thread. The
// sim engine has no real device state, so this only validates the ordinal.
func (p *Provider) UseDevice(device int) error {
	if device < 0 {
		return fmt.Errorf("sim: invalid device ordinal %d", device)
	}
	p.mu.Lock()
	p.device = device
	p.mu.Unlock()
	return nil
}

// NewBundle builds a single-track bundle for cfg.
func (p *Provider) NewBundle(cfg engine.BundleConfig) (engine.Bundle, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("sim: empty model path")
	}
	if !cfg.Execution.SolvesSkin() && !cfg.Execution.SolvesTongue() {
		return nil, errors.New("sim: execution option solves no output surface")
	}
	num, den := cfg.FPSNum, cfg.FPSDen
	if num == 0 {
		num, den = 60, 1
	}
	if den == 0 {
		den = 1
	}
	if num < 0 || den < 0 {
		return nil, fmt.Errorf("sim: invalid frame rate %d/%d", cfg.FPSNum, cfg.FPSDen)
	}
	return newBundle(cfg, num, den), nil
}
