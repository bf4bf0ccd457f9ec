//go:build !cuda

package native

import "github.com/visagekit/visage/pkg/engine"

// Provider is a stub that satisfies engine.Provider but refuses to build
// bundles without the cuda tag. Production binaries built without the
// runtime fail fast instead of mocking inference.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (*Provider) UseDevice(device int) error { return ErrNotBuilt }

func (*Provider) NewBundle(cfg engine.BundleConfig) (engine.Bundle, error) {
	return nil, ErrNotBuilt
}
