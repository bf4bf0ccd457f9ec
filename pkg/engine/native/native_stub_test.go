//go:build !cuda

package native

import (
	"errors"
	"testing"

	"github.com/visagekit/visage/pkg/engine"
)

func TestStubFailsFast(t *testing.T) {
	p := New()
	if err := p.UseDevice(0); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("UseDevice error = %v, want ErrNotBuilt", err)
	}
	if _, err := p.NewBundle(engine.BundleConfig{ModelPath: "models/x"}); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("NewBundle error = %v, want ErrNotBuilt", err)
	}
}
