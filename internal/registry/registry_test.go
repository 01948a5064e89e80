package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/session"
)

func TestRegistry_ResolveMemoizes(t *testing.T) {
	reg := New(config.Default(), nil, nil)

	first, err := reg.Resolve(config.PlatformBilibili)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := reg.Resolve(config.PlatformBilibili)
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if first != second {
		t.Error("expected the same session instance for repeated resolves")
	}
	if reg.Active() != 1 {
		t.Errorf("expected 1 cached session, got %d", reg.Active())
	}
}

func TestRegistry_ResolveAllSupported(t *testing.T) {
	cfg := config.Default()
	reg := New(cfg, nil, nil)

	for _, name := range cfg.Supported() {
		s, err := reg.Resolve(name)
		if err != nil {
			t.Errorf("Resolve(%q) failed: %v", name, err)
			continue
		}
		if s.Platform() != name {
			t.Errorf("session reports platform %q, want %q", s.Platform(), name)
		}
	}
	if reg.Active() != len(cfg.Supported()) {
		t.Errorf("expected %d cached sessions, got %d", len(cfg.Supported()), reg.Active())
	}
}

func TestRegistry_ResolveUnsupported(t *testing.T) {
	reg := New(config.Default(), nil, nil)

	_, err := reg.Resolve("foo")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
	if reg.Active() != 0 {
		t.Errorf("failed resolve must not cache anything, got %d", reg.Active())
	}
}

func TestRegistry_DisposeAll(t *testing.T) {
	reg := New(config.Default(), nil, nil)
	ctx := context.Background()

	a, _ := reg.Resolve(config.PlatformZhihu)
	b, _ := reg.Resolve(config.PlatformTieba)

	reg.DisposeAll(ctx)
	if reg.Active() != 0 {
		t.Errorf("expected empty cache after DisposeAll, got %d", reg.Active())
	}

	// disposed sessions are closed; never-initialized ones close cleanly
	if sa, ok := a.(*session.Session); ok && sa.State() != session.StateClosed {
		t.Errorf("expected zhihu session closed, got %s", sa.State())
	}
	if sb, ok := b.(*session.Session); ok && sb.State() != session.StateClosed {
		t.Errorf("expected tieba session closed, got %s", sb.State())
	}

	// disposing twice is harmless
	reg.DisposeAll(ctx)

	// the registry can be reused after disposal
	fresh, err := reg.Resolve(config.PlatformZhihu)
	if err != nil {
		t.Fatalf("Resolve after DisposeAll failed: %v", err)
	}
	if fresh == a {
		t.Error("expected a fresh session after disposal")
	}
}
