// gpu_backend_test.go - backend selection (C1 §4.1)

package svrcore

import (
	"context"
	"testing"
)

// TestNewBackendUsable exercises the Vulkan-primary/headless-fallback
// selection path: whichever backend NewBackend hands back (there is no
// Vulkan-capable device in CI, so this always lands on the headless
// fallback there) must be immediately usable, the same contract a host
// relies on.
func TestNewBackendUsable(t *testing.T) {
	backend := NewBackend(nopLogger{})
	if backend == nil {
		t.Fatal("NewBackend returned nil")
	}
	defer backend.Close()

	tex, err := backend.CreateTexture(context.Background(), TextureDesc{
		Width: 4, Height: 4, Format: FormatBGRA8, ViewAccess: ViewSRV,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	w, h, _ := backend.GetTextureSize(tex)
	if w != 4 || h != 4 {
		t.Errorf("GetTextureSize = %d,%d, want 4,4", w, h)
	}
}

// TestNewBackendNilLoggerSafe checks the nil-logger convenience the rest of
// the package relies on (e.g. Core.Initialize's callers that skip logging).
func TestNewBackendNilLoggerSafe(t *testing.T) {
	backend := NewBackend(nil)
	if backend == nil {
		t.Fatal("NewBackend(nil) returned nil")
	}
	backend.Close()
}
