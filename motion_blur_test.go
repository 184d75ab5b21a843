// motion_blur_test.go - Motion-Blur Engine (C4 §4.4), §8 partition-of-unity invariant.

package svrcore

import (
	"context"
	"testing"
)

// accumWeightBackend wraps gpuHeadlessBackend and records every weight
// passed to MotionSample so the partition-of-unity invariant (§8.3: the
// weights accumulated between two emitted frames sum to 1) can be checked
// directly, independent of the downsample/pack rounding the real pixel path
// would introduce.
type accumWeightBackend struct {
	GPUBackend
	weights []float64
}

func (b *accumWeightBackend) MotionSample(ctx context.Context, work, src *Texture, weight float32, clear bool) error {
	b.weights = append(b.weights, float64(weight))
	return b.GPUBackend.MotionSample(ctx, work, src, weight, clear)
}

func TestMotionBlurPartitionOfUnity(t *testing.T) {
	ctx := context.Background()
	backend := &accumWeightBackend{GPUBackend: NewHeadlessBackend()}

	output, err := backend.CreateTexture(ctx, TextureDesc{Width: 4, Height: 4, Format: FormatBGRA8, ViewAccess: ViewSRV | ViewRTV})
	if err != nil {
		t.Fatalf("create output: %v", err)
	}
	src, err := backend.CreateTexture(ctx, TextureDesc{Width: 4, Height: 4, Format: FormatBGRA8, ViewAccess: ViewSRV})
	if err != nil {
		t.Fatalf("create src: %v", err)
	}

	p := &Profile{MotionBlurMultiplier: 8, MotionBlurExposure: 0.5}
	engine, err := NewMotionBlurEngine(ctx, backend, nil, 4, 4, output, p)
	if err != nil {
		t.Fatalf("NewMotionBlurEngine: %v", err)
	}
	defer engine.Close()

	var emitted int
	emit := func(ctx context.Context) error { emitted++; return nil }

	const windows = 10
	for i := 0; i < windows*8; i++ {
		if err := engine.Tick(ctx, src, emit); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if emitted != windows {
		t.Fatalf("emitted = %d, want %d", emitted, windows)
	}

	// Every exposure window's weights (bounded by the frames at which the
	// window closed) must sum to 1. The engine always accumulates nonzero
	// weight at least once per window (exposure=0.5 opens halfway through
	// an 8-tick window), so len(weights) == windows*4 (ticks 5..8 of each
	// 8-tick window fall inside the exposure).
	if len(backend.weights)%windows != 0 {
		t.Fatalf("weights not evenly distributed across windows: %d total", len(backend.weights))
	}
	perWindow := len(backend.weights) / windows
	for w := 0; w < windows; w++ {
		sum := 0.0
		for _, v := range backend.weights[w*perWindow : (w+1)*perWindow] {
			sum += v
		}
		if diff := sum - 1; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("window %d: weight sum = %v, want 1", w, sum)
		}
	}
}

func TestMotionBlurZeroExposureStillEmits(t *testing.T) {
	ctx := context.Background()
	backend := NewHeadlessBackend()
	output, _ := backend.CreateTexture(ctx, TextureDesc{Width: 2, Height: 2, Format: FormatBGRA8, ViewAccess: ViewSRV | ViewRTV})
	src, _ := backend.CreateTexture(ctx, TextureDesc{Width: 2, Height: 2, Format: FormatBGRA8, ViewAccess: ViewSRV})

	p := &Profile{MotionBlurMultiplier: 4, MotionBlurExposure: 0}
	engine, err := NewMotionBlurEngine(ctx, backend, nil, 2, 2, output, p)
	if err != nil {
		t.Fatalf("NewMotionBlurEngine: %v", err)
	}
	defer engine.Close()

	var emitted int
	emit := func(ctx context.Context) error { emitted++; return nil }
	for i := 0; i < 16; i++ {
		if err := engine.Tick(ctx, src, emit); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if emitted != 4 {
		t.Errorf("emitted = %d, want 4 frames at video_fps rate even with exposure=0", emitted)
	}
}

func TestBypassBlitEmitsOncePerTick(t *testing.T) {
	ctx := context.Background()
	backend := NewHeadlessBackend()
	output, _ := backend.CreateTexture(ctx, TextureDesc{Width: 2, Height: 2, Format: FormatBGRA8, ViewAccess: ViewSRV | ViewRTV})
	src, _ := backend.CreateTexture(ctx, TextureDesc{Width: 2, Height: 2, Format: FormatBGRA8, ViewAccess: ViewSRV})

	b := NewBypassBlit(backend, output)
	var emitted int
	for i := 0; i < 5; i++ {
		if err := b.Tick(ctx, src, func(ctx context.Context) error { emitted++; return nil }); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if emitted != 5 {
		t.Errorf("emitted = %d, want 5", emitted)
	}
	if err := b.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
