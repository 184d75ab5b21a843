// motion_blur.go - Motion-Blur Engine (C4 §4.4)

package svrcore

import (
	"context"
	"math"
)

// MotionBlurEngine accumulates weighted samples of the game's rendered frame
// into a float32 work texture across an exposure window, emitting one (or
// occasionally more) encoded output frames per window close. State is
// scoped to a single recording; a new engine is constructed at start_movie
// and discarded at end_movie.
type MotionBlurEngine struct {
	backend GPUBackend
	log     Logger

	work   *Texture
	workRTV View
	output *Texture // the shared BGRA8 texture later read by the pixel-format conversion

	exposure float64
	step     float64 // 1/multiplier, constant for the recording
	remainder float64
}

// NewMotionBlurEngine allocates the work texture and derives the constant
// step from the profile's multiplier. Per the collapse decision recorded for
// multiplier == 1 (DESIGN.md), callers should not construct this engine at
// all in that case; NewBypassBlit below covers the disabled/collapsed path.
func NewMotionBlurEngine(ctx context.Context, backend GPUBackend, log Logger, width, height uint32, output *Texture, p *Profile) (*MotionBlurEngine, error) {
	if log == nil {
		log = nopLogger{}
	}
	work, err := backend.CreateTexture(ctx, TextureDesc{
		Width: width, Height: height,
		Format:     FormatR32G32B32A32Float,
		Usage:      UsageDefault,
		ViewAccess: ViewUAV | ViewRTV,
	})
	if err != nil {
		return nil, &GPUError{Operation: "motion_blur.work_texture", Err: err}
	}
	rtv, err := backend.GetTextureRTV(work)
	if err != nil {
		return nil, &GPUError{Operation: "motion_blur.work_texture_rtv", Err: err}
	}
	e := &MotionBlurEngine{
		backend: backend, log: log,
		work: work, workRTV: rtv, output: output,
		exposure: p.MotionBlurExposure,
		step:     1 / float64(p.MotionBlurMultiplier),
	}
	if err := e.clearWork(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *MotionBlurEngine) clearWork(ctx context.Context) error {
	if err := e.backend.ClearRTV(ctx, e.workRTV, [4]float32{0, 0, 0, 1}); err != nil {
		return &GPUError{Operation: "motion_blur.clear_work", Err: err}
	}
	return nil
}

func (e *MotionBlurEngine) accumulate(ctx context.Context, src *Texture, weight float32) error {
	if weight <= 0 {
		return nil
	}
	if err := e.backend.MotionSample(ctx, e.work, src, weight, false); err != nil {
		return &GPUError{Operation: "motion_blur.accumulate", Err: err}
	}
	return nil
}

// downsampleToOutput copies the accumulated float work texture into the
// shared BGRA8 output texture. The backend's texture API has no in-place
// format-narrowing blit, so this goes through a CPU round trip: download the
// float plane, pack it to BGRA8, create a short-lived immutable texture from
// those bytes, and GPU-copy it onto the output. This runs at most once per
// emitted frame, never per accumulated sample.
func (e *MotionBlurEngine) downsampleToOutput(ctx context.Context) error {
	raw, err := e.backend.DownloadTexture(ctx, e.work)
	if err != nil {
		return &GPUError{Operation: "motion_blur.downsample_download", Err: err}
	}
	w, h, _ := e.backend.GetTextureSize(e.work)
	packed := packFloatRGBAToBGRA8(raw, int(w), int(h))

	tmp, err := e.backend.CreateTexture(ctx, TextureDesc{
		Width: w, Height: h,
		Format:      FormatBGRA8,
		Usage:       UsageImmutable,
		ViewAccess:  ViewSRV,
		InitialData: packed,
	})
	if err != nil {
		return &GPUError{Operation: "motion_blur.downsample_upload", Err: err}
	}
	defer e.backend.DestroyTexture(tmp)

	if err := e.backend.CopyTexture(ctx, e.output, tmp); err != nil {
		return &GPUError{Operation: "motion_blur.downsample_copy", Err: err}
	}
	return nil
}

// packFloatRGBAToBGRA8 converts the work texture's packed float32 RGBA
// samples (already summing to at most 1.0 per channel under the
// partition-of-unity invariant) into 8-bit BGRA bytes.
func packFloatRGBAToBGRA8(raw []byte, w, h int) []byte {
	out := make([]byte, w*h*4)
	n := w * h
	for i := 0; i < n; i++ {
		in := raw[i*16 : i*16+16]
		r := clampChannel(readFloat32(in[0:4]))
		g := clampChannel(readFloat32(in[4:8]))
		b := clampChannel(readFloat32(in[8:12]))
		a := clampChannel(readFloat32(in[12:16]))
		o := out[i*4 : i*4+4]
		o[0], o[1], o[2], o[3] = b, g, r, a
	}
	return out
}

func clampChannel(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v * 255)
}

// Tick runs one sample-tick of the §4.4 state machine against the game's
// just-rendered frame. emit is called once per output frame that closes
// during this tick (normally once; more than once only in the degenerate
// case where the multiplier yields less than one sample per output frame).
// emit must already know to read from the output texture passed at
// construction; Tick does not pass it again.
func (e *MotionBlurEngine) Tick(ctx context.Context, src *Texture, emit func(ctx context.Context) error) error {
	newRemainder := e.remainder + e.step

	switch {
	// The close check runs first: when exposure == 0, 1-exposure == 1, and
	// a newRemainder that lands exactly on 1 must still close the frame
	// (§8 boundary behavior: exposure=0 still emits at video_fps, just with
	// nothing accumulated) rather than be swallowed by the dead-zone check
	// below, which shares that same boundary value.
	case newRemainder >= 1:
		if e.exposure > 0 {
			closing := (1 - math.Max(1-e.exposure, e.remainder)) / e.exposure
			if err := e.accumulate(ctx, src, float32(closing)); err != nil {
				return err
			}
		}
		if err := e.downsampleToOutput(ctx); err != nil {
			return err
		}
		if err := emit(ctx); err != nil {
			return err
		}
		newRemainder -= 1
		for newRemainder >= 1 {
			// Multiplier configured below one sample per output frame: the
			// contract requires duplicating the frame just produced rather
			// than stalling.
			if err := emit(ctx); err != nil {
				return err
			}
			newRemainder -= 1
		}
		if err := e.clearWork(ctx); err != nil {
			return err
		}
		if e.exposure > 0 && newRemainder > 1-e.exposure {
			weight := (newRemainder - (1 - e.exposure)) / e.exposure
			if err := e.accumulate(ctx, src, float32(weight)); err != nil {
				return err
			}
		}

	case newRemainder <= 1-e.exposure:
		// Dead zone before exposure opens; nothing accumulated.

	default: // 1-exposure < newRemainder < 1: inside the exposure window.
		weight := (newRemainder - math.Max(1-e.exposure, e.remainder)) / e.exposure
		if err := e.accumulate(ctx, src, float32(weight)); err != nil {
			return err
		}
	}

	e.remainder = math.Mod(newRemainder, 1)
	return nil
}

// Close releases the work texture. Any partial accumulation in flight is
// discarded per §4.4's end-of-recording contract: there is no flush.
func (e *MotionBlurEngine) Close() error {
	if err := e.backend.DestroyTexture(e.work); err != nil {
		return &GPUError{Operation: "motion_blur.close", Err: err}
	}
	return nil
}

// BypassBlit implements the disabled/collapsed motion-blur path: each
// rendered frame is blit 1:1 from the game SRV onto the shared output
// texture and one frame is emitted, with no motion-sample kernel dispatch.
type BypassBlit struct {
	backend GPUBackend
	output  *Texture
}

func NewBypassBlit(backend GPUBackend, output *Texture) *BypassBlit {
	return &BypassBlit{backend: backend, output: output}
}

func (b *BypassBlit) Tick(ctx context.Context, src *Texture, emit func(ctx context.Context) error) error {
	if err := b.backend.CopyTexture(ctx, b.output, src); err != nil {
		return &GPUError{Operation: "motion_blur.bypass_copy", Err: err}
	}
	return emit(ctx)
}

// Close is a no-op: BypassBlit owns no resources of its own, only a borrowed
// reference to the recording's shared output texture.
func (b *BypassBlit) Close() error { return nil }
