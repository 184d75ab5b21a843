// gpu_backend.go - GPU backend contract (C1 §4.1)

package svrcore

import "context"

// NewBackend selects the GPU backend a host should render through: a real
// Vulkan device when one can be brought up, falling back to the CPU
// reference backend otherwise. Grounded on the teacher's NewVulkanBackend,
// which keeps a VoodooSoftwareBackend ready and hands it back silently
// whenever Vulkan init fails, so callers never have to special-case a
// missing GPU themselves.
func NewBackend(log Logger) GPUBackend {
	if log == nil {
		log = nopLogger{}
	}
	backend, err := NewVulkanBackend(log)
	if err != nil {
		log.Infof("gpu: vulkan backend unavailable (%v), falling back to headless", err)
		return NewHeadlessBackend()
	}
	return backend
}

// GPUBackend is the full set of GPU operations the capture core needs from a
// render device. Exactly one concrete implementation is active per Core:
// gpuVulkanBackend talks to a real device, gpuHeadlessBackend does the same
// math on the CPU for tests and for hosts with no GPU context to share.
//
// Every call that can fail returns a *GPUError wrapping the operation name.
// No call panics; a device error is returned from the call in which it
// occurs, and neither backend keeps it to fail later calls.
type GPUBackend interface {
	// CreateTexture allocates a new GPU texture per desc.
	CreateTexture(ctx context.Context, desc TextureDesc) (*Texture, error)

	// CreateTextureFromFile decodes an image file (used for the overlay font
	// atlas and test fixtures) and uploads it as an immutable SRV texture.
	CreateTextureFromFile(ctx context.Context, path string) (*Texture, error)

	// OpenSharedTexture opens a texture the host process already created and
	// shared through the platform's cross-process handle mechanism. handle is
	// opaque to the caller; backends interpret it per-platform.
	OpenSharedTexture(ctx context.Context, handle uintptr, desc TextureDesc) (*Texture, error)

	// DestroyTexture releases a texture and all views derived from it. Safe
	// to call once per texture; a second call is a no-op.
	DestroyTexture(tex *Texture) error

	// GetTextureSRV/GetTextureRTV/GetTextureUAV return a borrowed view of the
	// requested kind. The texture must have been created with that
	// ViewAccess bit set, else the call returns a *GPUError.
	GetTextureSRV(tex *Texture) (View, error)
	GetTextureRTV(tex *Texture) (View, error)
	GetTextureUAV(tex *Texture) (View, error)

	// GetTextureSize reports the texture's dimensions and the byte size of
	// one CPU-side row (used to size download buffers).
	GetTextureSize(tex *Texture) (width, height uint32, rowPitch int)

	// CopyTexture copies src into dst. Both must share format and
	// dimensions; this is a full-resource copy, not a blit.
	CopyTexture(ctx context.Context, dst, src *Texture) error

	// ClearRTV clears a render target to a solid color.
	ClearRTV(ctx context.Context, rtv View, color [4]float32) error

	// DrawOverlay composites src onto dst at desc.Rect using the given
	// sampler and blend state.
	DrawOverlay(ctx context.Context, dst *Texture, src *Texture, desc OverlayDesc) error

	// MotionSample accumulates one weighted sample of src into the
	// accumulator texture work, per the motion-blur engine's compute kernel.
	// weight is in [0, 1]; clear, when true, zeroes work before accumulating
	// so the caller need not issue a separate ClearRTV.
	MotionSample(ctx context.Context, work *Texture, src *Texture, weight float32, clear bool) error

	// CreateConversion builds the planar output textures for one
	// recording's pixel format/color space, per desc. No intermediate
	// texture is allocated; ConvertPixelFormat reads the caller's source.
	CreateConversion(ctx context.Context, desc ConversionDesc) (*Conversion, error)

	// DestroyConversion releases a conversion's textures.
	DestroyConversion(c *Conversion) error

	// ConvertPixelFormat runs src (a BGRA8 texture) through conv's color
	// matrix and planarization kernel, leaving results in conv's output
	// textures ready for DownloadTexture.
	ConvertPixelFormat(ctx context.Context, conv *Conversion, src *Texture) error

	// DownloadTexture reads a texture (normally one of a Conversion's
	// outputs, or the final composited frame for BGR0) back into a
	// tightly-packed CPU buffer, row by row, trimming any backend row
	// padding. Returns the whole texture as a single byte slice; callers
	// download one plane texture per call.
	DownloadTexture(ctx context.Context, tex *Texture) ([]byte, error)

	// CreateTextFormat binds a text style to a render target texture. Not
	// cached: callers create one per draw when the style or target differs.
	CreateTextFormat(desc TextFormatDesc, target *Texture) (*TextFormat, error)

	// DrawText rasterizes text into the format's bound target at the given
	// rect, respecting HAlign/VAlign.
	DrawText(ctx context.Context, tf *TextFormat, text string, rect Rect) error

	// DestroyTextFormat releases a text format's rasterization resources.
	DestroyTextFormat(tf *TextFormat) error

	// Close releases the device and every resource it still owns. Called
	// once, at core shutdown, after every texture/conversion has already
	// been destroyed individually; a backend may still use Close to assert
	// that invariant in tests.
	Close() error
}
