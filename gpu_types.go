// gpu_types.go - GPU resource data model (C1 §3, §4.1)

package svrcore

// Format enumerates the pixel formats a Texture can hold.
type Format int

const (
	FormatBGRA8 Format = iota
	FormatRGBA8
	FormatR32G32B32A32Float
	FormatR8  // single 8-bit channel, used for planar Y/U/V outputs
	FormatR8G8 // interleaved two-channel 8-bit, used for NV12/NV21 UV planes
)

// Usage mirrors the GPU resource usage model: default (GPU read/write),
// immutable (set once at creation), dynamic (frequently CPU-written), or
// staging (CPU-readable mirror).
type Usage int

const (
	UsageDefault Usage = iota
	UsageImmutable
	UsageDynamic
	UsageStaging
)

// ViewAccess is a bitmask of which views a texture exposes.
type ViewAccess uint32

const (
	ViewNone ViewAccess = 0
	ViewSRV  ViewAccess = 1 << 0
	ViewUAV  ViewAccess = 1 << 1
	ViewRTV  ViewAccess = 1 << 2
)

// CPUAccess is a bitmask of which directions the CPU may touch a resource.
type CPUAccess uint32

const (
	CPUAccessNone  CPUAccess = 0
	CPUAccessRead  CPUAccess = 1 << 0
	CPUAccessWrite CPUAccess = 1 << 1
)

// Cap is a bitmask of extra capabilities a texture may be created with.
type Cap uint32

const (
	CapNone         Cap = 0
	CapDownloadable Cap = 1 << 0
	CapTextTarget   Cap = 1 << 1
	CapShared       Cap = 1 << 2
)

// TextureDesc describes a texture to be created by the backend.
type TextureDesc struct {
	Width      uint32
	Height     uint32
	Format     Format
	Usage      Usage
	ViewAccess ViewAccess
	CPUAccess  CPUAccess
	Caps       Cap

	// InitialData, if non-nil, seeds the texture's contents at creation.
	InitialData []byte
}

// Texture is an opaque GPU resource handle. The zero value is not a valid
// texture; only the backend that created one may interpret its fields.
type Texture struct {
	id     uint64
	Desc   TextureDesc
	backend GPUBackend
}

// View is a borrowed reference to one of a texture's SRV/UAV/RTV bindings.
// Its lifetime is bounded by the texture that produced it; it is never owned
// independently.
type View struct {
	texture *Texture
	kind    ViewAccess
}

// ShaderKind enumerates the three shader stages the backend compiles.
type ShaderKind int

const (
	ShaderCompute ShaderKind = iota
	ShaderVertex
	ShaderPixel
)

// Shader is an opaque compiled GPU program, cached per backend by name.
type Shader struct {
	Name string
	Kind ShaderKind
}

// SamplerState selects the texture filter used by draw_overlay.
type SamplerState int

const (
	SamplerPoint SamplerState = iota
	SamplerLinear
)

// BlendState selects the blend mode used by draw_overlay.
type BlendState int

const (
	BlendOpaque BlendState = iota
	BlendAlpha
	BlendAdditive
	BlendNonPremultiplied
)

// Rect is an integer pixel rectangle, left/top inclusive, right/bottom exclusive.
type Rect struct {
	X, Y, W, H int
}

// OverlayDesc parameterizes draw_overlay.
type OverlayDesc struct {
	Rect    Rect
	Sampler SamplerState
	Blend   BlendState
}

// PixelFormat is the wire pixel format a recording encodes to. It is
// distinct from Format (the GPU-side texture format) because several
// PixelFormat values share one GPU representation split across planes.
type PixelFormat int

const (
	PixelFormatBGR0 PixelFormat = iota
	PixelFormatYUV420
	PixelFormatNV12
	PixelFormatNV21
	PixelFormatYUV444
)

// ColorSpace is the destination color space for pixel-format conversion.
type ColorSpace int

const (
	ColorSpaceRGB ColorSpace = iota
	ColorSpaceBT601
	ColorSpaceBT709
)

// PlaneDesc describes one output plane of a Conversion.
type PlaneDesc struct {
	Width  uint32
	Height uint32
	Format Format
}

// ConversionDesc describes a pixel-format+colorspace transcode to be created
// once per recording.
type ConversionDesc struct {
	Width         uint32
	Height        uint32
	SourceFormat  Format // always FormatBGRA8 per §4.1
	DestFormat    PixelFormat
	DestColorSpace ColorSpace
}

// Conversion owns the 1-3 planar output textures for one recording's pixel
// format. Plane count and per-plane sizes are fixed at creation (§3
// invariant) and exposed via Planes. Neither backend allocates the
// intermediate field; it stays nil.
type Conversion struct {
	Desc   ConversionDesc
	Planes []PlaneDesc

	intermediate *Texture
	outputs      [3]*Texture
}

// PlaneCount returns how many planes this destination format produces.
func PlaneCount(f PixelFormat) int {
	switch f {
	case PixelFormatBGR0:
		return 1
	case PixelFormatNV12, PixelFormatNV21:
		return 2
	case PixelFormatYUV420, PixelFormatYUV444:
		return 3
	default:
		return 0
	}
}

// planeDescsFor computes the per-plane dimensions/formats for a conversion,
// per §4.1's plane-layout table.
func planeDescsFor(desc ConversionDesc) []PlaneDesc {
	w, h := desc.Width, desc.Height
	switch desc.DestFormat {
	case PixelFormatBGR0:
		return []PlaneDesc{{Width: w, Height: h, Format: FormatRGBA8}}
	case PixelFormatYUV420:
		return []PlaneDesc{
			{Width: w, Height: h, Format: FormatR8},
			{Width: (w + 1) / 2, Height: (h + 1) / 2, Format: FormatR8},
			{Width: (w + 1) / 2, Height: (h + 1) / 2, Format: FormatR8},
		}
	case PixelFormatNV12, PixelFormatNV21:
		return []PlaneDesc{
			{Width: w, Height: h, Format: FormatR8},
			{Width: (w + 1) / 2, Height: (h + 1) / 2, Format: FormatR8G8},
		}
	case PixelFormatYUV444:
		return []PlaneDesc{
			{Width: w, Height: h, Format: FormatR8},
			{Width: w, Height: h, Format: FormatR8},
			{Width: w, Height: h, Format: FormatR8},
		}
	default:
		return nil
	}
}

// bytesPerPixel returns the primary-plane byte stride used to size CPU
// download buffers (get_texture_size, §4.1).
func bytesPerPixel(f Format) int {
	switch f {
	case FormatBGRA8, FormatRGBA8:
		return 4
	case FormatR32G32B32A32Float:
		return 16
	case FormatR8:
		return 1
	case FormatR8G8:
		return 2
	default:
		return 4
	}
}

// colorMatrix3x3 returns the RGB->YUV constant matrix plus range offset for
// the requested color space. RGB->RGB is the identity and has no matrix.
func colorMatrix3x3(cs ColorSpace) (m [3][3]float32, offset [3]float32) {
	switch cs {
	case ColorSpaceBT601:
		return [3][3]float32{
			{0.299, 0.587, 0.114},
			{-0.168736, -0.331264, 0.5},
			{0.5, -0.418688, -0.081312},
		}, [3]float32{0, 0.5, 0.5}
	case ColorSpaceBT709:
		return [3][3]float32{
			{0.2126, 0.7152, 0.0722},
			{-0.114572, -0.385428, 0.5},
			{0.5, -0.454153, -0.045847},
		}, [3]float32{0, 0.5, 0.5}
	default:
		return [3][3]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
		}, [3]float32{0, 0, 0}
	}
}

// FontWeight mirrors the small subset of weights the overlay rasterizer
// supports.
type FontWeight int

const (
	FontWeightNormal FontWeight = iota
	FontWeightBold
)

// FontStyle selects italic slanting.
type FontStyle int

const (
	FontStyleNormal FontStyle = iota
	FontStyleItalic
)

// TextFormatDesc describes the text style a TextFormat is created with (§4.1).
type TextFormatDesc struct {
	FontFamily  string
	FontSize    float32
	Color       [4]float32
	BorderColor [4]float32
	BorderWidth float32
	Weight      FontWeight
	Style       FontStyle
	Stretch     int
	HAlign      int
	VAlign      int
}

// TextFormat is bound to a specific render-target texture at creation and is
// not cached between calls (§4.1).
type TextFormat struct {
	Desc   TextFormatDesc
	Target *Texture
}
