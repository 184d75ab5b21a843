// gpu_headless.go - CPU-only GPUBackend for tests and hosts with no shared GPU context

package svrcore

import (
	"context"
	"image"
	_ "image/png"
	"math"
	"os"
	"sync"
)

// headlessTexture is a plain byte buffer standing in for GPU memory. Rows
// are tightly packed; there is no driver-imposed row pitch to trim.
type headlessTexture struct {
	id   uint64
	desc TextureDesc
	data []byte
}

// gpuHeadlessBackend implements GPUBackend entirely in Go, doing the same
// math the Vulkan kernels do but over plain slices. It exists so the rest of
// the capture pipeline (motion blur, overlay, scheduler) can be exercised
// deterministically without a GPU or a goki/vulkan loader present, mirroring
// the teacher's own software-rasterizer fallback.
type gpuHeadlessBackend struct {
	mu       sync.Mutex
	nextID   uint64
	textures map[uint64]*headlessTexture
}

// NewHeadlessBackend returns a GPUBackend with no external dependencies.
func NewHeadlessBackend() GPUBackend {
	return &gpuHeadlessBackend{textures: make(map[uint64]*headlessTexture)}
}

func (b *gpuHeadlessBackend) alloc(desc TextureDesc) *headlessTexture {
	b.nextID++
	size := int(desc.Width) * int(desc.Height) * bytesPerPixel(desc.Format)
	data := make([]byte, size)
	if desc.InitialData != nil {
		copy(data, desc.InitialData)
	}
	return &headlessTexture{id: b.nextID, desc: desc, data: data}
}

func (b *gpuHeadlessBackend) CreateTexture(ctx context.Context, desc TextureDesc) (*Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.alloc(desc)
	b.textures[t.id] = t
	return &Texture{id: t.id, Desc: desc, backend: b}, nil
}

func (b *gpuHeadlessBackend) CreateTextureFromFile(ctx context.Context, path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &GPUError{Operation: "create_texture_from_file", Details: path, Err: err}
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &GPUError{Operation: "create_texture_from_file", Details: path, Err: err}
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			o := (y*w + x) * 4
			pixels[o], pixels[o+1], pixels[o+2], pixels[o+3] = byte(r>>8), byte(g>>8), byte(bl>>8), byte(a>>8)
		}
	}
	return b.CreateTexture(ctx, TextureDesc{Width: uint32(w), Height: uint32(h), Format: FormatRGBA8, Usage: UsageImmutable, ViewAccess: ViewSRV, InitialData: pixels})
}

func (b *gpuHeadlessBackend) OpenSharedTexture(ctx context.Context, handle uintptr, desc TextureDesc) (*Texture, error) {
	if handle == 0 {
		return nil, &GPUError{Operation: "open_shared_texture", Details: "nil handle"}
	}
	size := int(desc.Width) * int(desc.Height) * bytesPerPixel(desc.Format)
	var data []byte
	if desc.InitialData != nil {
		data = desc.InitialData
	} else {
		data = make([]byte, size)
	}
	desc.InitialData = data
	return b.CreateTexture(ctx, desc)
}

func (b *gpuHeadlessBackend) DestroyTexture(tex *Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.textures, tex.id)
	return nil
}

func (b *gpuHeadlessBackend) GetTextureSRV(tex *Texture) (View, error) {
	if tex.Desc.ViewAccess&ViewSRV == 0 {
		return View{}, &GPUError{Operation: "get_texture_srv", Details: "no SRV binding"}
	}
	return View{texture: tex, kind: ViewSRV}, nil
}

func (b *gpuHeadlessBackend) GetTextureRTV(tex *Texture) (View, error) {
	if tex.Desc.ViewAccess&ViewRTV == 0 {
		return View{}, &GPUError{Operation: "get_texture_rtv", Details: "no RTV binding"}
	}
	return View{texture: tex, kind: ViewRTV}, nil
}

func (b *gpuHeadlessBackend) GetTextureUAV(tex *Texture) (View, error) {
	if tex.Desc.ViewAccess&ViewUAV == 0 {
		return View{}, &GPUError{Operation: "get_texture_uav", Details: "no UAV binding"}
	}
	return View{texture: tex, kind: ViewUAV}, nil
}

func (b *gpuHeadlessBackend) GetTextureSize(tex *Texture) (uint32, uint32, int) {
	return tex.Desc.Width, tex.Desc.Height, int(tex.Desc.Width) * bytesPerPixel(tex.Desc.Format)
}

func (b *gpuHeadlessBackend) get(id uint64) (*headlessTexture, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.textures[id]
	return t, ok
}

func (b *gpuHeadlessBackend) CopyTexture(ctx context.Context, dst, src *Texture) error {
	s, ok := b.get(src.id)
	if !ok {
		return &GPUError{Operation: "copy_texture", Details: "unknown src"}
	}
	d, ok := b.get(dst.id)
	if !ok {
		return &GPUError{Operation: "copy_texture", Details: "unknown dst"}
	}
	copy(d.data, s.data)
	return nil
}

func (b *gpuHeadlessBackend) ClearRTV(ctx context.Context, rtv View, color [4]float32) error {
	t, ok := b.get(rtv.texture.id)
	if !ok {
		return &GPUError{Operation: "clear_rtv", Details: "unknown texture"}
	}
	bpp := bytesPerPixel(t.desc.Format)
	px := make([]byte, bpp)
	if t.desc.Format == FormatR32G32B32A32Float {
		for i := 0; i < 4; i++ {
			writeFloat32(px[i*4:i*4+4], color[i])
		}
	} else {
		for i := 0; i < bpp && i < 4; i++ {
			px[i] = byte(clamp01(color[i]) * 255)
		}
	}
	for o := 0; o+bpp <= len(t.data); o += bpp {
		copy(t.data[o:o+bpp], px)
	}
	return nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (b *gpuHeadlessBackend) DrawOverlay(ctx context.Context, dst *Texture, src *Texture, desc OverlayDesc) error {
	s, ok := b.get(src.id)
	if !ok {
		return &GPUError{Operation: "draw_overlay", Details: "unknown src"}
	}
	d, ok := b.get(dst.id)
	if !ok {
		return &GPUError{Operation: "draw_overlay", Details: "unknown dst"}
	}
	sw, sh := int(s.desc.Width), int(s.desc.Height)
	dw, dh := int(d.desc.Width), int(d.desc.Height)
	for y := 0; y < sh; y++ {
		dy := desc.Rect.Y + y
		if dy < 0 || dy >= dh {
			continue
		}
		for x := 0; x < sw; x++ {
			dx := desc.Rect.X + x
			if dx < 0 || dx >= dw {
				continue
			}
			so := (y*sw + x) * 4
			do := (dy*dw + dx) * 4
			blendPixelInto(d.data[do:do+4], s.data[so:so+4], desc.Blend)
		}
	}
	return nil
}

func blendPixelInto(dst, src []byte, mode BlendState) {
	a := float32(src[3]) / 255
	switch mode {
	case BlendAlpha:
		for i := 0; i < 3; i++ {
			dst[i] = byte(float32(dst[i])*(1-a) + float32(src[i])*a)
		}
	case BlendAdditive:
		for i := 0; i < 3; i++ {
			v := float32(dst[i]) + float32(src[i])*a
			if v > 255 {
				v = 255
			}
			dst[i] = byte(v)
		}
	case BlendNonPremultiplied:
		for i := 0; i < 3; i++ {
			dst[i] = byte(float32(dst[i])*(1-a) + float32(src[i]))
		}
	default: // BlendOpaque
		copy(dst, src)
	}
}

func (b *gpuHeadlessBackend) MotionSample(ctx context.Context, work *Texture, src *Texture, weight float32, clear bool) error {
	s, ok := b.get(src.id)
	if !ok {
		return &GPUError{Operation: "motion_sample", Details: "unknown src"}
	}
	w, ok := b.get(work.id)
	if !ok {
		return &GPUError{Operation: "motion_sample", Details: "unknown work texture"}
	}
	if clear {
		for i := range w.data {
			w.data[i] = 0
		}
	}
	order := [4]int{0, 1, 2, 3}
	if s.desc.Format == FormatBGRA8 {
		order = [4]int{2, 1, 0, 3}
	}
	n := len(s.data) / 4
	for i := 0; i < n; i++ {
		for c := 0; c < 4; c++ {
			off := (i*4 + c) * 4
			cur := readFloat32(w.data[off : off+4])
			cur += float32(s.data[i*4+order[c]]) / 255 * weight
			writeFloat32(w.data[off:off+4], cur)
		}
	}
	return nil
}

// readFloat32/writeFloat32 treat a work texture's byte buffer as packed
// little-endian float32s; the headless backend allocates
// FormatR32G32B32A32Float work textures with exactly 16 bytes per pixel,
// matching bytesPerPixel's accounting.
func readFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

func writeFloat32(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

func (b *gpuHeadlessBackend) CreateConversion(ctx context.Context, desc ConversionDesc) (*Conversion, error) {
	planes := planeDescsFor(desc)
	if planes == nil {
		return nil, &GPUError{Operation: "create_conversion_context", Details: "unsupported destination format"}
	}
	conv := &Conversion{Desc: desc, Planes: planes}
	for i, p := range planes {
		tex, err := b.CreateTexture(ctx, TextureDesc{Width: p.Width, Height: p.Height, Format: p.Format, Usage: UsageDefault, ViewAccess: ViewUAV, Caps: CapDownloadable})
		if err != nil {
			for j := 0; j < i; j++ {
				b.DestroyTexture(conv.outputs[j])
			}
			return nil, err
		}
		conv.outputs[i] = tex
	}
	return conv, nil
}

func (b *gpuHeadlessBackend) DestroyConversion(c *Conversion) error {
	for i := 0; i < PlaneCount(c.Desc.DestFormat); i++ {
		if c.outputs[i] != nil {
			b.DestroyTexture(c.outputs[i])
		}
	}
	return nil
}

func (b *gpuHeadlessBackend) ConvertPixelFormat(ctx context.Context, conv *Conversion, src *Texture) error {
	s, ok := b.get(src.id)
	if !ok {
		return &GPUError{Operation: "convert_pixel_formats", Details: "unknown src"}
	}
	m, offset := colorMatrix3x3(conv.Desc.DestColorSpace)
	ri, bi := 0, 2
	if s.desc.Format == FormatBGRA8 {
		ri, bi = 2, 0
	}
	n := PlaneCount(conv.Desc.DestFormat)
	for i := 0; i < n; i++ {
		d, ok := b.get(conv.outputs[i].id)
		if !ok {
			return &GPUError{Operation: "convert_pixel_formats", Details: "unknown output"}
		}
		plane := conv.Planes[i]
		shiftX, shiftY := 0, 0
		if plane.Width < conv.Desc.Width {
			shiftX = 1
		}
		if plane.Height < conv.Desc.Height {
			shiftY = 1
		}
		srcW := int(conv.Desc.Width)
		for y := 0; y < int(plane.Height); y++ {
			for x := 0; x < int(plane.Width); x++ {
				sx, sy := x<<shiftX, y<<shiftY
				so := (sy*srcW + sx) * 4
				if so+2 >= len(s.data) {
					continue
				}
				r, g, bl := float32(s.data[so+ri])/255, float32(s.data[so+1])/255, float32(s.data[so+bi])/255
				v := m[i][0]*r + m[i][1]*g + m[i][2]*bl + offset[i]
				if v < 0 {
					v = 0
				}
				if v > 1 {
					v = 1
				}
				do := y*int(plane.Width) + x
				if bytesPerPixel(plane.Format) == 2 {
					do *= 2
				}
				if do < len(d.data) {
					d.data[do] = byte(v * 255)
				}
			}
		}
	}
	return nil
}

func (b *gpuHeadlessBackend) DownloadTexture(ctx context.Context, tex *Texture) ([]byte, error) {
	t, ok := b.get(tex.id)
	if !ok {
		return nil, &GPUError{Operation: "download_texture", Details: "unknown texture"}
	}
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out, nil
}

func (b *gpuHeadlessBackend) CreateTextFormat(desc TextFormatDesc, target *Texture) (*TextFormat, error) {
	return &TextFormat{Desc: desc, Target: target}, nil
}

func (b *gpuHeadlessBackend) DrawText(ctx context.Context, tf *TextFormat, text string, rect Rect) error {
	pixels := rasterizeText(tf.Desc, text, rect.W, rect.H)
	t, ok := b.get(tf.Target.id)
	if !ok {
		return &GPUError{Operation: "draw_text", Details: "unknown target"}
	}
	dw := int(t.desc.Width)
	for y := 0; y < rect.H; y++ {
		dy := rect.Y + y
		if dy < 0 || dy >= int(t.desc.Height) {
			continue
		}
		for x := 0; x < rect.W; x++ {
			dx := rect.X + x
			if dx < 0 || dx >= dw {
				continue
			}
			so := (y*rect.W + x) * 4
			do := (dy*dw + dx) * 4
			if so+3 < len(pixels) && do+3 < len(t.data) {
				blendPixelInto(t.data[do:do+4], pixels[so:so+4], BlendAlpha)
			}
		}
	}
	return nil
}

func (b *gpuHeadlessBackend) DestroyTextFormat(tf *TextFormat) error { return nil }

func (b *gpuHeadlessBackend) Close() error { return nil }
