// overlay.go - Velocity/Text Overlay (C5 §4.5)

package svrcore

import (
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// colorToRGBA converts a normalized [4]float32 RGBA color (as used throughout
// the texture/overlay API) into a stdlib color.RGBA.
func colorToRGBA(c [4]float32) color.RGBA {
	clamp := func(v float32) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint8(v * 255)
	}
	return color.RGBA{R: clamp(c[0]), G: clamp(c[1]), B: clamp(c[2]), A: clamp(c[3])}
}

// VelocityLength reduces a 3-vector velocity to a scalar per the configured
// length mode, rounded to the nearest integer for display.
func VelocityLength(mode VeloLength, x, y, z float64) int {
	var v float64
	switch mode {
	case VeloLengthXY:
		v = math.Sqrt(x*x + y*y)
	case VeloLengthXYZ:
		v = math.Sqrt(x*x + y*y + z*z)
	case VeloLengthZ:
		v = math.Abs(z)
	default:
		v = math.Sqrt(x*x + y*y)
	}
	return int(math.Round(v))
}

// textOrigin computes the top-left pixel of the text box from a percentage
// alignment pair applied as an offset from the screen center, adjusted by
// anchor: left keeps the origin at the left edge of the text box, center
// shifts left by half the box width, right shifts left by the full width.
func textOrigin(anchor VeloAnchor, alignX, alignY float64, textW, textH, screenW, screenH int) (x, y int) {
	cx := float64(screenW) / 2
	cy := float64(screenH) / 2
	px := cx + alignX/100*cx
	py := cy + alignY/100*cy

	switch anchor {
	case VeloAnchorCenter:
		px -= float64(textW) / 2
	case VeloAnchorRight:
		px -= float64(textW)
	}
	return int(math.Round(px)), int(math.Round(py))
}

// fontCache resolves a family+weight+style spelling to a font.Face. A real
// desktop system font collection lookup is platform-specific and outside
// this module's reach; every family maps onto one embedded 7x13 bitmap face,
// with weight/style kept as advisory metadata on the TextFormat rather than
// altering the glyph outlines. Lookup never fails, so the "font not found is
// fatal for this overlay only" contract reduces to a no-op in this backend.
type fontCache struct {
	mu    sync.Mutex
	faces map[string]font.Face
}

var overlayFonts = &fontCache{faces: make(map[string]font.Face)}

func (c *fontCache) get(desc TextFormatDesc) font.Face {
	key := desc.FontFamily
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.faces[key]; ok {
		return f
	}
	f := basicfont.Face7x13
	c.faces[key] = f
	return f
}

// digitAdvance returns the identical horizontal advance every digit glyph
// uses, derived from '0' so consecutive frames with a changing digit count
// never jitter the rest of the string.
func digitAdvance(f font.Face) fixed.Int26_6 {
	adv, _ := f.GlyphAdvance('0')
	return adv
}

// measureText returns the pixel width text would occupy when drawn with
// desc's font, using the same tabular digit advance rasterizeText draws
// with, so callers that need to position the text box (textOrigin) size it
// against the string actually painted rather than an approximation.
func measureText(desc TextFormatDesc, text string) int {
	face := overlayFonts.get(desc)
	tabAdvance := digitAdvance(face)

	var width fixed.Int26_6
	for _, r := range text {
		if r >= '0' && r <= '9' {
			width += tabAdvance
			continue
		}
		if adv, ok := face.GlyphAdvance(r); ok {
			width += adv
		}
	}
	return width.Ceil()
}

// rasterizeText renders text into a w*h RGBA8 buffer (4 bytes per pixel,
// row-major, matching the conventions CreateTexture/InitialData expects).
// Digits advance by a fixed tabular step; all other runes fall back to their
// native glyph metrics. When desc.BorderWidth > 0 the glyph run is drawn
// border_color is drawn offset in the 8 compass directions by BorderWidth
// pixels before the fill pass, approximating a stroked outline without a
// dependency on a full vector path rasterizer.
func rasterizeText(desc TextFormatDesc, text string, w, h int) []byte {
	if w <= 0 || h <= 0 {
		return nil
	}
	face := overlayFonts.get(desc)
	tabAdvance := digitAdvance(face)

	img := image.NewRGBA(image.Rect(0, 0, w, h))

	baselineY := int(desc.FontSize)
	if baselineY <= 0 {
		baselineY = h - 2
	}

	drawPass := func(col [4]float32, dx, dy int) {
		c := colorToRGBA(col)
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: face,
			Dot:  fixed.P(dx, baselineY+dy),
		}
		for _, r := range text {
			start := d.Dot.X
			d.DrawString(string(r))
			if r >= '0' && r <= '9' {
				d.Dot.X = start + tabAdvance
			}
		}
	}

	if desc.BorderWidth > 0 {
		bw := int(math.Round(float64(desc.BorderWidth)))
		offsets := [8][2]int{{-bw, -bw}, {0, -bw}, {bw, -bw}, {-bw, 0}, {bw, 0}, {-bw, bw}, {0, bw}, {bw, bw}}
		for _, o := range offsets {
			drawPass(desc.BorderColor, o[0], o[1])
		}
	}
	drawPass(desc.Color, 0, 0)

	return img.Pix
}
