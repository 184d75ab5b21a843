// overlay_test.go - Velocity/Text Overlay (C5 §4.5)

package svrcore

import "testing"

func TestVelocityLength(t *testing.T) {
	cases := []struct {
		mode    VeloLength
		x, y, z float64
		want    int
	}{
		{VeloLengthXY, 3, 4, 100, 5},
		{VeloLengthXYZ, 2, 3, 6, 7},
		{VeloLengthZ, 1, 2, -9, 9},
		{VeloLengthZ, 1, 2, 9.4, 9},
	}
	for _, c := range cases {
		if got := VelocityLength(c.mode, c.x, c.y, c.z); got != c.want {
			t.Errorf("VelocityLength(%v, %v, %v, %v) = %d, want %d", c.mode, c.x, c.y, c.z, got, c.want)
		}
	}
}

func TestTextOriginAnchors(t *testing.T) {
	const screenW, screenH = 200, 100
	const textW, textH = 40, 20

	// Centered, no offset: anchor left keeps origin at screen center.
	x, y := textOrigin(VeloAnchorLeft, 0, 0, textW, textH, screenW, screenH)
	if x != screenW/2 || y != screenH/2 {
		t.Errorf("left anchor at origin = (%d,%d), want (%d,%d)", x, y, screenW/2, screenH/2)
	}

	// Center anchor shifts left by half the text box width.
	x, _ = textOrigin(VeloAnchorCenter, 0, 0, textW, textH, screenW, screenH)
	if want := screenW/2 - textW/2; x != want {
		t.Errorf("center anchor x = %d, want %d", x, want)
	}

	// Right anchor shifts left by the full text box width.
	x, _ = textOrigin(VeloAnchorRight, 0, 0, textW, textH, screenW, screenH)
	if want := screenW/2 - textW; x != want {
		t.Errorf("right anchor x = %d, want %d", x, want)
	}

	// A positive align percentage offsets from center toward the far edge.
	x, y = textOrigin(VeloAnchorLeft, 50, -50, textW, textH, screenW, screenH)
	wantX := screenW/2 + int(0.5*float64(screenW)/2)
	wantY := screenH/2 - int(0.5*float64(screenH)/2)
	if x != wantX || y != wantY {
		t.Errorf("offset anchor = (%d,%d), want (%d,%d)", x, y, wantX, wantY)
	}
}

func TestRasterizeTextProducesNonEmptyBuffer(t *testing.T) {
	desc := TextFormatDesc{
		FontFamily:  "Arial",
		FontSize:    13,
		Color:       [4]float32{1, 1, 1, 1},
		BorderColor: [4]float32{0, 0, 0, 1},
		BorderWidth: 1,
	}
	buf := rasterizeText(desc, "42", 32, 16)
	if len(buf) != 32*16*4 {
		t.Fatalf("len(buf) = %d, want %d", len(buf), 32*16*4)
	}
	var nonZero bool
	for _, b := range buf {
		if b != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("rasterized text buffer is all zero bytes")
	}
}

func TestRasterizeTextZeroSizeReturnsNil(t *testing.T) {
	if buf := rasterizeText(TextFormatDesc{}, "x", 0, 10); buf != nil {
		t.Errorf("expected nil buffer for zero width, got %d bytes", len(buf))
	}
}

func TestDigitAdvanceStableAcrossDigits(t *testing.T) {
	face := overlayFonts.get(TextFormatDesc{FontFamily: "Arial"})
	adv := digitAdvance(face)
	other, ok := face.GlyphAdvance('7')
	if !ok {
		t.Fatal("GlyphAdvance('7') reported not ok")
	}
	if adv != other {
		t.Errorf("digitAdvance = %v, GlyphAdvance('7') = %v; digits should share one tabular advance", adv, other)
	}
}
