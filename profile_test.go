// profile_test.go - Movie Profile loading/serialization (C2 §4.2), §8 round-trip.

package svrcore

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDefaultProfile(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "default.ini"), defaultProfileINI, 0o644); err != nil {
		t.Fatalf("seeding default.ini: %v", err)
	}
}

func TestLoadProfileFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	writeDefaultProfile(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "custom.ini"), []byte("video_fps=30\n"), 0o644); err != nil {
		t.Fatalf("writing custom.ini: %v", err)
	}

	p, err := LoadProfile(nil, dir, "custom")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.VideoFPS != 30 {
		t.Errorf("VideoFPS = %d, want 30 (from custom.ini)", p.VideoFPS)
	}
	if p.VideoEncoder != VideoEncoderLibx264 {
		t.Errorf("VideoEncoder = %q, want fallback %q", p.VideoEncoder, VideoEncoderLibx264)
	}
	if p.VideoPixelFormat != PixelFormatBGR0 {
		t.Errorf("VideoPixelFormat = %v, want fallback bgr0", p.VideoPixelFormat)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeDefaultProfile(t, dir)
	p, err := LoadProfile(nil, dir, "default")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}

	serialized := WriteProfile(p)
	if err := os.WriteFile(filepath.Join(dir, "roundtrip.ini"), []byte(serialized), 0o644); err != nil {
		t.Fatalf("writing roundtrip.ini: %v", err)
	}
	p2, err := LoadProfile(nil, dir, "roundtrip")
	if err != nil {
		t.Fatalf("LoadProfile(roundtrip): %v", err)
	}

	if *p != *p2 {
		t.Errorf("round-tripped profile differs:\n  got:  %+v\n  want: %+v", p2, p)
	}
}

func TestProfileUnrecognizedEnumFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	writeDefaultProfile(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "bad.ini"), []byte("video_pixel_format=nonsense\n"), 0o644); err != nil {
		t.Fatalf("writing bad.ini: %v", err)
	}
	p, err := LoadProfile(nil, dir, "bad")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.VideoPixelFormat != PixelFormatBGR0 {
		t.Errorf("VideoPixelFormat = %v, want default fallback bgr0", p.VideoPixelFormat)
	}
}

func TestX264CRFClamped(t *testing.T) {
	dir := t.TempDir()
	writeDefaultProfile(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "hicrf.ini"), []byte("video_x264_crf=999\n"), 0o644); err != nil {
		t.Fatalf("writing hicrf.ini: %v", err)
	}
	p, err := LoadProfile(nil, dir, "hicrf")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.VideoX264CRF != 52 {
		t.Errorf("VideoX264CRF = %d, want clamped to 52", p.VideoX264CRF)
	}
}
