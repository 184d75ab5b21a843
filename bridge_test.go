// bridge_test.go - Encoder Bridge (C3 §4.3) ping-pong protocol, independent
// of the scheduler that drives it in production.

package svrcore

import (
	"context"
	"strings"
	"testing"
)

func TestBridgeStartPushStop(t *testing.T) {
	ctx := context.Background()
	ft := newFakeTransport()
	b := newEncoderBridgeWithTransport(nil, ft)

	params := MovieParams{Width: 640, Height: 480, FPS: 60}
	if err := b.Start(ctx, params, 7); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ft.blk.GameTextureHandle != 7 {
		t.Errorf("GameTextureHandle = %d, want 7", ft.blk.GameTextureHandle)
	}
	if ft.blk.MovieParams.Width != 640 {
		t.Errorf("MovieParams.Width = %d, want 640", ft.blk.MovieParams.Width)
	}

	for i := 0; i < 3; i++ {
		if err := b.PushVideo(ctx); err != nil {
			t.Fatalf("PushVideo %d: %v", i, err)
		}
	}
	if ft.videoN != 3 {
		t.Errorf("videoN = %d, want 3", ft.videoN)
	}

	b.Stop(ctx)
	if err := b.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	wantEvents := []EventType{EventStart, EventNewVideo, EventNewVideo, EventNewVideo, EventStop}
	if len(ft.events) != len(wantEvents) {
		t.Fatalf("events = %v, want %v", ft.events, wantEvents)
	}
	for i, e := range wantEvents {
		if ft.events[i] != e {
			t.Errorf("events[%d] = %v, want %v", i, ft.events[i], e)
		}
	}
}

func TestBridgePushAudioFragmentsAtMaxSamples(t *testing.T) {
	ctx := context.Background()
	ft := newFakeTransport()
	b := newEncoderBridgeWithTransport(nil, ft)

	total := encoderMaxSamples*2 + 100
	samples := make([]WaveSample, total)
	for i := range samples {
		samples[i] = WaveSample{Left: int16(i), Right: int16(-i)}
	}

	if err := b.PushAudio(ctx, samples); err != nil {
		t.Fatalf("PushAudio: %v", err)
	}
	if ft.audioN != 3 {
		t.Fatalf("audioN = %d, want 3 fragments", ft.audioN)
	}
	if ft.totalAudioSamples != total {
		t.Errorf("totalAudioSamples = %d, want %d", ft.totalAudioSamples, total)
	}
	// Every fragment's latched count must have been <= the per-submission cap.
	for _, e := range ft.events {
		if e != EventNewAudio {
			t.Fatalf("unexpected event %v in audio-only push", e)
		}
	}
}

func TestBridgePushAudioEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	ft := newFakeTransport()
	b := newEncoderBridgeWithTransport(nil, ft)
	if err := b.PushAudio(ctx, nil); err != nil {
		t.Fatalf("PushAudio(nil): %v", err)
	}
	if len(ft.events) != 0 {
		t.Errorf("expected no events for empty audio push, got %v", ft.events)
	}
}

func TestBridgeNewVideoErrorIsNonFatal(t *testing.T) {
	ctx := context.Background()
	ft := newFakeTransport()
	ft.onEvent = func(blk *ControlBlock, event EventType) {
		if event == EventNewVideo {
			blk.Error = 1
			putCString(blk.ErrorMessage[:], "encoder busy")
		}
	}
	b := newEncoderBridgeWithTransport(nil, ft)

	err := b.PushVideo(ctx)
	if err == nil {
		t.Fatal("expected error from PushVideo")
	}
	var be *BridgeError
	if !asBridgeError(err, &be) {
		t.Fatalf("err = %v, want *BridgeError", err)
	}
	if be.Fatal {
		t.Error("NEW_VIDEO failure should not be marked Fatal")
	}
	if !strings.Contains(be.Message, "encoder busy") {
		t.Errorf("message = %q, want to contain %q", be.Message, "encoder busy")
	}
}

func TestBridgeStartErrorIsFatal(t *testing.T) {
	ctx := context.Background()
	ft := newFakeTransport()
	ft.onEvent = func(blk *ControlBlock, event EventType) {
		if event == EventStart {
			blk.Error = 1
			putCString(blk.ErrorMessage[:], "bad codec")
		}
	}
	b := newEncoderBridgeWithTransport(nil, ft)

	err := b.Start(ctx, MovieParams{}, 0)
	var be *BridgeError
	if !asBridgeError(err, &be) {
		t.Fatalf("err = %v, want *BridgeError", err)
	}
	if !be.Fatal {
		t.Error("START failure should be marked Fatal")
	}
}

func TestBridgeEncoderExitIsFatal(t *testing.T) {
	ctx := context.Background()
	ft := newFakeTransport()
	ft.exit = true
	b := newEncoderBridgeWithTransport(nil, ft)

	err := b.PushVideo(ctx)
	var be *BridgeError
	if !asBridgeError(err, &be) {
		t.Fatalf("err = %v, want *BridgeError", err)
	}
	if !be.Fatal {
		t.Error("encoder process exit should be marked Fatal regardless of event kind")
	}
}

func TestBridgeStopSwallowsTransportError(t *testing.T) {
	ctx := context.Background()
	ft := newFakeTransport()
	ft.exit = true // forces roundTrip to fail on STOP
	b := newEncoderBridgeWithTransport(nil, ft)

	// Stop has no return value; it must not panic even though the
	// underlying round trip fails.
	b.Stop(ctx)
	if len(ft.events) != 1 || ft.events[0] != EventStop {
		t.Errorf("events = %v, want [STOP]", ft.events)
	}
}

func asBridgeError(err error, out **BridgeError) bool {
	be, ok := err.(*BridgeError)
	if ok {
		*out = be
	}
	return ok
}
