// bridge.go - Encoder Bridge (C3 §4.3)

package svrcore

import (
	"context"
	"fmt"
	"unsafe"
)

// transport is the platform-specific half of the bridge: the shared memory
// mapping and the pair of auto-reset wake events, plus the encoder child
// process handle. bridge_posix.go and bridge_windows.go each supply one.
type transport interface {
	block() *ControlBlock
	signalEncoder() error
	// waitCompletionOrExit blocks until either the encoder signals
	// completion (exited=false) or the encoder process has exited
	// (exited=true).
	waitCompletionOrExit(ctx context.Context) (exited bool, err error)
	close() error
}

// EncoderBridge drives the ping-pong protocol against a single encoder
// process for the lifetime of one core session. It is created once at
// Core.Initialize and reused across recordings.
type EncoderBridge struct {
	log Logger
	t   transport
}

// NewEncoderBridge spawns the encoder process (per §6.3's invocation
// contract) and brings up the shared control block and wake events.
func NewEncoderBridge(log Logger, resourcePath string) (*EncoderBridge, error) {
	if log == nil {
		log = nopLogger{}
	}
	t, err := newTransport(log, resourcePath)
	if err != nil {
		return nil, &BridgeError{Event: "init", Message: err.Error(), Fatal: true}
	}
	t.block().AudioBufferOffset = uint32(unsafe.Offsetof(ControlBlock{}.AudioBuffer))
	return &EncoderBridge{log: log, t: t}, nil
}

// newEncoderBridgeWithTransport builds a bridge around an already-constructed
// transport, bypassing process spawning. Used by tests to exercise the
// ping-pong protocol (roundTrip, PushAudio fragmentation, error surfacing)
// against an in-process fake instead of a real encoder child.
func newEncoderBridgeWithTransport(log Logger, t transport) *EncoderBridge {
	if log == nil {
		log = nopLogger{}
	}
	return &EncoderBridge{log: log, t: t}
}

// roundTrip performs one complete ping-pong: populate has already written
// event-specific fields into the block; roundTrip sets event_type, signals,
// waits, and interprets the result per §4.3 steps 2-6.
func (b *EncoderBridge) roundTrip(ctx context.Context, event EventType) error {
	blk := b.t.block()
	blk.EventType = event

	if err := b.t.signalEncoder(); err != nil {
		return &BridgeError{Event: event.String(), Message: err.Error(), Fatal: true}
	}

	exited, err := b.t.waitCompletionOrExit(ctx)
	if err != nil {
		return &BridgeError{Event: event.String(), Message: err.Error(), Fatal: true}
	}
	if exited {
		return &BridgeError{Event: event.String(), Message: "encoder process exited", Fatal: true}
	}

	if blk.Error != 0 {
		msg := getCString(blk.ErrorMessage[:])
		return &BridgeError{Event: event.String(), Message: msg, Fatal: event != EventNewVideo && event != EventNewAudio}
	}
	return nil
}

// Start sends the START event with the movie parameters and the host's
// shared-texture handle.
func (b *EncoderBridge) Start(ctx context.Context, params MovieParams, textureHandle uint32) error {
	blk := b.t.block()
	blk.MovieParams = params
	blk.GameTextureHandle = textureHandle
	return b.roundTrip(ctx, EventStart)
}

// PushVideo sends NEW_VIDEO; the shared texture the encoder reads from must
// already hold the frame the caller wants encoded and every prior write must
// have completed (the caller's GPU Flush) before this is called.
func (b *EncoderBridge) PushVideo(ctx context.Context) error {
	return b.roundTrip(ctx, EventNewVideo)
}

// PushAudio sends `samples` through NEW_AUDIO, fragmenting into
// ENCODER_MAX_SAMPLES-sized submissions. waiting_audio_samples is latched
// immediately before each fragment's ping-pong, not once for the whole
// batch, so the encoder always reads an accurate count for the chunk it is
// about to consume.
func (b *EncoderBridge) PushAudio(ctx context.Context, samples []WaveSample) error {
	blk := b.t.block()
	for off := 0; off < len(samples); off += encoderMaxSamples {
		end := off + encoderMaxSamples
		if end > len(samples) {
			end = len(samples)
		}
		chunk := samples[off:end]
		if len(chunk) > encoderMaxSamples {
			return &OverflowError{Requested: len(chunk), Capacity: encoderMaxSamples}
		}
		copy(blk.AudioBuffer[:], chunk)
		blk.WaitingAudioSamples = uint32(len(chunk))
		if err := b.roundTrip(ctx, EventNewAudio); err != nil {
			return err
		}
	}
	return nil
}

// Stop sends STOP. Per §4.3 STOP "may fail: no", so a transport-level error
// here is logged but not escalated to a fatal BridgeError; the caller is
// tearing the recording down regardless.
func (b *EncoderBridge) Stop(ctx context.Context) {
	if err := b.roundTrip(ctx, EventStop); err != nil {
		b.log.Errorf("encoder stop: %v", err)
	}
}

// Close releases the shared memory and wake events. Called once at core
// shutdown, after the encoder has already been sent STOP.
func (b *EncoderBridge) Close() error {
	if err := b.t.close(); err != nil {
		return fmt.Errorf("closing bridge transport: %w", err)
	}
	return nil
}
