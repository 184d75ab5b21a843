// audio_mixer.go - Audio Mixer (C6 §4.6)

package svrcore

import (
	"context"
	"math"
)

// PaintClock reads the host's monotonically increasing per-recording PCM
// sample clock. The clock itself lives in the host; the mixer only ever
// reads it through this proxy.
type PaintClock interface {
	PaintTime() uint64
}

// PaintFunc is the host's paint function, invoked with the sample count the
// host should advance audio generation to. Under the core's override this
// routes the resulting interleaved stereo S16 buffer to the encoder bridge's
// NEW_AUDIO event; when the active profile has use_audio = false the wiring
// that constructs this func is responsible for dropping the write silently
// rather than skipping the call, so host-side audio generation still runs
// uninterrupted by whether a recording wants the samples.
type PaintFunc func(ctx context.Context, alignedEnd uint64) error

// AudioMixer implements the §4.6 per-frame sample-count algorithm. State is
// scoped to one recording.
type AudioMixer struct {
	clock    PaintClock
	paint    PaintFunc
	audioHz  int
	gameRate float64

	lostMixTime    float64
	skippedSamples uint64

	// LastSamplesThisFrame and LastAlignedEnd record the most recent tick's
	// results for tests and diagnostics.
	LastSamplesThisFrame uint64
	LastAlignedEnd       uint64
}

// NewAudioMixer constructs a mixer for one recording. gameRate is
// video_fps * motion_blur.multiplier, matching the scheduler's host-rate
// contract.
func NewAudioMixer(clock PaintClock, paint PaintFunc, audioHz int, gameRate float64) *AudioMixer {
	return &AudioMixer{clock: clock, paint: paint, audioHz: audioHz, gameRate: gameRate}
}

// Tick runs one frame of the mixer's sample-count algorithm.
func (m *AudioMixer) Tick(ctx context.Context) error {
	t0 := m.clock.PaintTime()

	target := (1/m.gameRate)*float64(m.audioHz) + m.lostMixTime
	need := math.Floor(target)
	m.lostMixTime = target - need

	rawEnd := t0 + uint64(need) + m.skippedSamples
	alignedEnd := rawEnd &^ 3
	samplesThisFrame := alignedEnd - t0
	m.skippedSamples = rawEnd - alignedEnd

	m.LastAlignedEnd = alignedEnd
	m.LastSamplesThisFrame = samplesThisFrame

	if samplesThisFrame > 0 {
		return m.paint(ctx, alignedEnd)
	}
	return nil
}
