// audio_mixer_test.go - Audio Mixer (C6 §4.6), §8 alignment/count invariants.

package svrcore

import (
	"context"
	"testing"
)

func TestAudioMixerAlignmentAndTotal(t *testing.T) {
	clock := &fakeClock{}
	var generated uint64
	paint := func(ctx context.Context, alignedEnd uint64) error {
		generated += alignedEnd - clock.t
		clock.t = alignedEnd
		return nil
	}
	m := NewAudioMixer(clock, paint, 44100, 60)

	const frames = 300
	for i := 0; i < frames; i++ {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if m.LastAlignedEnd%4 != 0 {
			t.Fatalf("tick %d: aligned_end %d is not a multiple of 4", i, m.LastAlignedEnd)
		}
	}

	want := uint64(float64(frames) / 60 * 44100)
	diff := int64(generated) - int64(want)
	if diff < 0 {
		diff = -diff
	}
	if diff > 3 {
		t.Errorf("total samples = %d, want within 3 of %d", generated, want)
	}
}

func TestAudioMixerSkipsWhenNoSamplesDue(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	paint := func(ctx context.Context, alignedEnd uint64) error {
		calls++
		clock.t = alignedEnd
		return nil
	}
	// An absurdly high game rate means most ticks produce zero samples
	// this frame; Tick must not call paint when samplesThisFrame == 0.
	m := NewAudioMixer(clock, paint, 100, 100000)
	for i := 0; i < 50; i++ {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if calls >= 50 {
		t.Errorf("expected paint to be skipped on some ticks, got %d calls over 50 ticks", calls)
	}
}
