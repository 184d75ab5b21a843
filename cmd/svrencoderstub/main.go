// Command svrencoderstub is a minimal reference encoder process honoring the
// §6.3/§4.3 wire contract: it maps the shared control block, ping-pongs the
// START/NEW_VIDEO/NEW_AUDIO/STOP events, and writes a placeholder output
// file recording what it was asked to encode. It performs no real video or
// audio codec work; its only job is to give the bridge's protocol something
// real to drive in manual runs, the same role a test fixture process plays.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"svrcore"
)

// transport is the half of the ping-pong protocol this process owns: wait
// for the game to signal work, and signal back when done. Platform-specific
// files (transport_unix.go, transport_windows.go) supply the concrete type.
type transport interface {
	Block() *svrcore.ControlBlock
	WaitForWake() error
	SignalGame() error
	Close() error
}

func main() {
	t, err := openTransport(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "svrencoderstub: %v\n", err)
		os.Exit(1)
	}
	defer t.Close()

	blk := t.Block()
	var sess session

	for {
		if err := t.WaitForWake(); err != nil {
			log.Printf("svrencoderstub: wait: %v", err)
			return
		}

		blk.Error = 0
		stop := sess.handle(blk)

		if err := t.SignalGame(); err != nil {
			log.Printf("svrencoderstub: signal: %v", err)
			return
		}
		if stop {
			return
		}
	}
}

// session tracks the one in-flight recording's placeholder bookkeeping
// between events. A real encoder would own a mux/codec pipeline here; this
// stub only counts frames and stamps a human-readable log file.
type session struct {
	destFile     string
	startedAt    time.Time
	videoFrames  uint64
	audioSamples uint64
}

// handle processes one already-waited-for event and reports whether this
// was STOP (the caller exits the process after signaling back).
func (s *session) handle(blk *svrcore.ControlBlock) (stop bool) {
	switch blk.EventType {
	case svrcore.EventStart:
		s.destFile = cString(blk.MovieParams.DestFile[:])
		s.startedAt = time.Now()
		s.videoFrames, s.audioSamples = 0, 0
		if err := writeStubHeader(s.destFile, blk.MovieParams); err != nil {
			setBlockError(blk, err)
		}

	case svrcore.EventNewVideo:
		s.videoFrames++

	case svrcore.EventNewAudio:
		s.audioSamples += uint64(blk.WaitingAudioSamples)

	case svrcore.EventStop:
		if s.destFile != "" {
			if err := appendStubTrailer(s.destFile, s.videoFrames, s.audioSamples, time.Since(s.startedAt)); err != nil {
				setBlockError(blk, err)
			}
		}
		return true
	}
	return false
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func setBlockError(blk *svrcore.ControlBlock, err error) {
	blk.Error = 1
	msg := err.Error()
	n := copy(blk.ErrorMessage[:], msg)
	if n < len(blk.ErrorMessage) {
		blk.ErrorMessage[n] = 0
	}
}

func writeStubHeader(path string, p svrcore.MovieParams) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "svrencoderstub placeholder output\n"+
		"video: %dx%d @ %d fps, pixel_format=%d color_space=%d threads=%d\n"+
		"audio: %s (channels=%d hz=%d bits=%d)\n"+
		"video_encoder=%s x264_preset=%s x264_crf=%d dnxhr_profile=%s audio_encoder=%s\n",
		p.Width, p.Height, p.FPS, p.PixelFormat, p.ColorSpace, p.Threads,
		audioStatus(p.UseAudio), p.AudioChannels, p.AudioHz, p.AudioBits,
		cString(p.VideoEncoder[:]), cString(p.X264Preset[:]), p.X264CRF, cString(p.DNxHRProfile[:]), cString(p.AudioEncoder[:]))
	return err
}

func audioStatus(useAudio uint32) string {
	if useAudio != 0 {
		return "enabled"
	}
	return "disabled"
}

func appendStubTrailer(path string, videoFrames, audioSamples uint64, elapsed time.Duration) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reopening output file for trailer: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "recorded %d video frame(s), %d audio sample(s) over %s\n", videoFrames, audioSamples, elapsed.Round(time.Millisecond))
	return err
}
