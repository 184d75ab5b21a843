// bridge_fake_test.go - an in-process fake transport standing in for a real
// encoder process, so the bridge's ping-pong protocol (and everything built
// on top of it) can be exercised without spawning cmd/svrencoderstub.

package svrcore

import "context"

// fakeTransport processes every event synchronously inside signalEncoder,
// so waitCompletionOrExit has nothing left to wait for. onEvent lets a test
// inject a failure for a specific event (e.g. simulate a BridgeError on the
// third NEW_VIDEO).
type fakeTransport struct {
	blk *ControlBlock

	events   []EventType
	videoN   int
	audioN   int
	totalAudioSamples int

	onEvent func(blk *ControlBlock, event EventType)
	exit    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{blk: &ControlBlock{}}
}

func (f *fakeTransport) block() *ControlBlock { return f.blk }

func (f *fakeTransport) signalEncoder() error {
	f.events = append(f.events, f.blk.EventType)
	switch f.blk.EventType {
	case EventNewVideo:
		f.videoN++
	case EventNewAudio:
		f.audioN++
		f.totalAudioSamples += int(f.blk.WaitingAudioSamples)
	}
	f.blk.Error = 0
	if f.onEvent != nil {
		f.onEvent(f.blk, f.blk.EventType)
	}
	return nil
}

func (f *fakeTransport) waitCompletionOrExit(ctx context.Context) (bool, error) {
	return f.exit, nil
}

func (f *fakeTransport) close() error { return nil }

// newTestCore builds a Core with every static dependency wired to an
// in-memory fake: a headless GPU backend, a fake bridge transport, and the
// fake console/connection proxies supplied by the caller. It calls
// EnsureResourceLayout itself since it bypasses Core.Initialize (which would
// otherwise try to spawn a real encoder process).
func newTestCore(resourcePath string, console ConsoleProxy, conn ConnectionProxy, ft *fakeTransport) (*Core, error) {
	if err := EnsureResourceLayout(resourcePath); err != nil {
		return nil, err
	}
	log := nopLogger{}
	c := &Core{
		log:          log,
		resourcePath: resourcePath,
		backend:      NewHeadlessBackend(),
		bridge:       newEncoderBridgeWithTransport(log, ft),
		console:      console,
		conn:         conn,
		state:        StateStopped,
	}
	return c, nil
}

// fakeConsole records every command run through it; RunCommand never fails.
type fakeConsole struct {
	commands []string
}

func (f *fakeConsole) RunCommand(cmd string) error {
	f.commands = append(f.commands, cmd)
	return nil
}

// fakeConn reports a fixed or toggled connected state.
type fakeConn struct {
	connected bool
}

func (f *fakeConn) Connected() bool { return f.connected }

// fakeClock is a PaintClock standing in for the host's free-running PCM
// sample counter. PaintTime returns t unchanged; the counter only moves when
// a test's paint function advances t.
type fakeClock struct {
	t uint64
}

func (c *fakeClock) PaintTime() uint64 { return c.t }
