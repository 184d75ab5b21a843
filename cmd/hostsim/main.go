// Command hostsim is an interactive console harness that plays the role of
// the host application (§6.1): it drives Core.Initialize/StartMovie/Frame/
// Stop from typed commands, for manual end-to-end exercising without a real
// 3D engine attached. Grounded on the teacher's terminal_host.go raw-mode
// stdin reader and debug_commands.go's ParseCommand tokenizer, generalized
// from a machine-code monitor REPL to a recording-scheduler REPL.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"svrcore"
)

func main() {
	resourcePath := "."
	if len(os.Args) > 1 {
		resourcePath = os.Args[1]
	}

	sim := newSimulator(resourcePath)
	if err := sim.init(); err != nil {
		fmt.Fprintf(os.Stderr, "hostsim: %v\n", err)
		os.Exit(1)
	}
	defer sim.core.Shutdown(context.Background())

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Not attached to a real terminal (e.g. piped input in a script);
		// fall back to plain line reading instead of refusing to run.
		sim.runLineMode()
		return
	}
	defer term.Restore(fd, oldState)

	sim.runRawMode(fd)
}

// simulator owns the Core and the fake host-side state a real engine would
// otherwise supply: a connection toggle, a synthetic render target, and a
// synthetic audio/velocity generator driven by the "frame" command.
type simulator struct {
	resourcePath string
	core         *svrcore.Core
	console      *printingConsole
	conn         *toggleConn
	gameSRV      *svrcore.Texture
	clock        *simClock
	recording    bool
}

func newSimulator(resourcePath string) *simulator {
	return &simulator{
		resourcePath: resourcePath,
		core:         svrcore.NewCore(svrcore.NewStdLogger()),
		console:      &printingConsole{},
		conn:         &toggleConn{connected: true},
		clock:        &simClock{},
	}
}

func (s *simulator) init() error {
	backend := svrcore.NewBackend(svrcore.NewStdLogger())
	srv, err := backend.CreateTexture(context.Background(), svrcore.TextureDesc{
		Width: 1280, Height: 720, Format: svrcore.FormatBGRA8, ViewAccess: svrcore.ViewSRV,
	})
	if err != nil {
		return fmt.Errorf("creating simulated game render target: %w", err)
	}
	s.gameSRV = srv
	return s.core.Initialize(s.resourcePath, backend, s.console, s.conn)
}

// printingConsole implements svrcore.ConsoleProxy by echoing every command
// the core wants run through the host's own console, the way a real game's
// console would actually execute it.
type printingConsole struct{}

func (c *printingConsole) RunCommand(cmd string) error {
	fmt.Printf("\r\n[host console] %s\r\n", cmd)
	return nil
}

// toggleConn implements svrcore.ConnectionProxy; "connect"/"disconnect"
// commands flip it to exercise the §4.7 WAITING<->POSSIBLE transitions.
type toggleConn struct{ connected bool }

func (c *toggleConn) Connected() bool { return c.connected }

// simClock implements svrcore.PaintClock with a free-running counter the
// simulator's own paint function advances.
type simClock struct{ t uint64 }

func (c *simClock) PaintTime() uint64 { return c.t }

func (s *simulator) handleLine(line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return true

	case "connect":
		s.conn.connected = true
		fmt.Println("connected")

	case "disconnect":
		s.conn.connected = false
		fmt.Println("disconnected")

	case "startmovie":
		if len(args) == 0 {
			fmt.Println("usage: startmovie <filename.{mp4|mkv|mov}> [profile=..] [timeout=..] [autostop=0|1]")
			return false
		}
		sd := svrcore.StartData{
			GameSRV: s.gameSRV, Width: 1280, Height: 720,
			AudioChannels: 2, AudioHz: 44100, AudioBits: 16,
			Clock: s.clock,
			Paint: func(ctx context.Context, alignedEnd uint64) error {
				n := alignedEnd - s.clock.t
				s.clock.t = alignedEnd
				if n > 0 && s.core.IsAudioEnabled() {
					s.core.GiveAudio(make([]svrcore.WaveSample, n))
				}
				return nil
			},
		}
		if err := s.core.HandleStartMovie(context.Background(), args, sd); err != nil {
			fmt.Printf("startmovie failed: %v\n", err)
			return false
		}
		s.recording = true
		fmt.Printf("recording started, game_rate=%g\n", s.core.GetGameRate())

	case "frame":
		n := 1
		if len(args) > 0 {
			fmt.Sscanf(args[0], "%d", &n)
		}
		for i := 0; i < n; i++ {
			s.core.GiveVelocity(1, 0, 0)
			if err := s.core.Frame(context.Background()); err != nil {
				fmt.Printf("frame failed: %v\n", err)
				break
			}
		}
		fmt.Printf("state=%s\n", s.core.State())

	case "stop":
		if err := s.core.Stop(context.Background()); err != nil {
			fmt.Printf("stop failed: %v\n", err)
			return false
		}
		fc, emitted := s.core.LastRecordingCounts()
		fmt.Printf("stopped: %d frame(s) processed, %d emitted\n", fc, emitted)
		s.recording = false

	case "state":
		fmt.Printf("state=%s recording=%v connected=%v\n", s.core.State(), s.recording, s.conn.connected)

	case "help":
		fmt.Println("commands: startmovie <file> [k=v...] | frame [n] | stop | connect | disconnect | state | quit")

	default:
		fmt.Printf("unknown command %q (try 'help')\n", cmd)
	}
	return false
}

// runLineMode is the fallback path for non-interactive stdin (pipes, CI).
func (s *simulator) runLineMode() {
	var line strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				if s.handleLine(line.String()) {
					return
				}
				line.Reset()
			} else {
				line.WriteByte(buf[0])
			}
		}
		if err != nil {
			if line.Len() > 0 {
				s.handleLine(line.String())
			}
			return
		}
	}
}

// runRawMode reads stdin byte-by-byte in raw mode, the way the teacher's
// TerminalHost drives its MMIO device, echoing locally and handling
// backspace/enter itself since the terminal's own line discipline is off.
func (s *simulator) runRawMode(fd int) {
	fmt.Print("hostsim> ")
	var line strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n == 0 {
			if err != nil {
				return
			}
			continue
		}
		b := buf[0]
		switch b {
		case '\r', '\n':
			fmt.Print("\r\n")
			if s.handleLine(line.String()) {
				return
			}
			line.Reset()
			fmt.Print("hostsim> ")
		case 0x7F, 0x08: // DEL or BS
			if line.Len() > 0 {
				cur := line.String()
				line.Reset()
				line.WriteString(cur[:len(cur)-1])
				fmt.Print("\b \b")
			}
		case 0x03: // Ctrl-C
			fmt.Print("\r\n")
			return
		default:
			line.WriteByte(b)
			os.Stdout.Write(buf)
		}
	}
}
