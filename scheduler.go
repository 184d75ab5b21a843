// scheduler.go - Recording Scheduler (C7 §4.7) and the host-facing Core API (§6.1)

package svrcore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// RecordingState is the scheduler's top-level state, §4.7.
type RecordingState int

const (
	StateStopped RecordingState = iota
	StateWaiting
	StatePossible
)

func (s RecordingState) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StatePossible:
		return "POSSIBLE"
	default:
		return "STOPPED"
	}
}

// ConsoleProxy lets the scheduler drive host console commands (§4.7's
// host-rate contract and §6.2's start/end cfg files) without the core
// knowing anything about the host's command parser.
type ConsoleProxy interface {
	RunCommand(cmd string) error
}

// ConnectionProxy reports whether the host is in a recordable state (e.g.
// signon state == full). The scheduler polls it once per Frame while
// WAITING to decide the WAITING -> POSSIBLE transition, and while POSSIBLE
// to detect a disconnect.
type ConnectionProxy interface {
	Connected() bool
}

// frameDriver is the common shape of MotionBlurEngine and BypassBlit so the
// scheduler can hold either behind one field.
type frameDriver interface {
	Tick(ctx context.Context, src *Texture, emit func(ctx context.Context) error) error
	Close() error
}

// StartMovieArgs is the parsed form of the startmovie command line (§4.7,
// §6.4): a required filename plus order-independent key=value pairs.
type StartMovieArgs struct {
	Filename  string
	Profile   string
	Timeout   int
	Autostop  bool
	NoWindUpd bool
}

var movieFileExtensions = []string{".mp4", ".mkv", ".mov"}

// ParseStartMovieArgs parses the tokens following "startmovie" (the host's
// own command-line tokenizer has already split the raw string into fields;
// that split is out of scope per §1). The first token is the filename;
// every later token must be key=value. Unrecognized keys are rejected
// outright rather than silently ignored, matching §4.7's "rejected with a
// usage message" contract for a malformed command.
func ParseStartMovieArgs(tokens []string) (StartMovieArgs, error) {
	args := StartMovieArgs{Profile: "default", Autostop: true}
	if len(tokens) == 0 {
		return args, &ConfigError{Details: "usage: startmovie <filename.{mp4|mkv|mov}> [profile=<name>] [timeout=<seconds>] [autostop=<0|1>] [nowindupd=<0|1>]"}
	}
	args.Filename = tokens[0]
	if !hasMovieExtension(args.Filename) {
		return args, &ConfigError{Key: "filename", Value: args.Filename, Details: "must end in .mp4, .mkv, or .mov"}
	}
	for _, tok := range tokens[1:] {
		eq := strings.IndexByte(tok, '=')
		if eq < 0 {
			return args, &ConfigError{Details: fmt.Sprintf("malformed argument %q, expected key=value", tok)}
		}
		key, val := tok[:eq], tok[eq+1:]
		switch key {
		case "profile":
			args.Profile = val
		case "timeout":
			v, err := strconv.Atoi(val)
			if err != nil {
				return args, &ConfigError{Key: key, Value: val, Details: "not an integer"}
			}
			args.Timeout = v
		case "autostop":
			args.Autostop = boolOr(val, true)
		case "nowindupd":
			args.NoWindUpd = boolOr(val, false)
		default:
			return args, &ConfigError{Key: key, Value: val, Details: "unrecognized startmovie argument"}
		}
	}
	return args, nil
}

func hasMovieExtension(name string) bool {
	for _, ext := range movieFileExtensions {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return true
		}
	}
	return false
}

// StartData is the §6.1 start_movie payload the host supplies: the shared
// SRV it renders into, the audio format it generates, and the callbacks the
// per-frame pipeline needs (velocity is pushed separately via GiveVelocity).
type StartData struct {
	GameSRV       *Texture
	Width         uint32
	Height        uint32
	AudioChannels uint32
	AudioHz       uint32
	AudioBits     uint32

	Clock PaintClock
	Paint PaintFunc
}

// recording holds everything allocated for the lifetime of a single movie,
// torn down at Stop (§5 "Resource lifetimes"). endMovie releases the four
// GPU-side resources concurrently, in no fixed order.
type recording struct {
	profile   *Profile
	args      StartMovieArgs
	startData StartData

	gameRate float64

	output   *Texture
	conv     *Conversion
	textFmt  *TextFormat
	driver   frameDriver
	mixer    *AudioMixer

	velocity      [3]float64
	pendingAudio  []WaveSample
	frameCount    uint64
	emittedFrames uint64
}

// Core is the top-level object the host embeds: one Core per process
// session, surviving across recordings (§5 "static allocations"). Initialize
// wires the GPU backend and encoder bridge once; StartMovie/Frame/Stop drive
// individual recordings.
type Core struct {
	log          Logger
	resourcePath string
	backend      GPUBackend
	bridge       *EncoderBridge
	console      ConsoleProxy
	conn         ConnectionProxy

	state RecordingState
	rec   *recording

	// lastFrameCount/lastEmittedFrames snapshot the most recently finished
	// recording's counters (§8 invariant 1), since rec itself is released
	// at endMovie.
	lastFrameCount    uint64
	lastEmittedFrames uint64
}

// NewCore constructs an uninitialized Core. Call Initialize before anything
// else; every other method is a no-op (or returns an error) until it
// succeeds.
func NewCore(log Logger) *Core {
	if log == nil {
		log = nopLogger{}
	}
	return &Core{log: log, state: StateStopped}
}

// Initialize is the host's one-time init call (§6.1). resourcePath roots
// the data directory (§6.2); backend is the already-constructed GPU backend
// the host wants the core to render through (the host resolves its opaque
// graphics-device handle into one of gpuVulkanBackend/gpuHeadlessBackend
// before calling in, per the design note on COM/vtable dispatch -> explicit
// interfaces). console and conn wire the host's command execution and
// connection-state predicate.
func (c *Core) Initialize(resourcePath string, backend GPUBackend, console ConsoleProxy, conn ConnectionProxy) error {
	if backend == nil {
		return &ConfigError{Details: "initialize: backend is required"}
	}
	if err := EnsureResourceLayout(resourcePath); err != nil {
		return &ConfigError{Details: fmt.Sprintf("initialize: %v", err)}
	}
	bridge, err := NewEncoderBridge(c.log, resourcePath)
	if err != nil {
		return err
	}
	c.resourcePath = resourcePath
	c.backend = backend
	c.bridge = bridge
	c.console = console
	c.conn = conn
	c.state = StateStopped
	return nil
}

// runCfg executes every non-blank, non-comment line of a host cfg file
// through the console proxy. A missing file is a HostCommandError (§4.7,
// §7): start cfg is required for start_movie to succeed; end cfg failures
// are logged but never block teardown.
func (c *Core) runCfg(path string, fatal bool) error {
	lines, err := readCfgLines(path)
	if err != nil {
		herr := &HostCommandError{Path: path, Err: err}
		if fatal {
			return herr
		}
		c.log.Errorf("%v", herr)
		return nil
	}
	for _, line := range lines {
		if c.console == nil {
			continue
		}
		if err := c.console.RunCommand(line); err != nil {
			c.log.Errorf("console command %q failed: %v", line, err)
		}
	}
	return nil
}

// StartMovie implements §4.7's STOPPED -> WAITING transition: parses no
// arguments itself (ParseStartMovieArgs already ran; see HandleStartMovie
// for the raw command-string entry point), loads the profile, allocates the
// recording's GPU/bridge resources, and dispatches the bridge's START event.
func (c *Core) StartMovie(ctx context.Context, args StartMovieArgs, startData StartData) error {
	if c.backend == nil {
		return &ConfigError{Details: "start_movie called before initialize"}
	}
	if c.state != StateStopped {
		return &ConfigError{Details: fmt.Sprintf("start_movie: already recording (state=%s)", c.state)}
	}
	if startData.Width < 2 || startData.Height < 2 {
		return &ConfigError{Details: "video dimensions must be at least 2x2"}
	}

	profile, err := LoadProfile(c.log, c.resourcePath+"/data/profiles", args.Profile)
	if err != nil {
		return err
	}

	if err := c.runCfg(c.resourcePath+"/data/cfg/svr_movie_start.cfg", true); err != nil {
		return err
	}

	gameRate := float64(profile.VideoFPS)
	if profile.MotionBlurEnabled && profile.MotionBlurMultiplier > 1 {
		gameRate = float64(profile.VideoFPS * profile.MotionBlurMultiplier)
	}
	if c.console != nil {
		c.console.RunCommand(fmt.Sprintf("host_framerate %g", gameRate))
		if args.NoWindUpd {
			c.console.RunCommand("host_norestart_present 1")
		}
	}

	output, err := c.backend.CreateTexture(ctx, TextureDesc{
		Width: startData.Width, Height: startData.Height,
		Format:     FormatBGRA8,
		Usage:      UsageDefault,
		ViewAccess: ViewSRV | ViewRTV,
		CPUAccess:  CPUAccessRead,
		Caps:       CapDownloadable | CapShared | CapTextTarget,
	})
	if err != nil {
		return &GPUError{Operation: "start_movie.output_texture", Err: err}
	}

	conv, err := c.backend.CreateConversion(ctx, ConversionDesc{
		Width: startData.Width, Height: startData.Height,
		SourceFormat:   FormatBGRA8,
		DestFormat:     profile.VideoPixelFormat,
		DestColorSpace: profile.VideoColorSpace,
	})
	if err != nil {
		c.backend.DestroyTexture(output)
		return &GPUError{Operation: "start_movie.conversion", Err: err}
	}

	var driver frameDriver
	if profile.MotionBlurEnabled && profile.MotionBlurMultiplier > 1 {
		driver, err = NewMotionBlurEngine(ctx, c.backend, c.log, startData.Width, startData.Height, output, profile)
	} else {
		driver = NewBypassBlit(c.backend, output)
	}
	if err != nil {
		c.backend.DestroyConversion(conv)
		c.backend.DestroyTexture(output)
		return err
	}

	var textFmt *TextFormat
	if profile.VeloEnabled {
		textFmt, err = c.backend.CreateTextFormat(TextFormatDesc{
			FontFamily: profile.VeloFontFamily,
			FontSize:   float32(profile.VeloFontSize),
			Color:      colorF32(profile.VeloColor),
			BorderColor: colorF32(profile.VeloBorderColor),
			BorderWidth: float32(profile.VeloBorderSize),
			Weight:      profile.VeloFontWeight,
			Style:       profile.VeloFontStyle,
		}, output)
		if err != nil {
			driver.Close()
			c.backend.DestroyConversion(conv)
			c.backend.DestroyTexture(output)
			return &GPUError{Operation: "start_movie.text_format", Err: err}
		}
	}

	rec := &recording{
		profile: profile, args: args, startData: startData,
		gameRate: gameRate,
		output:   output, conv: conv, textFmt: textFmt, driver: driver,
	}
	rec.mixer = NewAudioMixer(startData.Clock, c.paintAdapter(rec), int(startData.AudioHz), gameRate)

	params := MovieParams{
		Width: startData.Width, Height: startData.Height, FPS: uint32(profile.VideoFPS),
		AudioChannels: startData.AudioChannels, AudioHz: startData.AudioHz, AudioBits: startData.AudioBits,
		UseAudio:    boolToU32(profile.AudioEnabled),
		X264CRF:     uint32(profile.VideoX264CRF),
		X264Intra:   boolToU32(profile.VideoX264Intra),
		PixelFormat: uint32(profile.VideoPixelFormat),
		ColorSpace:  uint32(profile.VideoColorSpace),
		Threads:     uint32(profile.VideoThreads),
		MediaFlags:  mediaFlagsFor(profile),
	}
	putCString(params.DestFile[:], args.Filename)
	putCString(params.VideoEncoder[:], string(profile.VideoEncoder))
	putCString(params.X264Preset[:], string(profile.VideoX264Preset))
	putCString(params.DNxHRProfile[:], string(profile.VideoDNxHRProfile))
	putCString(params.AudioEncoder[:], string(profile.AudioEncoder))

	var textureHandle uint32
	if startData.GameSRV != nil {
		textureHandle = uint32(startData.GameSRV.id)
	}
	if err := c.bridge.Start(ctx, params, textureHandle); err != nil {
		textFmt.closeIfSet(c.backend)
		driver.Close()
		c.backend.DestroyConversion(conv)
		c.backend.DestroyTexture(output)
		return err
	}

	c.rec = rec
	c.state = StateWaiting
	return nil
}

// HandleStartMovie is the §6.4 console-command entry point: it parses the
// raw token list and, on success, calls StartMovie.
func (c *Core) HandleStartMovie(ctx context.Context, tokens []string, startData StartData) error {
	args, err := ParseStartMovieArgs(tokens)
	if err != nil {
		return err
	}
	return c.StartMovie(ctx, args, startData)
}

func colorF32(c [4]float64) [4]float32 {
	return [4]float32{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}
}

func mediaFlagsFor(p *Profile) uint32 {
	var flags uint32
	if p.AudioEnabled {
		flags |= mediaFlagAudio
	}
	flags |= mediaFlagVideo
	return flags
}

func (tf *TextFormat) closeIfSet(backend GPUBackend) {
	if tf != nil {
		backend.DestroyTextFormat(tf)
	}
}

// paintAdapter builds the PaintFunc the audio mixer invokes. It calls the
// host's own paint function (which synchronously calls back into GiveAudio
// before returning) and then forwards whatever landed in rec.pendingAudio to
// the bridge, unless the profile has audio disabled, in which case the host
// still runs its mix (keeping its own internal clock consistent) but the
// samples are dropped on the floor (§4.6).
func (c *Core) paintAdapter(rec *recording) PaintFunc {
	return func(ctx context.Context, alignedEnd uint64) error {
		if rec.startData.Paint == nil {
			return nil
		}
		rec.pendingAudio = rec.pendingAudio[:0]
		if err := rec.startData.Paint(ctx, alignedEnd); err != nil {
			return err
		}
		if !rec.profile.AudioEnabled || len(rec.pendingAudio) == 0 {
			rec.pendingAudio = rec.pendingAudio[:0]
			return nil
		}
		samples := append([]WaveSample(nil), rec.pendingAudio...)
		rec.pendingAudio = rec.pendingAudio[:0]
		return c.bridge.PushAudio(ctx, samples)
	}
}

// GiveVelocity is the §6.1 per-frame velocity push from the host.
func (c *Core) GiveVelocity(x, y, z float64) {
	if c.rec == nil {
		return
	}
	c.rec.velocity = [3]float64{x, y, z}
}

// GiveAudio is the §6.1 per-frame audio push from the host: it is called
// synchronously from inside the host's paint function (see paintAdapter),
// supplying exactly the samples that paint generated for this submission.
func (c *Core) GiveAudio(samples []WaveSample) {
	if c.rec == nil {
		return
	}
	c.rec.pendingAudio = append(c.rec.pendingAudio, samples...)
}

// IsVeloEnabled, IsAudioEnabled, GetGameRate reflect the active profile
// (§6.1 queries). They return the zero value when no recording is active.
func (c *Core) IsVeloEnabled() bool {
	return c.rec != nil && c.rec.profile.VeloEnabled
}

func (c *Core) IsAudioEnabled() bool {
	return c.rec != nil && c.rec.profile.AudioEnabled
}

func (c *Core) GetGameRate() float64 {
	if c.rec == nil {
		return 0
	}
	return c.rec.gameRate
}

// State reports the scheduler's current top-level state.
func (c *Core) State() RecordingState { return c.state }

// Frame is the §6.1 per-frame entry point, called once per host simulation
// step regardless of recording state. It implements the WAITING ->
// POSSIBLE transition and the POSSIBLE <-> WAITING/STOPPED disconnect
// handling, then (only while POSSIBLE) runs the §4.7 per-frame tick.
// Frame calls while WAITING with no connection-state change are no-ops,
// per the design note resolving that open question.
func (c *Core) Frame(ctx context.Context) error {
	if c.rec == nil {
		return nil
	}
	connected := c.conn == nil || c.conn.Connected()

	switch c.state {
	case StateWaiting:
		if connected {
			c.state = StatePossible
		}
		return nil
	case StatePossible:
		if !connected {
			if c.rec.args.Autostop {
				return c.endMovie(ctx)
			}
			c.state = StateWaiting
			return nil
		}
	default:
		return nil
	}

	if err := c.tick(ctx); err != nil {
		c.log.Errorf("frame tick failed: %v", err)
		return c.endMovie(ctx)
	}

	rec := c.rec
	rec.frameCount++
	if rec.args.Timeout > 0 && float64(rec.frameCount) >= float64(rec.args.Timeout)*rec.gameRate {
		return c.endMovie(ctx)
	}
	return nil
}

// tick runs one iteration of the §4.7 per-frame sequence: mix audio, then
// step the frame driver (which may emit 0, 1, or more encoded frames); each
// emitted frame gets the velocity overlay drawn onto it, is converted to the
// destination pixel format, and is pushed as NEW_VIDEO.
func (c *Core) tick(ctx context.Context) error {
	rec := c.rec

	if err := rec.mixer.Tick(ctx); err != nil {
		return err
	}

	src := rec.startData.GameSRV
	return rec.driver.Tick(ctx, src, func(ctx context.Context) error {
		if rec.profile.VeloEnabled && rec.textFmt != nil {
			speed := VelocityLength(rec.profile.VeloLength, rec.velocity[0], rec.velocity[1], rec.velocity[2])
			text := strconv.Itoa(speed)
			w, h, _ := c.backend.GetTextureSize(rec.output)
			textW := measureText(TextFormatDesc{FontFamily: rec.profile.VeloFontFamily, FontSize: float32(rec.profile.VeloFontSize)}, text)
			x, y := textOrigin(rec.profile.VeloAnchor, rec.profile.VeloAlignX, rec.profile.VeloAlignY, textW, int(rec.profile.VeloFontSize), int(w), int(h))
			if err := c.backend.DrawText(ctx, rec.textFmt, text, Rect{X: x, Y: y, W: int(w) - x, H: int(h) - y}); err != nil {
				return &GPUError{Operation: "overlay.draw_text", Err: err}
			}
		}
		if err := c.backend.ConvertPixelFormat(ctx, rec.conv, rec.output); err != nil {
			return &GPUError{Operation: "tick.convert_pixel_format", Err: err}
		}
		if err := c.bridge.PushVideo(ctx); err != nil {
			return err
		}
		rec.emittedFrames++
		return nil
	})
}

// Stop is the §6.1 explicit end_movie call.
func (c *Core) Stop(ctx context.Context) error {
	if c.rec == nil {
		return nil
	}
	return c.endMovie(ctx)
}

// endMovie tears a recording down (§5 "Resource lifetimes") and returns to
// STOPPED, always running the end cfg regardless of whether the recording
// ended cleanly or via a fatal error. The encoder is stopped first since
// everything else only releases resources on the game's own side; the four
// GPU-side releases that follow (text format, frame driver, conversion,
// output texture) touch four independent backend handles with nothing else
// racing them at this point, so they run concurrently via errgroup rather
// than as a forced sequential chain.
func (c *Core) endMovie(ctx context.Context) error {
	rec := c.rec
	c.bridge.Stop(ctx)

	var g errgroup.Group
	g.Go(func() error {
		if rec.textFmt == nil {
			return nil
		}
		return c.backend.DestroyTextFormat(rec.textFmt)
	})
	g.Go(rec.driver.Close)
	g.Go(func() error { return c.backend.DestroyConversion(rec.conv) })
	g.Go(func() error { return c.backend.DestroyTexture(rec.output) })
	if err := g.Wait(); err != nil {
		c.log.Errorf("tearing down recording resources: %v", err)
	}

	c.runCfg(c.resourcePath+"/data/cfg/svr_movie_end.cfg", false)

	c.lastFrameCount = rec.frameCount
	c.lastEmittedFrames = rec.emittedFrames
	c.rec = nil
	c.state = StateStopped
	return nil
}

// LastRecordingCounts reports the processed-frame and emitted-video-frame
// counters from the most recently finished recording, for the §8 frame- and
// audio-count invariants.
func (c *Core) LastRecordingCounts() (frameCount, emittedFrames uint64) {
	return c.lastFrameCount, c.lastEmittedFrames
}

// Shutdown releases the encoder bridge and every static resource. Called
// once at process exit; any active recording is stopped first.
func (c *Core) Shutdown(ctx context.Context) error {
	if c.rec != nil {
		c.endMovie(ctx)
	}
	if c.bridge == nil {
		return nil
	}
	return c.bridge.Close()
}
