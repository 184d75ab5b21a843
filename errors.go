// errors.go - error kinds for the capture core

package svrcore

import "fmt"

// ConfigError reports a problem loading or validating a movie profile or
// command argument: a missing/invalid key, a bad filename extension, or an
// unrecognized enum spelling. The caller logs it and substitutes a default
// where one exists; start_movie fails outright when no default applies.
type ConfigError struct {
	Key     string
	Value   string
	Details string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: %s", e.Details)
	}
	return fmt.Sprintf("config: key %q value %q: %s", e.Key, e.Value, e.Details)
}

// GPUError wraps a failed GPU backend call. Operation names the call that
// failed (e.g. "create_texture"); Details adds context; Err is the underlying
// backend error if one exists.
type GPUError struct {
	Operation string
	Details   string
	Err       error
}

func (e *GPUError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gpu %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("gpu %s failed: %s", e.Operation, e.Details)
}

func (e *GPUError) Unwrap() error { return e.Err }

// BridgeError reports that the encoder process exited unexpectedly or
// completed an event with a nonzero error field. Message carries whatever the
// encoder wrote into its error_message buffer, if anything.
type BridgeError struct {
	Event   string
	Message string
	Fatal   bool
}

func (e *BridgeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bridge: %s failed", e.Event)
	}
	return fmt.Sprintf("bridge: %s failed: %s", e.Event, e.Message)
}

// HostCommandError reports that a required host console-command file (start
// or end cfg) was absent, causing start_movie to fail outright.
type HostCommandError struct {
	Path string
	Err  error
}

func (e *HostCommandError) Error() string {
	return fmt.Sprintf("host command file %q: %v", e.Path, e.Err)
}

func (e *HostCommandError) Unwrap() error { return e.Err }

// OverflowError records that an audio batch exceeded the bridge's ring
// capacity. It is never surfaced to the host: the bridge fragments the write
// transparently and this type only exists so internal logging and tests can
// distinguish the case.
type OverflowError struct {
	Requested int
	Capacity  int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("audio batch of %d samples exceeds ring capacity %d, fragmenting", e.Requested, e.Capacity)
}
