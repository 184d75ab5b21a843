//go:build windows

// bridge_windows.go - Win32 named shared memory + event transport for the Encoder Bridge

package svrcore

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	winInvalidHandleValue = ^uintptr(0)
	winPageReadWrite      = 0x04
	winFileMapAllAccess   = 0xF001F
	winWaitObject0        = 0x00000000
	winWaitTimeout        = 0x00000102
)

var (
	kernel32Once sync.Once
	kernel32Err  error

	procCreateFileMappingW   func(hFile uintptr, attrs uintptr, protect uint32, sizeHigh, sizeLow uint32, name *uint16) uintptr
	procMapViewOfFile        func(handle uintptr, access uint32, offHigh, offLow uint32, size uintptr) uintptr
	procUnmapViewOfFile      func(addr uintptr) int32
	procCreateEventW         func(attrs uintptr, manualReset, initialState int32, name *uint16) uintptr
	procSetEvent             func(handle uintptr) int32
	procWaitForMultipleObjects func(count uint32, handles *uintptr, waitAll int32, millis uint32) uint32
	procCloseHandle          func(handle uintptr) int32
)

// loadKernel32 resolves the handful of kernel32 entry points the transport
// needs, with no cgo: purego loads the system DLL and binds typed Go
// function variables directly to its exports.
func loadKernel32() error {
	kernel32Once.Do(func() {
		lib, err := purego.Dlopen("kernel32.dll", purego.RTLD_NOW)
		if err != nil {
			kernel32Err = fmt.Errorf("loading kernel32.dll: %w", err)
			return
		}
		purego.RegisterLibFunc(&procCreateFileMappingW, lib, "CreateFileMappingW")
		purego.RegisterLibFunc(&procMapViewOfFile, lib, "MapViewOfFile")
		purego.RegisterLibFunc(&procUnmapViewOfFile, lib, "UnmapViewOfFile")
		purego.RegisterLibFunc(&procCreateEventW, lib, "CreateEventW")
		purego.RegisterLibFunc(&procSetEvent, lib, "SetEvent")
		purego.RegisterLibFunc(&procWaitForMultipleObjects, lib, "WaitForMultipleObjects")
		purego.RegisterLibFunc(&procCloseHandle, lib, "CloseHandle")
	})
	return kernel32Err
}

func utf16PtrFromString(s string) *uint16 {
	p, err := syscall.UTF16PtrFromString(s)
	if err != nil {
		return nil
	}
	return p
}

// windowsTransport backs the control block with a named file mapping and two
// named, auto-reset event objects (manualReset=0 to CreateEventW, which is
// exactly the semantics the ping-pong protocol requires: a successful wait
// resets the event itself). Names are derived from the core's own PID so a
// concurrently running second session never collides.
type windowsTransport struct {
	log Logger

	mappingHandle uintptr
	viewAddr      uintptr
	blk           *ControlBlock

	gameWakeHandle uintptr
	encWakeHandle  uintptr

	cmd    *exec.Cmd
	exited chan struct{}
}

func newTransport(log Logger, resourcePath string) (transport, error) {
	if err := loadKernel32(); err != nil {
		return nil, err
	}

	pid := syscall.Getpid()
	size := uint32(unsafe.Sizeof(ControlBlock{}))
	mappingName := "Local\\svrcore-bridge-" + strconv.Itoa(pid)

	mapping := procCreateFileMappingW(winInvalidHandleValue, 0, winPageReadWrite, 0, size, utf16PtrFromString(mappingName))
	if mapping == 0 {
		return nil, fmt.Errorf("CreateFileMappingW failed")
	}
	view := procMapViewOfFile(mapping, winFileMapAllAccess, 0, 0, uintptr(size))
	if view == 0 {
		procCloseHandle(mapping)
		return nil, fmt.Errorf("MapViewOfFile failed")
	}

	gameWakeName := "Local\\svrcore-game-wake-" + strconv.Itoa(pid)
	encWakeName := "Local\\svrcore-encoder-wake-" + strconv.Itoa(pid)
	gameWake := procCreateEventW(0, 0, 0, utf16PtrFromString(gameWakeName))
	if gameWake == 0 {
		procUnmapViewOfFile(view)
		procCloseHandle(mapping)
		return nil, fmt.Errorf("CreateEventW (game wake) failed")
	}
	encWake := procCreateEventW(0, 0, 0, utf16PtrFromString(encWakeName))
	if encWake == 0 {
		procCloseHandle(gameWake)
		procUnmapViewOfFile(view)
		procCloseHandle(mapping)
		return nil, fmt.Errorf("CreateEventW (encoder wake) failed")
	}

	blk := (*ControlBlock)(unsafe.Pointer(view))
	blk.GamePID = uint32(pid)

	encoderPath := resourcePath + "\\svr_encoder.exe"
	cmd := exec.Command(encoderPath, mappingName, gameWakeName, encWakeName)
	if err := cmd.Start(); err != nil {
		procCloseHandle(encWake)
		procCloseHandle(gameWake)
		procUnmapViewOfFile(view)
		procCloseHandle(mapping)
		return nil, fmt.Errorf("spawning encoder process: %w", err)
	}

	t := &windowsTransport{
		log: log, mappingHandle: mapping, viewAddr: view, blk: blk,
		gameWakeHandle: gameWake, encWakeHandle: encWake,
		cmd: cmd, exited: make(chan struct{}),
	}
	go func() {
		cmd.Wait()
		close(t.exited)
	}()
	return t, nil
}

func (t *windowsTransport) block() *ControlBlock { return t.blk }

func (t *windowsTransport) signalEncoder() error {
	if procSetEvent(t.encWakeHandle) == 0 {
		return fmt.Errorf("SetEvent (encoder wake) failed")
	}
	return nil
}

// waitPollMillis bounds each WaitForMultipleObjects call so the loop can
// recheck ctx between waits; passing INFINITE here would block the call
// past ctx cancellation, and running it on a goroutine wouldn't help since
// that goroutine could never be told to stop waiting either.
const waitPollMillis = 50

// waitCompletionOrExit waits on the game-wake event and the encoder process
// handle together, using WaitForMultipleObjects's native "wait for either"
// semantics on each poll interval rather than a single infinite wait.
func (t *windowsTransport) waitCompletionOrExit(ctx context.Context) (bool, error) {
	procHandle, err := openProcessHandle(t.cmd.Process.Pid)
	if err != nil {
		return false, err
	}
	defer procCloseHandle(procHandle)

	handles := [2]uintptr{t.gameWakeHandle, procHandle}
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		res := procWaitForMultipleObjects(2, &handles[0], 0, waitPollMillis)
		switch res {
		case winWaitObject0:
			return false, nil
		case winWaitObject0 + 1:
			return true, nil
		case winWaitTimeout:
			continue
		default:
			return false, fmt.Errorf("WaitForMultipleObjects returned %d", res)
		}
	}
}

func openProcessHandle(pid int) (uintptr, error) {
	h, err := syscall.OpenProcess(syscall.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		return 0, fmt.Errorf("OpenProcess: %w", err)
	}
	return uintptr(h), nil
}

func (t *windowsTransport) close() error {
	procCloseHandle(t.encWakeHandle)
	procCloseHandle(t.gameWakeHandle)
	procUnmapViewOfFile(t.viewAddr)
	procCloseHandle(t.mappingHandle)
	return nil
}
