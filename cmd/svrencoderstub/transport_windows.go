//go:build windows

package main

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/ebitengine/purego"

	"svrcore"
)

const (
	winFileMapAllAccess = 0xF001F
	winSynchronize      = 0x00100000
	winEventModifyState = 0x0002
	winWaitObject0      = 0x00000000
	winInfinite         = 0xFFFFFFFF
)

var (
	kernel32Once sync.Once
	kernel32Err  error

	procOpenFileMappingW    func(access uint32, inherit int32, name *uint16) uintptr
	procMapViewOfFile       func(handle uintptr, access uint32, offHigh, offLow uint32, size uintptr) uintptr
	procUnmapViewOfFile     func(addr uintptr) int32
	procOpenEventW          func(access uint32, inherit int32, name *uint16) uintptr
	procSetEvent            func(handle uintptr) int32
	procWaitForSingleObject func(handle uintptr, millis uint32) uint32
	procCloseHandle         func(handle uintptr) int32
)

func loadKernel32() error {
	kernel32Once.Do(func() {
		lib, err := purego.Dlopen("kernel32.dll", purego.RTLD_NOW)
		if err != nil {
			kernel32Err = fmt.Errorf("loading kernel32.dll: %w", err)
			return
		}
		purego.RegisterLibFunc(&procOpenFileMappingW, lib, "OpenFileMappingW")
		purego.RegisterLibFunc(&procMapViewOfFile, lib, "MapViewOfFile")
		purego.RegisterLibFunc(&procUnmapViewOfFile, lib, "UnmapViewOfFile")
		purego.RegisterLibFunc(&procOpenEventW, lib, "OpenEventW")
		purego.RegisterLibFunc(&procSetEvent, lib, "SetEvent")
		purego.RegisterLibFunc(&procWaitForSingleObject, lib, "WaitForSingleObject")
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

// windowsTransport opens (never creates) the named mapping and the two
// named events the game process already created, per bridge_windows.go's
// "Local\\svrcore-bridge-<pid>" naming convention passed in as argv.
type windowsTransport struct {
	mappingHandle  uintptr
	viewAddr       uintptr
	blk            *svrcore.ControlBlock
	gameWakeHandle uintptr
	encWakeHandle  uintptr
}

func openTransport(args []string) (transport, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("usage: svrencoderstub.exe <mapping_name> <game_wake_name> <enc_wake_name>")
	}
	if err := loadKernel32(); err != nil {
		return nil, err
	}
	mappingName, gameWakeName, encWakeName := args[0], args[1], args[2]

	mapping := procOpenFileMappingW(winFileMapAllAccess, 0, utf16PtrFromString(mappingName))
	if mapping == 0 {
		return nil, fmt.Errorf("OpenFileMappingW(%q) failed", mappingName)
	}
	view := procMapViewOfFile(mapping, winFileMapAllAccess, 0, 0, unsafe.Sizeof(svrcore.ControlBlock{}))
	if view == 0 {
		procCloseHandle(mapping)
		return nil, fmt.Errorf("MapViewOfFile failed")
	}

	gameWake := procOpenEventW(winSynchronize|winEventModifyState, 0, utf16PtrFromString(gameWakeName))
	if gameWake == 0 {
		procUnmapViewOfFile(view)
		procCloseHandle(mapping)
		return nil, fmt.Errorf("OpenEventW(%q) failed", gameWakeName)
	}
	encWake := procOpenEventW(winSynchronize|winEventModifyState, 0, utf16PtrFromString(encWakeName))
	if encWake == 0 {
		procCloseHandle(gameWake)
		procUnmapViewOfFile(view)
		procCloseHandle(mapping)
		return nil, fmt.Errorf("OpenEventW(%q) failed", encWakeName)
	}

	blk := (*svrcore.ControlBlock)(unsafe.Pointer(view))
	return &windowsTransport{
		mappingHandle: mapping, viewAddr: view, blk: blk,
		gameWakeHandle: gameWake, encWakeHandle: encWake,
	}, nil
}

func (t *windowsTransport) Block() *svrcore.ControlBlock { return t.blk }

func (t *windowsTransport) WaitForWake() error {
	res := procWaitForSingleObject(t.encWakeHandle, winInfinite)
	if res != winWaitObject0 {
		return fmt.Errorf("WaitForSingleObject returned %d", res)
	}
	return nil
}

func (t *windowsTransport) SignalGame() error {
	if procSetEvent(t.gameWakeHandle) == 0 {
		return fmt.Errorf("SetEvent (game wake) failed")
	}
	return nil
}

func (t *windowsTransport) Close() error {
	procCloseHandle(t.encWakeHandle)
	procCloseHandle(t.gameWakeHandle)
	procUnmapViewOfFile(t.viewAddr)
	procCloseHandle(t.mappingHandle)
	return nil
}
