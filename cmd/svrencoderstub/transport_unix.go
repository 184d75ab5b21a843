//go:build unix

package main

import (
	"fmt"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"

	"svrcore"
)

// unixTransport is the mirror image of svrcore's posixTransport: the parent
// hands this process the memfd and the two eventfds as inherited
// descriptors at fixed slots (os.Args[1:4] carries their numbers, per
// bridge_posix.go's "3 4 5" invocation), rather than this side rediscovering
// them by name.
type unixTransport struct {
	mem        []byte
	blk        *svrcore.ControlBlock
	gameWakeFD int
	encWakeFD  int
}

func openTransport(args []string) (transport, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("usage: svrencoderstub <mem_fd> <game_wake_fd> <enc_wake_fd>")
	}
	memFD, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("parsing mem fd: %w", err)
	}
	gameWakeFD, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, fmt.Errorf("parsing game wake fd: %w", err)
	}
	encWakeFD, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, fmt.Errorf("parsing encoder wake fd: %w", err)
	}

	size := int(unsafe.Sizeof(svrcore.ControlBlock{}))
	mem, err := unix.Mmap(memFD, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap shared memory: %w", err)
	}
	blk := (*svrcore.ControlBlock)(unsafe.Pointer(&mem[0]))

	return &unixTransport{mem: mem, blk: blk, gameWakeFD: gameWakeFD, encWakeFD: encWakeFD}, nil
}

func (t *unixTransport) Block() *svrcore.ControlBlock { return t.blk }

// WaitForWake blocks on the encoder-wake eventfd; the read both waits for
// and clears the auto-reset counter.
func (t *unixTransport) WaitForWake() error {
	var buf [8]byte
	if _, err := unix.Read(t.encWakeFD, buf[:]); err != nil {
		return fmt.Errorf("wait encoder wake: %w", err)
	}
	return nil
}

func (t *unixTransport) SignalGame() error {
	var buf [8]byte
	buf[0] = 1
	if _, err := unix.Write(t.gameWakeFD, buf[:]); err != nil {
		return fmt.Errorf("signal game wake: %w", err)
	}
	return nil
}

func (t *unixTransport) Close() error {
	unix.Close(t.gameWakeFD)
	unix.Close(t.encWakeFD)
	return unix.Munmap(t.mem)
}
