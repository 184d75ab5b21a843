//go:build unix

// bridge_posix.go - POSIX shared memory + eventfd transport for the Encoder Bridge

package svrcore

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/unix"
)

// posixTransport maps the control block into an anonymous, inheritable
// memfd and uses a pair of Linux eventfds as the auto-reset wake events. The
// shared-memory handle the spec names is, on this platform, three inherited
// file descriptors rather than one: a memfd plus the two eventfds. fd
// duplication by PID (the Windows path) has no POSIX equivalent once the
// descriptors are already inherited, so the encoder is simply handed all
// three at known fd slots instead of rediscovering them.
type posixTransport struct {
	log Logger

	memFile    *os.File
	mem        []byte
	blk        *ControlBlock
	gameWakeFD int
	encWakeFD  int

	cmd     *exec.Cmd
	exited  chan struct{}
}

func newTransport(log Logger, resourcePath string) (transport, error) {
	size := int(unsafe.Sizeof(ControlBlock{}))

	memFD, err := unix.MemfdCreate("svrcore-bridge", 0)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	memFile := os.NewFile(uintptr(memFD), "svrcore-bridge")

	if err := unix.Ftruncate(memFD, int64(size)); err != nil {
		memFile.Close()
		return nil, fmt.Errorf("ftruncate shared memory: %w", err)
	}
	mem, err := unix.Mmap(memFD, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		memFile.Close()
		return nil, fmt.Errorf("mmap shared memory: %w", err)
	}

	gameWakeFD, err := unix.Eventfd(0, 0)
	if err != nil {
		unix.Munmap(mem)
		memFile.Close()
		return nil, fmt.Errorf("eventfd (game wake): %w", err)
	}
	encWakeFD, err := unix.Eventfd(0, 0)
	if err != nil {
		unix.Close(gameWakeFD)
		unix.Munmap(mem)
		memFile.Close()
		return nil, fmt.Errorf("eventfd (encoder wake): %w", err)
	}

	blk := (*ControlBlock)(unsafe.Pointer(&mem[0]))
	blk.GamePID = uint32(os.Getpid())

	gameWakeFile := os.NewFile(uintptr(gameWakeFD), "svrcore-game-wake")
	encWakeFile := os.NewFile(uintptr(encWakeFD), "svrcore-encoder-wake")

	encoderPath := resourcePath + "/svr_encoder"
	cmd := exec.Command(encoderPath, "3", "4", "5")
	cmd.ExtraFiles = []*os.File{memFile, gameWakeFile, encWakeFile}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		unix.Close(encWakeFD)
		unix.Close(gameWakeFD)
		unix.Munmap(mem)
		memFile.Close()
		return nil, fmt.Errorf("spawning encoder process: %w", err)
	}

	t := &posixTransport{
		log: log, memFile: memFile, mem: mem, blk: blk,
		gameWakeFD: gameWakeFD, encWakeFD: encWakeFD,
		cmd: cmd, exited: make(chan struct{}),
	}
	go func() {
		cmd.Wait()
		close(t.exited)
	}()
	return t, nil
}

func (t *posixTransport) block() *ControlBlock { return t.blk }

func (t *posixTransport) signalEncoder() error {
	var buf [8]byte
	buf[0] = 1
	if _, err := unix.Write(t.encWakeFD, buf[:]); err != nil {
		return fmt.Errorf("signal encoder wake: %w", err)
	}
	return nil
}

// waitPollIntervalMillis bounds how long waitCompletionOrExit blocks in
// unix.Poll before rechecking ctx/exited, so cancellation is never stuck
// behind an uninterruptible blocking read.
const waitPollIntervalMillis = 50

// waitCompletionOrExit waits on the game wake eventfd (auto-reset: reading
// it both waits for and clears the counter) racing the encoder's process
// exit and ctx cancellation. It polls with a bounded timeout rather than
// issuing a blocking unix.Read on a goroutine, since that read can never be
// interrupted by ctx and would otherwise leak the goroutine for as long as
// the eventfd stays unsignaled.
func (t *posixTransport) waitCompletionOrExit(ctx context.Context) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(t.gameWakeFD), Events: unix.POLLIN}}
	for {
		select {
		case <-t.exited:
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		n, err := unix.Poll(fds, waitPollIntervalMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false, fmt.Errorf("poll game wake: %w", err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			var buf [8]byte
			if _, err := unix.Read(t.gameWakeFD, buf[:]); err != nil {
				return false, fmt.Errorf("wait game wake: %w", err)
			}
			return false, nil
		}
	}
}

func (t *posixTransport) close() error {
	unix.Close(t.gameWakeFD)
	unix.Close(t.encWakeFD)
	if err := unix.Munmap(t.mem); err != nil {
		return err
	}
	return t.memFile.Close()
}
