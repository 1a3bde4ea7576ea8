//go:build !linux

package executable

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// makePipe creates a pipe and marks both ends close-on-exec.
// ForkLock keeps a concurrent fork from inheriting the ends before they're marked.
func makePipe(fds []int) error {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()

	if err := unix.Pipe(fds); err != nil {
		return err
	}

	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	return nil
}
