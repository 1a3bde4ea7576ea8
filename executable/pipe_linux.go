//go:build linux

package executable

import "golang.org/x/sys/unix"

// makePipe creates a pipe with both ends marked close-on-exec atomically
func makePipe(fds []int) error {
	return unix.Pipe2(fds, unix.O_CLOEXEC)
}
