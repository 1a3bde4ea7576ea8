package executable

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ReadEnd is the exclusively-owned read end of a pipe.
//
// A ReadEnd is not safe for concurrent use: exactly one goroutine reads from it
// and closes it.
type ReadEnd struct {
	fd     int
	stream Stream
	closed bool
}

// WriteEnd is the exclusively-owned write end of a pipe.
type WriteEnd struct {
	fd     int
	stream Stream
	closed bool
}

// NewPipe creates a close-on-exec pipe for the given stream. Both ends are owned by the caller.
func NewPipe(stream Stream) (*ReadEnd, *WriteEnd, error) {
	var fds [2]int

	if err := makePipe(fds[:]); err != nil {
		return nil, nil, &PipeError{Op: fmt.Sprintf("create %s pipe", stream), Err: err}
	}

	return &ReadEnd{fd: fds[0], stream: stream}, &WriteEnd{fd: fds[1], stream: stream}, nil
}

// Fd returns the underlying descriptor, or -1 once the end is closed
func (r *ReadEnd) Fd() int {
	if r.closed {
		return -1
	}
	return r.fd
}

// IsClosed reports whether this end has been closed or handed off
func (r *ReadEnd) IsClosed() bool {
	return r.closed
}

// Read performs a single read(2). A zero-length read is reported as io.EOF.
func (r *ReadEnd) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrAlreadyClosed
	}

	for {
		n, err := unix.Read(r.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 && len(p) > 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// Close closes the descriptor. Closing twice returns ErrAlreadyClosed.
func (r *ReadEnd) Close() error {
	if r.closed {
		return ErrAlreadyClosed
	}
	r.closed = true
	return unix.Close(r.fd)
}

func (r *ReadEnd) setNonblock(nonblocking bool) error {
	if r.closed {
		return ErrAlreadyClosed
	}
	return unix.SetNonblock(r.fd, nonblocking)
}

// detach moves ownership of the descriptor into an *os.File meant for the child
func (r *ReadEnd) detach() *os.File {
	if r.closed {
		panic(fmt.Sprintf("childproc internal error - detaching closed %s read end", r.stream))
	}
	r.closed = true
	return os.NewFile(uintptr(r.fd), fmt.Sprintf("%s-read", r.stream))
}

// Fd returns the underlying descriptor, or -1 once the end is closed
func (w *WriteEnd) Fd() int {
	if w.closed {
		return -1
	}
	return w.fd
}

// IsClosed reports whether this end has been closed or handed off
func (w *WriteEnd) IsClosed() bool {
	return w.closed
}

// Write performs a single write(2) and may write fewer bytes than len(p)
// when the descriptor is non-blocking.
func (w *WriteEnd) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrAlreadyClosed
	}

	for {
		n, err := unix.Write(w.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// writeAll writes p completely on a blocking descriptor
func (w *WriteEnd) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Close closes the descriptor. Closing twice returns ErrAlreadyClosed.
func (w *WriteEnd) Close() error {
	if w.closed {
		return ErrAlreadyClosed
	}
	w.closed = true
	return unix.Close(w.fd)
}

func (w *WriteEnd) setNonblock(nonblocking bool) error {
	if w.closed {
		return ErrAlreadyClosed
	}
	return unix.SetNonblock(w.fd, nonblocking)
}

// detach moves ownership of the descriptor into an *os.File meant for the child
func (w *WriteEnd) detach() *os.File {
	if w.closed {
		panic(fmt.Sprintf("childproc internal error - detaching closed %s write end", w.stream))
	}
	w.closed = true
	return os.NewFile(uintptr(w.fd), fmt.Sprintf("%s-write", w.stream))
}
