package executable

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyClosed is returned when a pipe end is used or closed after it was already closed
	ErrAlreadyClosed = errors.New("descriptor already closed")

	// ErrAlreadyWaited is returned by a second ProcessHandle.Wait
	ErrAlreadyWaited = errors.New("process already waited")

	// ErrTableShutdown is returned when spawning into a process table that has been shut down
	ErrTableShutdown = errors.New("process table is shut down")
)

// SpawnError is returned when a process could not be launched.
// No process is left running and no descriptors are left open when it is returned.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// PipeError is returned when a descriptor could not be created or duplicated while planning stdio
type PipeError struct {
	Op  string
	Err error
}

func (e *PipeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PipeError) Unwrap() error {
	return e.Err
}

// IOError is a read or write failure on a single stream during a transfer.
// It ends that stream's participation only; the other streams keep going.
type IOError struct {
	Stream Stream
	Op     string
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stream, e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// WaitError is returned by ProcessHandle.Wait on a double wait, or when the pid can't be reaped
type WaitError struct {
	Pid int
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait for pid %d: %v", e.Pid, e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}
