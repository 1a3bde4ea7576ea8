package executable

import (
	"fmt"
	"os"
	"syscall"
)

// ExitStatus is how a process terminated: either Exited with a code or Signaled with a signal
type ExitStatus struct {
	signaled bool
	code     int
	signal   syscall.Signal
}

// Exited returns the status of a process that exited normally with code
func Exited(code int) ExitStatus {
	return ExitStatus{code: code}
}

// Signaled returns the status of a process that was terminated by sig
func Signaled(sig syscall.Signal) ExitStatus {
	return ExitStatus{signaled: true, signal: sig}
}

// Exited reports whether the process exited normally
func (s ExitStatus) Exited() bool {
	return !s.signaled
}

// Signaled reports whether the process was terminated by a signal
func (s ExitStatus) Signaled() bool {
	return s.signaled
}

// Code is the exit code. Only meaningful when Exited() is true.
func (s ExitStatus) Code() int {
	return s.code
}

// Signal is the terminating signal. Only meaningful when Signaled() is true.
func (s ExitStatus) Signal() syscall.Signal {
	return s.signal
}

// Success reports whether the process exited with code 0
func (s ExitStatus) Success() bool {
	return !s.signaled && s.code == 0
}

// ExitCode follows the shell convention: the exit code, or 128 + signal number for signals
func (s ExitStatus) ExitCode() int {
	if s.signaled {
		return 128 + int(s.signal)
	}
	return s.code
}

func (s ExitStatus) String() string {
	if s.signaled {
		return fmt.Sprintf("signaled(%s)", s.signal)
	}
	return fmt.Sprintf("exited(%d)", s.code)
}

// exitStatusFromProcessState normalizes an os.ProcessState
func exitStatusFromProcessState(state *os.ProcessState) ExitStatus {
	if status, ok := state.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return Signaled(status.Signal())
		}
		return Exited(status.ExitStatus())
	}

	return Exited(state.ExitCode())
}
