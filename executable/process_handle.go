package executable

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ProcessHandle owns a spawned process and reaps it exactly once.
//
// Wait may be called once. A second call fails with a WaitError wrapping
// ErrAlreadyWaited instead of returning a cached status.
type ProcessHandle struct {
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	table     *ProcessTable

	// processGroup is set when the process leads its own process group
	processGroup bool

	mu     sync.Mutex
	waited bool
	status *ExitStatus
}

func newProcessHandle(cmd *exec.Cmd, startedAt time.Time, table *ProcessTable, processGroup bool) *ProcessHandle {
	return &ProcessHandle{
		cmd:          cmd,
		pid:          cmd.Process.Pid,
		startedAt:    startedAt,
		table:        table,
		processGroup: processGroup,
	}
}

// Pid is the OS process id
func (h *ProcessHandle) Pid() int {
	return h.pid
}

// StartedAt is when the process was spawned
func (h *ProcessHandle) StartedAt() time.Time {
	return h.startedAt
}

// Status returns the exit status once Wait has completed
func (h *ProcessHandle) Status() (ExitStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status == nil {
		return ExitStatus{}, false
	}
	return *h.status, true
}

// Waited reports whether Wait has been called
func (h *ProcessHandle) Waited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waited
}

// Wait blocks until the process terminates and returns its normalized exit status.
// It never closes pipe ends: those belong to Streams.
func (h *ProcessHandle) Wait() (ExitStatus, error) {
	h.mu.Lock()
	if h.waited {
		h.mu.Unlock()
		return ExitStatus{}, &WaitError{Pid: h.pid, Err: ErrAlreadyWaited}
	}
	h.waited = true
	h.mu.Unlock()

	err := h.cmd.Wait()

	// Whatever happened, this pid can't be reaped through the handle anymore
	h.table.remove(h)

	if err != nil {
		// A non-zero exit is still a terminal status, anything else means the pid couldn't be reaped
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			return ExitStatus{}, &WaitError{Pid: h.pid, Err: err}
		}
	}

	status := exitStatusFromProcessState(h.cmd.ProcessState)

	h.mu.Lock()
	h.status = &status
	h.mu.Unlock()

	return status, nil
}

// Kill sends SIGKILL to the process. Killing a process that was already reaped is a no-op.
//
// If the process leads its own process group the whole group is killed too, as long as the
// leader hasn't been reaped (after that the group id may be reused).
func (h *ProcessHandle) Kill() error {
	h.mu.Lock()
	if h.processGroup && h.status == nil {
		// ESRCH means the group is already gone
		unix.Kill(-h.pid, unix.SIGKILL)
	}
	h.mu.Unlock()

	err := h.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
