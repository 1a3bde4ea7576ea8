package executable

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Executable represents a program that can be executed
type Executable struct {
	Path                  string
	TimeoutInMilliseconds int

	// WorkingDir can be set before calling Start or Run to customize the working directory of the executable.
	WorkingDir string

	// Env replaces the environment of the executable when non-nil
	Env map[string]string

	// Mode selects how stdin and the outputs are transferred
	Mode Mode

	// Stdio defaults to capturing all three streams. Output from streams that aren't captured is absent from the result.
	Stdio StdioConfig

	loggerFunc func(string)
	spawner    *Spawner

	// These are set & removed together
	mu      sync.Mutex
	handle  *ProcessHandle
	streams *Streams
	waiting bool
}

// ExecutableResult holds the result of an executable run
type ExecutableResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Status   ExitStatus
}

func nullLogger(msg string) {
}

// NewExecutable returns an Executable
func NewExecutable(path string) *Executable {
	return &Executable{
		Path:                  path,
		TimeoutInMilliseconds: int(GetDefaultTimeout().Milliseconds()),
		Mode:                  GetDefaultCommunicateMode(),
		Stdio:                 CaptureAll(),
		loggerFunc:            nullLogger,
		spawner:               defaultSpawner,
	}
}

// NewVerboseExecutable returns an Executable that relays every line of output to loggerFunc
func NewVerboseExecutable(path string, loggerFunc func(string)) *Executable {
	e := NewExecutable(path)
	e.loggerFunc = loggerFunc
	return e
}

// WithSpawner makes the executable spawn through spawner (e.g. to use a dedicated ProcessTable)
func (e *Executable) WithSpawner(spawner *Spawner) *Executable {
	e.spawner = spawner
	return e
}

// Clone returns an Executable with the same configuration that isn't running
func (e *Executable) Clone() *Executable {
	return &Executable{
		Path:                  e.Path,
		TimeoutInMilliseconds: e.TimeoutInMilliseconds,
		WorkingDir:            e.WorkingDir,
		Env:                   e.Env,
		Mode:                  e.Mode,
		Stdio:                 e.Stdio,
		loggerFunc:            e.loggerFunc,
		spawner:               e.spawner,
	}
}

func (e *Executable) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle != nil
}

// Pid returns the pid of the running process, or 0 when nothing is running
func (e *Executable) Pid() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle == nil {
		return 0
	}
	return e.handle.Pid()
}

// Start starts the specified command but does not wait for it to complete.
// Input is supplied when waiting.
func (e *Executable) Start(args ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != nil {
		return errors.New("process already in progress")
	}

	command := Command{
		Path: e.Path,
		Args: args,
		Dir:  e.WorkingDir,
		Env:  e.Env,

		// Timeouts and Kill take down everything the program forked. A program reading an
		// inherited stdin stays in our process group so that it can still read from the terminal.
		ProcessGroup: e.Stdio.Stdin != Inherit,
	}

	handle, streams, err := e.spawner.Spawn(command, e.Stdio)
	if err != nil {
		return err
	}

	// At this point, it is safe to set e.handle, if any of the above steps fail, we don't want to leave e in an inconsistent state
	e.handle = handle
	e.streams = streams

	return nil
}

// Run starts the specified command, waits for it to complete and returns the result.
func (e *Executable) Run(args ...string) (ExecutableResult, error) {
	if err := e.Start(args...); err != nil {
		return ExecutableResult{}, err
	}

	return e.Wait()
}

// RunWithStdin starts the specified command, sends input, waits for it to complete and returns the
// result.
func (e *Executable) RunWithStdin(stdin []byte, args ...string) (ExecutableResult, error) {
	return e.RunWithInput(ChunkInput(stdin), args...)
}

// RunWithInput is RunWithStdin with input streamed from an InputFunc
func (e *Executable) RunWithInput(input InputFunc, args ...string) (ExecutableResult, error) {
	if err := e.Start(args...); err != nil {
		return ExecutableResult{}, err
	}

	return e.WaitWithInput(input)
}

// Wait closes stdin, drains the outputs, waits for the program to finish and returns the result.
func (e *Executable) Wait() (ExecutableResult, error) {
	return e.WaitWithInput(NoInput())
}

// WaitWithInput transfers input to the program while draining its outputs, then waits for it to finish.
//
// If the timeout elapses the process is killed, which ends the transfer, and an error is returned.
func (e *Executable) WaitWithInput(input InputFunc) (ExecutableResult, error) {
	e.mu.Lock()
	if e.handle == nil {
		e.mu.Unlock()
		return ExecutableResult{}, errors.New("process not started")
	}
	if e.waiting {
		e.mu.Unlock()
		return ExecutableResult{}, errors.New("process is already being waited on")
	}
	e.waiting = true
	handle, streams := e.handle, e.streams
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.handle = nil
		e.streams = nil
		e.waiting = false
		e.mu.Unlock()
	}()

	var timedOut atomic.Bool
	timer := time.AfterFunc(time.Duration(e.TimeoutInMilliseconds)*time.Millisecond, func() {
		timedOut.Store(true)
		handle.Kill()
	})

	output, communicateErr := NewCommunicator(e.Mode).Communicate(streams, input)
	status, waitErr := handle.Wait()
	timer.Stop()

	if waitErr != nil {
		return ExecutableResult{}, waitErr
	}

	e.relayOutput(output.Stdout)
	e.relayOutput(output.Stderr)

	if timedOut.Load() {
		return ExecutableResult{}, fmt.Errorf("execution timed out")
	}

	result := ExecutableResult{
		Stdout:   output.Stdout,
		Stderr:   output.Stderr,
		ExitCode: status.ExitCode(),
		Status:   status,
	}

	// A stdin the program never read surfaces as EPIPE, the result is still meaningful
	if communicateErr != nil {
		return result, communicateErr
	}

	return result, nil
}

// Kill terminates the program. If nothing else is waiting on it, it is reaped as well.
func (e *Executable) Kill() error {
	e.mu.Lock()
	handle, waiting := e.handle, e.waiting
	e.mu.Unlock()

	if handle == nil {
		return nil
	}

	if err := handle.Kill(); err != nil {
		return err
	}

	if waiting {
		return nil
	}

	_, err := e.Wait()
	return err
}

func (e *Executable) relayOutput(output []byte) {
	if len(output) == 0 {
		return
	}

	for _, line := range strings.Split(strings.TrimSuffix(string(output), "\n"), "\n") {
		e.loggerFunc(line)
	}
}
