package executable

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/codecrafters-io/childproc/logger"
	"github.com/codecrafters-io/childproc/metrics"
)

// Command is a resolved command: what to run, where, and with which environment
type Command struct {
	// Path is the executable. Paths without a slash are looked up in PATH.
	Path string

	Args []string

	// Dir is the working directory. Empty means the parent's working directory.
	Dir string

	// Env is the complete environment of the child. nil inherits the parent's environment.
	Env map[string]string

	// ProcessGroup starts the child as the leader of a new process group, so that
	// ProcessHandle.Kill also reaches the descendants it forks.
	ProcessGroup bool
}

// NewCommand returns a Command for path with args
func NewCommand(path string, args ...string) Command {
	return Command{Path: path, Args: args}
}

func (c Command) environ() []string {
	if c.Env == nil {
		return nil
	}

	keys := make([]string, 0, len(c.Env))
	for key := range c.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, c.Env[key]))
	}

	return env
}

// Spawner launches processes with planned stdio bindings
type Spawner struct {
	// Table tracks spawned processes until they're reaped. nil uses DefaultProcessTable().
	Table *ProcessTable

	// Logger receives debug logs for spawns. nil disables logging.
	Logger *logger.Logger
}

var defaultSpawner = &Spawner{}

// Spawn launches command through the default spawner
func Spawn(command Command, stdio StdioConfig) (*ProcessHandle, *Streams, error) {
	return defaultSpawner.Spawn(command, stdio)
}

// Spawn starts command with stdio bound according to config and returns the process handle plus
// the pipe ends retained by the parent.
//
// On failure no process is left running and every descriptor created along the way is closed.
func (s *Spawner) Spawn(command Command, stdio StdioConfig) (*ProcessHandle, *Streams, error) {
	handle, streams, err := s.spawn(command, stdio)
	metrics.ObserveSpawn(err)
	return handle, streams, err
}

func (s *Spawner) spawn(command Command, stdio StdioConfig) (*ProcessHandle, *Streams, error) {
	table := s.table()

	absolutePath, err := resolveExecutable(command.Path)
	if err != nil {
		return nil, nil, &SpawnError{Path: command.Path, Err: err}
	}

	plan, err := NewStdioPlan(stdio)
	if err != nil {
		return nil, nil, &SpawnError{Path: command.Path, Err: err}
	}

	cmd := &exec.Cmd{
		Path:   absolutePath,
		Args:   append([]string{command.Path}, command.Args...),
		Dir:    command.Dir,
		Env:    command.environ(),
		Stdin:  plan.ChildFile(Stdin),
		Stdout: plan.ChildFile(Stdout),
		Stderr: plan.ChildFile(Stderr),
	}

	if command.ProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	startedAt := time.Now()
	err = cmd.Start()

	// The child has its own copies now (or never will), either way the parent's are no longer needed
	plan.CloseChildStreams()

	if err != nil {
		plan.CloseAll()
		return nil, nil, &SpawnError{Path: command.Path, Err: err}
	}

	handle := newProcessHandle(cmd, startedAt, table, command.ProcessGroup)

	if err := table.add(handle); err != nil {
		handle.Kill()
		handle.Wait()
		plan.CloseAll()
		return nil, nil, &SpawnError{Path: command.Path, Err: err}
	}

	s.debugf("spawned %s (pid %d, stdin: %s, stdout: %s, stderr: %s)", command.Path, handle.Pid(),
		describeRedirection(Stdin, stdio.Stdin), describeRedirection(Stdout, stdio.Stdout), describeRedirection(Stderr, stdio.Stderr))

	return handle, plan.TakeStreams(), nil
}

func (s *Spawner) table() *ProcessTable {
	if s.Table != nil {
		return s.Table
	}
	return DefaultProcessTable()
}

func describeRedirection(stream Stream, redirection Redirection) string {
	if redirection == Inherit && isTTY(inheritedFile(stream)) {
		return "inherit (tty)"
	}
	return redirection.String()
}

func (s *Spawner) debugf(fstring string, args ...any) {
	if s.Logger == nil {
		return
	}
	s.Logger.Debugf(fstring, args...)
}

// resolveExecutable returns the absolute path of an existing executable file
func resolveExecutable(path string) (string, error) {
	absolutePath, err := resolveAbsolutePath(path)
	if err != nil {
		return "", fmt.Errorf("%s not found", filepath.Base(path))
	}

	fileInfo, err := os.Stat(absolutePath)
	if err != nil {
		return "", fmt.Errorf("%s not found", filepath.Base(path))
	}

	// Check executable permission
	if fileInfo.Mode().Perm()&0111 == 0 || fileInfo.IsDir() {
		return "", fmt.Errorf("%s (resolved to %s) is not an executable file", path, absolutePath)
	}

	return absolutePath, nil
}
