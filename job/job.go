// Package job loads YAML job files for the batch runner.
//
//	concurrency: 4
//	jobs:
//	  - name: greet
//	    command: sh
//	    args: ["-c", "cat; echo done >&2"]
//	    input: "hello\n"
//	    expected_exit_code: 0
package job

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codecrafters-io/childproc/executable"
	"gopkg.in/yaml.v2"
)

// DefaultConcurrency is used when a job file doesn't set one
const DefaultConcurrency = 8

// File is the top-level document of a job file
type File struct {
	Concurrency int   `yaml:"concurrency"`
	Jobs        []Job `yaml:"jobs"`
}

// Job describes one child process to run
type Job struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`

	// Stdin, Stdout and Stderr are redirections: inherit, discard or capture
	Stdin  string `yaml:"stdin"`
	Stdout string `yaml:"stdout"`
	Stderr string `yaml:"stderr"`

	// Input is written to stdin, which is captured by default when it's set
	Input string `yaml:"input"`

	// Mode is multiplexed or threaded, defaulting to CHILDPROC_COMMUNICATE_MODE
	Mode string `yaml:"mode"`

	ExpectedExitCode      int `yaml:"expected_exit_code"`
	TimeoutInMilliseconds int `yaml:"timeout_in_ms"`
}

// Load reads and validates a job file. Relative job directories are resolved against the file's directory.
func Load(path string) (File, error) {
	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("resolve job file path: %w", err)
	}

	contents, err := os.ReadFile(absolutePath)
	if err != nil {
		return File{}, fmt.Errorf("read job file: %w", err)
	}

	file, err := Parse(contents)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", absolutePath, err)
	}

	baseDir := filepath.Dir(absolutePath)
	for i := range file.Jobs {
		if file.Jobs[i].Dir != "" && !filepath.IsAbs(file.Jobs[i].Dir) {
			file.Jobs[i].Dir = filepath.Join(baseDir, file.Jobs[i].Dir)
		}
	}

	return file, nil
}

// Parse decodes a job file and validates it. Unknown fields are rejected.
func Parse(contents []byte) (File, error) {
	var file File
	if err := yaml.UnmarshalStrict(contents, &file); err != nil {
		return File{}, fmt.Errorf("decode: %w", err)
	}

	if file.Concurrency == 0 {
		file.Concurrency = DefaultConcurrency
	}

	for i := range file.Jobs {
		job := &file.Jobs[i]
		for key, value := range job.Env {
			job.Env[key] = os.ExpandEnv(value)
		}
	}

	if err := file.Validate(); err != nil {
		return File{}, err
	}

	return file, nil
}

// Validate checks every job and returns all problems found
func (f File) Validate() error {
	var errs []error

	if f.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", f.Concurrency))
	}

	if len(f.Jobs) == 0 {
		errs = append(errs, errors.New("no jobs defined"))
	}

	seenNames := make(map[string]bool, len(f.Jobs))
	for i, job := range f.Jobs {
		if job.Name != "" && seenNames[job.Name] {
			errs = append(errs, fmt.Errorf("jobs[%d]: duplicate name %q", i, job.Name))
		}
		seenNames[job.Name] = true

		if err := job.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks that the job can be turned into a command
func (j Job) Validate() error {
	if j.Name == "" {
		return errors.New("name is required")
	}

	if j.Command == "" {
		return fmt.Errorf("%s: command is required", j.Name)
	}

	stdio, err := j.StdioConfig()
	if err != nil {
		return fmt.Errorf("%s: %w", j.Name, err)
	}

	if j.Input != "" && stdio.Stdin != executable.Capture {
		return fmt.Errorf("%s: input requires stdin to be captured, got %s", j.Name, stdio.Stdin)
	}

	if _, err := j.CommunicateMode(); err != nil {
		return fmt.Errorf("%s: %w", j.Name, err)
	}

	if j.TimeoutInMilliseconds < 0 {
		return fmt.Errorf("%s: timeout_in_ms must not be negative", j.Name)
	}

	return nil
}

// ToCommand returns the command the job runs
func (j Job) ToCommand() executable.Command {
	return executable.Command{
		Path: j.Command,
		Args: j.Args,
		Dir:  j.Dir,
		Env:  j.Env,
	}
}

// StdioConfig returns the job's redirections. Outputs are captured unless configured otherwise,
// stdin is captured if the job has input and discarded if not.
func (j Job) StdioConfig() (executable.StdioConfig, error) {
	config := executable.CaptureOutput()
	if j.Input != "" {
		config.Stdin = executable.Capture
	}

	for _, field := range []struct {
		value  string
		target *executable.Redirection
	}{
		{j.Stdin, &config.Stdin},
		{j.Stdout, &config.Stdout},
		{j.Stderr, &config.Stderr},
	} {
		if field.value == "" {
			continue
		}

		redirection, err := executable.ParseRedirection(field.value)
		if err != nil {
			return executable.StdioConfig{}, err
		}
		*field.target = redirection
	}

	return config, nil
}

// CommunicateMode returns the job's mode, or the default mode if none is set
func (j Job) CommunicateMode() (executable.Mode, error) {
	if j.Mode == "" {
		return executable.GetDefaultCommunicateMode(), nil
	}
	return executable.ParseMode(j.Mode)
}
