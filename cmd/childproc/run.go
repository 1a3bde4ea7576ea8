package main

import (
	"fmt"
	"os"
	"time"

	"github.com/codecrafters-io/childproc/executable"
	"github.com/spf13/cobra"
)

type runOptions struct {
	stdin     string
	stdout    string
	stderr    string
	mode      string
	inputFile string
	timeout   time.Duration
}

func newRunCmd(root *rootOptions) *cobra.Command {
	options := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a single command, printing its captured output and exiting with its exit code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, root, options, args)
		},
	}

	cmd.Flags().StringVar(&options.stdin, "stdin", "", "Redirection for stdin: inherit, discard or capture (default: capture with --input-file, inherit otherwise)")
	cmd.Flags().StringVar(&options.stdout, "stdout", "capture", "Redirection for stdout: inherit, discard or capture")
	cmd.Flags().StringVar(&options.stderr, "stderr", "capture", "Redirection for stderr: inherit, discard or capture")
	cmd.Flags().StringVar(&options.mode, "mode", "", "Communicate mode: multiplexed or threaded (default: $CHILDPROC_COMMUNICATE_MODE or multiplexed)")
	cmd.Flags().StringVar(&options.inputFile, "input-file", "", "File streamed to stdin, - for this process's stdin")
	cmd.Flags().DurationVar(&options.timeout, "timeout", executable.GetDefaultTimeout(), "Kill the command after this long")

	return cmd
}

func (o *runOptions) stdioConfig() (executable.StdioConfig, error) {
	stdinFlag := o.stdin
	if stdinFlag == "" && o.inputFile != "" {
		stdinFlag = "capture"
	}

	var config executable.StdioConfig
	for _, field := range []struct {
		name   string
		value  string
		target *executable.Redirection
	}{
		{"--stdin", stdinFlag, &config.Stdin},
		{"--stdout", o.stdout, &config.Stdout},
		{"--stderr", o.stderr, &config.Stderr},
	} {
		redirection, err := executable.ParseRedirection(field.value)
		if err != nil {
			return executable.StdioConfig{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.target = redirection
	}

	if o.inputFile != "" && config.Stdin != executable.Capture {
		return executable.StdioConfig{}, fmt.Errorf("--input-file requires --stdin=capture, got %s", config.Stdin)
	}

	return config, nil
}

func (o *runOptions) openInput(cmd *cobra.Command) (executable.InputFunc, func(), error) {
	switch o.inputFile {
	case "":
		return executable.NoInput(), func() {}, nil
	case "-":
		return executable.ReaderInput(cmd.InOrStdin(), 0), func() {}, nil
	}

	file, err := os.Open(o.inputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open input file: %w", err)
	}

	return executable.ReaderInput(file, 0), func() { file.Close() }, nil
}

func runCommand(cmd *cobra.Command, root *rootOptions, options *runOptions, args []string) error {
	stdio, err := options.stdioConfig()
	if err != nil {
		return err
	}

	mode := executable.GetDefaultCommunicateMode()
	if options.mode != "" {
		if mode, err = executable.ParseMode(options.mode); err != nil {
			return err
		}
	}

	input, closeInput, err := options.openInput(cmd)
	if err != nil {
		return err
	}
	defer closeInput()

	// stdout belongs to the command
	l := newLogger(cmd.ErrOrStderr(), root.isDebug)

	e := executable.NewExecutable(args[0])
	e.WithSpawner(&executable.Spawner{Logger: l})
	e.Mode = mode
	e.Stdio = stdio
	e.TimeoutInMilliseconds = int(options.timeout.Milliseconds())

	stopKillOnCancel := killOnCancel(cmd, func() { e.Kill() })
	defer stopKillOnCancel()

	result, err := e.RunWithInput(input, args[1:]...)

	cmd.OutOrStdout().Write(result.Stdout)
	cmd.ErrOrStderr().Write(result.Stderr)

	if err != nil {
		return err
	}

	l.Debugf("%s %s", args[0], result.Status)

	if result.ExitCode != 0 {
		return &exitCodeError{code: result.ExitCode}
	}

	return nil
}

// killOnCancel calls kill once the command's context is cancelled (i.e. on SIGINT / SIGTERM)
func killOnCancel(cmd *cobra.Command, kill func()) (stop func()) {
	ctx := cmd.Context()
	if ctx == nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			kill()
		case <-done:
		}
	}()

	return func() { close(done) }
}
