package main

import (
	"fmt"
	"io"
	"os"

	"github.com/codecrafters-io/childproc/logger"
	"github.com/spf13/cobra"
)

// exitCodeError makes the CLI exit with code without printing anything
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type rootOptions struct {
	isDebug bool
}

func newRootCmd() *cobra.Command {
	options := &rootOptions{}

	root := &cobra.Command{
		Use:   "childproc",
		Short: "Run child processes and exchange data with them over pipes",
	}

	root.PersistentFlags().BoolVar(&options.isDebug, "debug", false, "Log spawns and relay job output")

	root.AddCommand(newRunCmd(options))
	root.AddCommand(newBatchCmd(options))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

func newLogger(w io.Writer, isDebug bool) *logger.Logger {
	if w == os.Stdout {
		return logger.GetLogger(isDebug, "[childproc] ")
	}
	return logger.NewLogger(w, isDebug, "[childproc] ")
}
