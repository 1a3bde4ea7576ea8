package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/codecrafters-io/childproc/executable"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	code := exitCode(err, executable.DefaultProcessTable(), os.Stderr)

	stop()
	os.Exit(code)
}

// exitCode tears down table, so that nothing spawned outlives the CLI unreaped, and maps err to an exit code
func exitCode(err error, table *executable.ProcessTable, stderr io.Writer) int {
	if shutdownErr := table.Shutdown(); shutdownErr != nil {
		fmt.Fprintf(stderr, "shutdown: %s\n", shutdownErr)
	}

	if err == nil {
		return 0
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	fmt.Fprintln(stderr, err)
	return 1
}
