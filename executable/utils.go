package executable

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
)

// GetDefaultCommunicateMode reads CHILDPROC_COMMUNICATE_MODE, defaulting to Multiplexed
func GetDefaultCommunicateMode() Mode {
	modeEnvVar := os.Getenv("CHILDPROC_COMMUNICATE_MODE")

	if modeEnvVar == "" {
		return Multiplexed
	}

	mode, err := ParseMode(modeEnvVar)

	// Panic if the variable is set but is not a mode - should be noticed
	if err != nil {
		panic(fmt.Sprintf("childproc internal error - CHILDPROC_COMMUNICATE_MODE is invalid: %s", err))
	}

	return mode
}

// GetDefaultTimeout reads CHILDPROC_TIMEOUT_IN_MS, defaulting to 10 seconds
func GetDefaultTimeout() time.Duration {
	timeout := 10 * time.Second
	timeoutEnvVar := os.Getenv("CHILDPROC_TIMEOUT_IN_MS")

	if timeoutEnvVar == "" {
		return timeout
	}

	timeoutInMs, err := strconv.Atoi(timeoutEnvVar)

	if err != nil {
		panic("childproc internal error - CHILDPROC_TIMEOUT_IN_MS is not an integer")
	}

	if timeoutInMs < 0 {
		panic(fmt.Sprintf("childproc internal error - CHILDPROC_TIMEOUT_IN_MS is negative: %d", timeoutInMs))
	}

	return time.Duration(timeoutInMs) * time.Millisecond
}

// GetReadChunkSize reads CHILDPROC_READ_CHUNK_SIZE, defaulting to 64KB
func GetReadChunkSize() int {
	chunkSize := 64 * 1024
	chunkSizeEnvVar := os.Getenv("CHILDPROC_READ_CHUNK_SIZE")

	if chunkSizeEnvVar == "" {
		return chunkSize
	}

	convertedChunkSize, err := strconv.Atoi(chunkSizeEnvVar)

	if err != nil {
		panic("childproc internal error - CHILDPROC_READ_CHUNK_SIZE is not an integer")
	}

	if convertedChunkSize <= 0 {
		panic(fmt.Sprintf("childproc internal error - CHILDPROC_READ_CHUNK_SIZE must be positive: %d", convertedChunkSize))
	}

	return convertedChunkSize
}

// isTTY returns true if the object is a tty
func isTTY(o any) bool {
	file, ok := o.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(file.Fd())
}

// resolveAbsolutePath resolves the path according the following rules:
// 1. If the 'path' does not contain a slash, it is searched for in PATH
// 2. Otherwise (or if the PATH lookup fails) its absolute path is returned
// Existence is checked by the caller.
func resolveAbsolutePath(path string) (absolutePath string, err error) {
	executablePath, err := exec.LookPath(path)

	// exec.LookPath() failed: Try filepath.Abs()
	if err != nil {
		return filepath.Abs(path)
	}

	// LookPath may return a path relative to the working directory
	return filepath.Abs(executablePath)
}

// closeIfOpen closes an io.Closer unless it is nil or already closed
func closeIfOpen(c io.Closer) error {
	v := reflect.ValueOf(c)

	if c == nil || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return nil
	}

	err := c.Close()

	if err != nil && !errors.Is(err, ErrAlreadyClosed) && !errors.Is(err, os.ErrClosed) {
		return err
	}

	return nil
}

// closeAllWithCloserFunc makes best effort (attempts to close all even in case of error)
// to close all the io.Closer interfaces using the provided closer function.
func closeAllWithCloserFunc(closer func(io.Closer) error, streams ...io.Closer) error {
	var firstError error
	for _, stream := range streams {
		if err := closer(stream); err != nil && firstError == nil {
			firstError = err
		}
	}
	return firstError
}
