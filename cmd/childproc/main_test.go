package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codecrafters-io/childproc/executable"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	color.NoColor = true
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRunCapturesOutput(t *testing.T) {
	for _, mode := range []string{"multiplexed", "threaded"} {
		t.Run(mode, func(t *testing.T) {
			stdout, stderr, err := execute(t, "", "run", "--mode", mode, "--stdin", "discard", "--", "sh", "-c", "echo out; echo err >&2")
			require.NoError(t, err)
			assert.Equal(t, "out\n", stdout)
			assert.Equal(t, "err\n", stderr)
		})
	}
}

func TestRunStreamsInputFile(t *testing.T) {
	stdout, _, err := execute(t, "from stdin\n", "run", "--input-file", "-", "--", "cat")
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", stdout)

	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file\n"), 0o644))

	stdout, _, err = execute(t, "", "run", "--input-file", path, "--", "cat")
	require.NoError(t, err)
	assert.Equal(t, "from file\n", stdout)
}

func TestRunPropagatesExitCode(t *testing.T) {
	_, _, err := execute(t, "", "run", "--stdin", "discard", "--", "sh", "-c", "exit 7")

	var exitErr *exitCodeError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 7, exitErr.code)
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	_, _, err := execute(t, "", "run", "--stdout", "file", "--", "true")
	assert.ErrorContains(t, err, "--stdout: unknown redirection")

	_, _, err = execute(t, "", "run", "--input-file", "-", "--stdin", "discard", "--", "cat")
	assert.ErrorContains(t, err, "--input-file requires --stdin=capture")

	_, _, err = execute(t, "", "run", "--mode", "epoll", "--", "true")
	assert.ErrorContains(t, err, "unknown communicate mode")

	_, _, err = execute(t, "", "run")
	assert.Error(t, err)
}

func TestRunTimeout(t *testing.T) {
	_, _, err := execute(t, "", "run", "--stdin", "discard", "--timeout", "50ms", "--", "sleep", "10")
	assert.EqualError(t, err, "execution timed out")
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - {name: pass, command: "true"}
  - {name: fail, command: "false"}
`), 0o644))

	stdout, _, err := execute(t, "", "batch", path)

	var exitErr *exitCodeError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.code)
	assert.Contains(t, stdout, "[pass] Job passed.")
	assert.Contains(t, stdout, "1 of 2 jobs failed.")

	_, _, err = execute(t, "", "batch", filepath.Join(dir, "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBatchWritesMetrics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - {name: cli-metrics, command: \"true\"}\n"), 0o644))

	metricsPath := filepath.Join(dir, "childproc.prom")
	_, _, err := execute(t, "", "batch", "--metrics-file", metricsPath, path)
	require.NoError(t, err)

	contents, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `childproc_jobs_total{job="cli-metrics",outcome="passed"} 1`)
	assert.Contains(t, string(contents), `childproc_spawns_total{result="ok"}`)
}

func TestExitCodeShutsDownTheProcessTable(t *testing.T) {
	table := executable.NewProcessTable()
	spawner := &executable.Spawner{Table: table}

	handle, streams, err := spawner.Spawn(executable.NewCommand("sleep", "30"), executable.CaptureOutput())
	require.NoError(t, err)
	defer streams.Close()

	stderr := &bytes.Buffer{}
	assert.Equal(t, 7, exitCode(&exitCodeError{code: 7}, table, stderr))
	assert.Empty(t, stderr.String())

	assert.Zero(t, table.Len())
	status, ok := handle.Status()
	assert.True(t, ok)
	assert.True(t, status.Signaled())

	_, _, err = spawner.Spawn(executable.NewCommand("true"), executable.CaptureOutput())
	assert.ErrorIs(t, err, executable.ErrTableShutdown)
}

func TestExitCodeReportsErrors(t *testing.T) {
	stderr := &bytes.Buffer{}
	assert.Equal(t, 0, exitCode(nil, executable.NewProcessTable(), stderr))
	assert.Equal(t, 1, exitCode(errors.New("boom"), executable.NewProcessTable(), stderr))
	assert.Equal(t, "boom\n", stderr.String())
}

func TestBatchQuietOnlyLogsFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - {name: pass, command: "true"}
  - {name: fail, command: "false"}
`), 0o644))

	stdout, _, err := execute(t, "", "batch", "--quiet", path)
	assert.Error(t, err)

	assert.NotContains(t, stdout, "[pass]")
	assert.NotContains(t, stdout, "Running")
	assert.Contains(t, stdout, "[fail] Expected exit code 0, got 1 (exited(1))")
	assert.Contains(t, stdout, "1 of 2 jobs failed.")
}
