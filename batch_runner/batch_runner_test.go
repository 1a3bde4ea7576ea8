package batch_runner

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codecrafters-io/childproc/job"
	"github.com/codecrafters-io/childproc/logger"
	"github.com/codecrafters-io/childproc/metrics"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, contents string, isDebug bool) (*BatchRunner, *bytes.Buffer) {
	file, err := job.Parse([]byte(contents))
	require.NoError(t, err)

	color.NoColor = true
	buffer := &bytes.Buffer{}
	return NewBatchRunnerWithLogger(file, logger.NewLogger(buffer, isDebug, "")), buffer
}

func TestRunPassingJobs(t *testing.T) {
	runner, buffer := newTestRunner(t, `
concurrency: 2
jobs:
  - name: cat
    command: cat
    input: "one\ntwo\n"
  - name: exit
    command: sh
    args: ["-c", "exit 3"]
    expected_exit_code: 3
  - name: env
    command: sh
    args: ["-c", "echo $GREETING"]
    env: {GREETING: hi}
    mode: threaded
`, false)

	results, passed := runner.Run()
	assert.True(t, passed)
	require.Len(t, results, 3)

	assert.Equal(t, "cat", results[0].Job.Name)
	assert.Equal(t, "one\ntwo\n", string(results[0].Result.Stdout))
	assert.Equal(t, 3, results[1].Result.ExitCode)
	assert.Equal(t, "hi\n", string(results[2].Result.Stdout))

	assert.Contains(t, buffer.String(), "[cat] Running cat\n")
	assert.Contains(t, buffer.String(), "[exit] Job passed.\n")
	assert.Contains(t, buffer.String(), "All 3 jobs passed.\n")
}

func TestRunReportsFailures(t *testing.T) {
	runner, buffer := newTestRunner(t, `
jobs:
  - {name: wrong-code, command: "false"}
  - {name: missing, command: ./does_not_exist}
  - {name: slow, command: sleep, args: ["10"], timeout_in_ms: 50}
  - {name: ok, command: "true"}
`, false)

	results, passed := runner.Run()
	assert.False(t, passed)
	require.Len(t, results, 4)

	assert.False(t, results[0].Passed)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Result.ExitCode)

	assert.False(t, results[1].Passed)
	assert.ErrorContains(t, results[1].Err, "not found")

	assert.False(t, results[2].Passed)
	assert.EqualError(t, results[2].Err, "execution timed out")

	assert.True(t, results[3].Passed)

	assert.Contains(t, buffer.String(), "[wrong-code] Expected exit code 0, got 1 (exited(1))\n")
	assert.Contains(t, buffer.String(), "3 of 4 jobs failed.\n")
}

func TestDebugRelaysOutput(t *testing.T) {
	runner, buffer := newTestRunner(t, `
jobs:
  - name: echo
    command: sh
    args: ["-c", "echo to-stdout; echo to-stderr >&2"]
`, true)

	_, passed := runner.Run()
	assert.True(t, passed)

	assert.Contains(t, buffer.String(), "[echo] [output] to-stdout\n")
	assert.Contains(t, buffer.String(), "[echo] [output] to-stderr\n")
	assert.Contains(t, buffer.String(), "spawned sh")
}

func TestShutdownKillsRunningJobs(t *testing.T) {
	runner, _ := newTestRunner(t, `
jobs:
  - {name: sleeper, command: sleep, args: ["30"], timeout_in_ms: 60000}
`, false)

	done := make(chan []JobResult, 1)
	go func() {
		results, _ := runner.Run()
		done <- results
	}()

	require.Eventually(t, func() bool { return runner.table.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, runner.Shutdown())

	select {
	case results := <-done:
		assert.False(t, results[0].Passed)
	case <-time.After(5 * time.Second):
		t.Fatal("batch didn't finish after shutdown")
	}
}

func TestInvalidJobsAreCountedAsFailed(t *testing.T) {
	// Parsing would reject this job, so it is built directly
	file := job.File{Jobs: []job.Job{{Name: "bad-mode-metrics", Command: "true", Mode: "epoll"}}}

	color.NoColor = true
	buffer := &bytes.Buffer{}
	runner := NewBatchRunnerWithLogger(file, logger.NewLogger(buffer, false, ""))

	results, passed := runner.Run()
	assert.False(t, passed)
	assert.ErrorContains(t, results[0].Err, "unknown communicate mode")

	path := filepath.Join(t.TempDir(), "childproc.prom")
	require.NoError(t, metrics.WriteTextfile(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `childproc_jobs_total{job="bad-mode-metrics",outcome="failed"} 1`)
}
