package executable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	err := NewExecutable("/blah").Start()
	assertErrorContains(t, err, "not found")
	assertErrorContains(t, err, "blah")

	err = NewExecutable("./test_helpers/not_executable.sh").Start()
	assertErrorContains(t, err, "not an executable file")
	assertErrorContains(t, err, "not_executable.sh")

	err = NewExecutable("./test_helpers/haskell").Start()
	assertErrorContains(t, err, "not an executable file")
	assertErrorContains(t, err, "haskell")

	e := NewExecutable("./test_helpers/stdout_echo.sh")
	err = e.Start()
	assert.NoError(t, err)
	assert.NotZero(t, e.Pid())

	_, err = e.Wait()
	assert.NoError(t, err)
	assert.Zero(t, e.Pid())
}

func TestRun(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			e := NewExecutable("./test_helpers/stdout_echo.sh")
			e.Mode = mode

			result, err := e.Run("hey")
			assert.NoError(t, err)
			assert.Equal(t, "hey\n", string(result.Stdout))
		})
	}
}

func TestOutputCapture(t *testing.T) {
	e := NewExecutable("./test_helpers/stdout_echo.sh")

	result, err := e.Run("hey")
	assert.NoError(t, err)
	assert.Equal(t, "hey\n", string(result.Stdout))
	assert.Equal(t, "", string(result.Stderr))

	e = NewExecutable("./test_helpers/stderr_echo.sh")

	result, err = e.Run("hey")
	assert.NoError(t, err)
	assert.Equal(t, "", string(result.Stdout))
	assert.Equal(t, "hey\n", string(result.Stderr))
}

func TestLargeOutputCapture(t *testing.T) {
	e := NewExecutable("./test_helpers/large_echo.sh")

	result, err := e.Run()
	assert.NoError(t, err)
	assert.Equal(t, 1024*1024, len(result.Stdout))
	assert.Equal(t, "blah\n", string(result.Stderr))
}

func TestExitCode(t *testing.T) {
	e := NewExecutable("./test_helpers/exit_with.sh")

	result, _ := e.Run("0")
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.Status.Success())

	result, _ = e.Run("1")
	assert.Equal(t, 1, result.ExitCode)

	result, _ = e.Run("2")
	assert.Equal(t, 2, result.ExitCode)
	assert.Equal(t, Exited(2), result.Status)
}

func TestExecutableStartNotAllowedIfInProgress(t *testing.T) {
	e := NewExecutable("./test_helpers/sleep_for.sh")

	err := e.Start("0.01")
	assert.NoError(t, err)

	err = e.Start("0.01")
	assertErrorContains(t, err, "process already in progress")

	_, err = e.Run("0.01")
	assertErrorContains(t, err, "process already in progress")

	e.Wait()

	err = e.Start("0.01")
	assert.NoError(t, err)

	e.Wait()
}

func TestSuccessiveExecutions(t *testing.T) {
	e := NewExecutable("./test_helpers/stdout_echo.sh")

	result, _ := e.Run("1")
	assert.Equal(t, "1\n", string(result.Stdout))

	result, _ = e.Run("2")
	assert.Equal(t, "2\n", string(result.Stdout))
}

func TestWaitWithoutStart(t *testing.T) {
	_, err := NewExecutable("./test_helpers/stdout_echo.sh").Wait()
	assertErrorContains(t, err, "process not started")
}

func TestRunWithStdin(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			e := NewExecutable("grep")
			e.Mode = mode

			result, err := e.RunWithStdin([]byte("has cat"), "cat")
			assert.NoError(t, err)
			assert.Equal(t, 0, result.ExitCode)

			e = NewExecutable("grep")
			e.Mode = mode

			result, err = e.RunWithStdin([]byte("only dog"), "cat")
			assert.NoError(t, err)
			assert.Equal(t, 1, result.ExitCode)
		})
	}
}

func TestRunWithInput(t *testing.T) {
	e := NewExecutable("cat")

	result, err := e.RunWithInput(StringInput("one\n", "two\n"))
	assert.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(result.Stdout))
}

func TestRunWithStdinTimeout(t *testing.T) {
	e := NewExecutable("sleep")
	e.TimeoutInMilliseconds = 50

	_, err := e.RunWithStdin([]byte(""), "10")
	assert.Error(t, err)
	assert.Equal(t, "execution timed out", err.Error())

	result, err := e.RunWithStdin([]byte(""), "0.02")
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func TestSegfault(t *testing.T) {
	e := NewExecutable("./test_helpers/segfault.sh")

	result, err := e.Run()
	assert.NoError(t, err)
	assert.Equal(t, 139, result.ExitCode)
}

func TestKill(t *testing.T) {
	e := NewExecutable("./test_helpers/sleep_for.sh")

	err := e.Start("10")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	err = e.Kill()
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	// Killing something that isn't running is a no-op
	assert.NoError(t, e.Kill())
}

func TestKillWhileWaiting(t *testing.T) {
	e := NewExecutable("./test_helpers/sleep_for.sh")
	require.NoError(t, e.Start("10"))

	resultChannel := make(chan ExecutableResult, 1)
	go func() {
		result, _ := e.Wait()
		resultChannel <- result
	}()

	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, e.Kill())

	select {
	case result := <-resultChannel:
		assert.Equal(t, 137, result.ExitCode)
	case <-time.After(2 * time.Second):
		t.Fatal("wait didn't return after kill")
	}
}

func TestVerboseExecutableRelaysOutput(t *testing.T) {
	var lines []string
	e := NewVerboseExecutable("./test_helpers/interleaved_echo.sh", func(line string) {
		lines = append(lines, line)
	})

	_, err := e.RunWithStdin([]byte("tail\n"), "2")
	assert.NoError(t, err)
	assert.Equal(t, []string{"out 0", "out 1", "tail", "err 0", "err 1"}, lines)
}

func TestClone(t *testing.T) {
	e := NewExecutable("./test_helpers/stdout_echo.sh")
	e.Mode = Threaded
	e.WorkingDir = "."
	require.NoError(t, e.Start("hey"))
	defer e.Wait()

	clone := e.Clone()
	assert.Equal(t, Threaded, clone.Mode)
	assert.Equal(t, ".", clone.WorkingDir)
	assert.Zero(t, clone.Pid())

	result, err := clone.Run("hi")
	assert.NoError(t, err)
	assert.Equal(t, "hi\n", string(result.Stdout))
}

func TestStdioOverride(t *testing.T) {
	e := NewExecutable("./test_helpers/large_echo.sh")
	e.Stdio = StdioConfig{Stdin: Discard, Stdout: Discard, Stderr: Capture}

	result, err := e.Run()
	assert.NoError(t, err)
	assert.Nil(t, result.Stdout)
	assert.Equal(t, "blah\n", string(result.Stderr))
}

func TestTimeoutKillsForkedDescendants(t *testing.T) {
	for _, mode := range allModes {
		t.Run(mode.String(), func(t *testing.T) {
			e := NewExecutable("sh")
			e.Mode = mode
			e.TimeoutInMilliseconds = 100

			// sleep is forked, not exec'd, and keeps stdout and stderr open
			start := time.Now()
			_, err := e.Run("-c", "sleep 3; echo done")
			assert.EqualError(t, err, "execution timed out")
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestKillTakesDownForkedDescendants(t *testing.T) {
	e := NewExecutable("sh")
	require.NoError(t, e.Start("-c", "sleep 3; echo done"))

	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	assert.NoError(t, e.Kill())
	assert.Less(t, time.Since(start), 2*time.Second)
}
