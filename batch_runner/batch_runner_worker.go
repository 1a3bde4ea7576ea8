package batch_runner

import (
	"fmt"
	"time"

	"github.com/codecrafters-io/childproc/executable"
	"github.com/codecrafters-io/childproc/job"
	"github.com/codecrafters-io/childproc/logger"
	"github.com/codecrafters-io/childproc/metrics"
)

type batchRunnerWorker struct {
	runner *BatchRunner
	job    job.Job
	logger *logger.Logger
}

func newBatchRunnerWorker(runner *BatchRunner, j job.Job, l *logger.Logger) *batchRunnerWorker {
	return &batchRunnerWorker{
		runner: runner,
		job:    j,
		logger: l,
	}
}

func (w *batchRunnerWorker) Run() (jobResult JobResult) {
	w.logger.Infof("Running %s", w.describeCommand())

	jobResult.Job = w.job
	startedAt := time.Now()

	// Every job is counted, including the ones that never got to spawn
	defer func() {
		metrics.ObserveJob(w.job.Name, jobResult.Passed, time.Since(startedAt))
	}()

	e, err := w.getExecutable()
	if err != nil {
		w.logger.Errorf("%s", err)
		jobResult.Err = err
		return jobResult
	}

	result, err := e.RunWithStdin([]byte(w.job.Input), w.job.Args...)
	w.logger.Debugf("Finished in %s", time.Since(startedAt).Round(time.Millisecond))

	jobResult.Result = result
	jobResult.Err = err

	if err != nil {
		w.logger.Errorf("%s", err)
		w.logger.Errorf("Job failed")
		return jobResult
	}

	if result.ExitCode != w.job.ExpectedExitCode {
		w.logger.Errorf("Expected exit code %d, got %d (%s)", w.job.ExpectedExitCode, result.ExitCode, result.Status)
		w.logger.Errorf("Job failed")
		return jobResult
	}

	jobResult.Passed = true
	w.logger.Successf("Job passed.")

	return jobResult
}

func (w *batchRunnerWorker) getExecutable() (*executable.Executable, error) {
	stdio, err := w.job.StdioConfig()
	if err != nil {
		return nil, err
	}

	mode, err := w.job.CommunicateMode()
	if err != nil {
		return nil, err
	}

	var e *executable.Executable
	if w.runner.isDebug {
		outputLogger := w.logger.Clone()
		outputLogger.PushSecondaryPrefix("output")
		e = executable.NewVerboseExecutable(w.job.Command, outputLogger.Plainln)
	} else {
		e = executable.NewExecutable(w.job.Command)
	}

	e.WithSpawner(w.runner.spawner)
	e.WorkingDir = w.job.Dir
	e.Env = w.job.Env
	e.Mode = mode
	e.Stdio = stdio

	if w.job.TimeoutInMilliseconds > 0 {
		e.TimeoutInMilliseconds = w.job.TimeoutInMilliseconds
	}

	return e, nil
}

func (w *batchRunnerWorker) describeCommand() string {
	description := w.job.Command
	for _, arg := range w.job.Args {
		description += fmt.Sprintf(" %q", arg)
	}
	return description
}
