package batch_runner

import (
	"github.com/codecrafters-io/childproc/executable"
	"github.com/codecrafters-io/childproc/job"
	"github.com/codecrafters-io/childproc/logger"
	"golang.org/x/sync/errgroup"
)

// JobResult is the outcome of a single job
type JobResult struct {
	Job    job.Job
	Result executable.ExecutableResult

	// Err is set if the job couldn't be spawned, timed out or had a transfer error
	Err error

	Passed bool
}

// BatchRunner runs the jobs of a job file with bounded concurrency
type BatchRunner struct {
	jobs        []job.Job
	concurrency int
	isDebug     bool
	logger      *logger.Logger

	// All jobs are spawned into their own table, so that Shutdown only affects this batch
	table   *executable.ProcessTable
	spawner *executable.Spawner
}

func NewBatchRunner(file job.File, isDebug bool) *BatchRunner {
	return NewBatchRunnerWithLogger(file, logger.GetLogger(isDebug, "[childproc] "))
}

func NewBatchRunnerWithLogger(file job.File, l *logger.Logger) *BatchRunner {
	table := executable.NewProcessTable()

	concurrency := file.Concurrency
	if concurrency <= 0 {
		concurrency = job.DefaultConcurrency
	}

	return &BatchRunner{
		jobs:        file.Jobs,
		concurrency: concurrency,
		isDebug:     l.IsDebug,
		logger:      l,
		table:       table,
		spawner:     &executable.Spawner{Table: table, Logger: l},
	}
}

// Run runs all jobs and returns their results in job file order. The boolean is true if all jobs passed.
func (r *BatchRunner) Run() ([]JobResult, bool) {
	workerGroup := new(errgroup.Group)
	workerGroup.SetLimit(r.concurrency)

	results := make([]JobResult, len(r.jobs))

	for i, j := range r.jobs {
		workerGroup.Go(func() error {
			jobLogger := r.logger.Clone()
			jobLogger.PushSecondaryPrefix(j.Name)

			results[i] = newBatchRunnerWorker(r, j, jobLogger).Run()
			return nil
		})
	}

	if err := workerGroup.Wait(); err != nil {
		panic(err) // We're only using this for concurrency control
	}

	// Jobs reap their own processes, anything left behind is a bug in the worker
	if live := r.table.Len(); live != 0 {
		panic("childproc internal error - batch finished with live processes")
	}

	allPassed := true
	for _, result := range results {
		if !result.Passed {
			allPassed = false
		}
	}

	if allPassed {
		r.logger.Successf("All %d jobs passed.", len(results))
	} else {
		r.logger.Errorf("%d of %d jobs failed.", countFailed(results), len(results))
	}

	return results, allPassed
}

// Shutdown kills and reaps every job that is still running. Jobs that are killed this way fail.
func (r *BatchRunner) Shutdown() error {
	return r.table.Shutdown()
}

func countFailed(results []JobResult) int {
	failed := 0
	for _, result := range results {
		if !result.Passed {
			failed++
		}
	}
	return failed
}
