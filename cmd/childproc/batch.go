package main

import (
	"fmt"

	"github.com/codecrafters-io/childproc/batch_runner"
	"github.com/codecrafters-io/childproc/job"
	"github.com/codecrafters-io/childproc/metrics"
	"github.com/spf13/cobra"
)

func newBatchCmd(root *rootOptions) *cobra.Command {
	var metricsFile string
	var isQuiet bool

	cmd := &cobra.Command{
		Use:   "batch <jobs.yml>",
		Short: "Run the jobs of a job file concurrently and report which ones passed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := job.Load(args[0])
			if err != nil {
				return err
			}

			l := newLogger(cmd.OutOrStdout(), root.isDebug)
			l.IsQuiet = isQuiet

			runner := batch_runner.NewBatchRunnerWithLogger(file, l)

			stopKillOnCancel := killOnCancel(cmd, func() { runner.Shutdown() })
			defer stopKillOnCancel()

			_, passed := runner.Run()

			if metricsFile != "" {
				if err := metrics.WriteTextfile(metricsFile); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}

			if !passed {
				return &exitCodeError{code: 1}
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&isQuiet, "quiet", "q", false, "Only log failures")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics for the batch to this file")

	return cmd
}
