package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	spawns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "childproc",
		Name:      "spawns_total",
		Help:      "Total number of spawn attempts by result (ok, error).",
	}, []string{"result"})

	jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "childproc",
		Name:      "jobs_total",
		Help:      "Total number of batch jobs run by outcome (passed, failed).",
	}, []string{"job", "outcome"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "childproc",
		Name:      "job_duration_seconds",
		Help:      "Wall time of batch jobs from spawn to reap in seconds.",
	}, []string{"job"})
)

func init() {
	registry.MustRegister(spawns, jobs, jobDuration)
}

// Registry returns the Prometheus registry containing all childproc metrics.
func Registry() *prometheus.Registry {
	return registry
}

// ObserveSpawn counts a spawn attempt
func ObserveSpawn(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	spawns.WithLabelValues(result).Inc()
}

// ObserveJob records the outcome and duration of a batch job
func ObserveJob(job string, passed bool, d time.Duration) {
	outcome := "passed"
	if !passed {
		outcome = "failed"
	}
	jobs.WithLabelValues(job, outcome).Inc()
	jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format,
// for the node exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
