// Package metrics declares the process's Prometheus collectors: queue
// depth, job throughput, active worker count, and WS session count. Every
// collector is registered at package init via promauto against the
// default registry, so importing the package is enough to make its
// metrics appear on the exposition endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "imagegen"

var (
	// QueueDepthGauge tracks the current number of jobs waiting in the
	// worker pool's priority queue, across all priority lanes.
	QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of jobs waiting in the worker pool queue",
	})

	// ActiveWorkersGauge tracks whether the pool's single accelerator
	// worker is currently executing a job (0 or 1).
	ActiveWorkersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Number of workers currently executing a job against the accelerator",
	})

	// JobsProcessedTotal counts jobs that reached the done state, by job type.
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_processed_total",
		Help:      "Total number of jobs that completed successfully, by job type",
	}, []string{"job_type"})

	// JobsFailedTotal counts jobs that reached the failed or canceled
	// state, by job type and outcome.
	JobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_failed_total",
		Help:      "Total number of jobs that did not complete successfully, by job type and outcome",
	}, []string{"job_type", "outcome"})

	// JobDurationSeconds observes wall-clock time from job submission
	// (Job.SubmittedAt) to a terminal state, by job type, so queue wait is
	// included.
	JobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of a job from submission to its terminal state",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job_type"})

	// WSSessionsGauge tracks the number of currently connected WebSocket
	// sessions registered with the hub.
	WSSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_sessions",
		Help:      "Current number of connected WebSocket sessions",
	})

	// ModeSwitchesTotal counts completed mode-switch jobs.
	ModeSwitchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mode_switches_total",
		Help:      "Total number of mode switches the pool has completed",
	})
)
