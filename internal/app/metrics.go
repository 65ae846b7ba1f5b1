package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepDuration tracks pipeline step latency.
	// Labels: step
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "course_advisor",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Duration of recommendation pipeline steps in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"step"},
	)

	// ResultsTotal counts finished pipeline runs.
	// Labels: status (answered, rejected, failed), reason
	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "course_advisor",
			Subsystem: "pipeline",
			Name:      "results_total",
			Help:      "Total number of recommendation pipeline runs by outcome",
		},
		[]string{"status", "reason"},
	)

	// SkillFailures counts skills dropped from a run.
	// Labels: step (retrieval, relevance_filter)
	SkillFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "course_advisor",
			Subsystem: "pipeline",
			Name:      "skill_failures_total",
			Help:      "Total number of per-skill failures isolated by the pipeline",
		},
		[]string{"step"},
	)

	LimiterRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "course_advisor",
			Subsystem: "limiter",
			Name:      "running",
			Help:      "Tasks currently admitted by the pipeline concurrency limiter",
		},
	)

	LimiterQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "course_advisor",
			Subsystem: "limiter",
			Name:      "queued",
			Help:      "Tasks waiting for the pipeline concurrency limiter",
		},
	)

	// OutcomesEmbedded counts outcomes linked to a vector by the ingestion worker.
	// Labels: dimension
	OutcomesEmbedded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "course_advisor",
			Subsystem: "ingestion",
			Name:      "outcomes_embedded_total",
			Help:      "Total number of learning outcomes embedded",
		},
		[]string{"dimension"},
	)
)
