package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"digiland/land-registry/land-registry-backend/internal/landnft/faults"
)

// Metrics records pipeline activity. A nil *Metrics records nothing.
type Metrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	stages     *prometheus.HistogramVec
}

// NewMetrics registers pipeline collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "landnft",
			Subsystem: "pipeline",
			Name:      "executions_total",
			Help:      "Ledger transactions executed, by operation and result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "landnft",
			Subsystem: "pipeline",
			Name:      "execution_seconds",
			Help:      "End to end pipeline latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64, 128},
		}, []string{"operation"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "landnft",
			Subsystem: "pipeline",
			Name:      "stage_seconds",
			Help:      "Latency of individual pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "stage", "ok"}),
	}
	reg.MustRegister(m.executions, m.duration, m.stages)
	return m
}

func (m *Metrics) observeExecution(op string, outcome Outcome, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := string(outcome.Status)
	if err != nil {
		result = string(faults.KindOf(err))
	}
	m.executions.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) observeStage(op string, stage Stage, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	ok := "true"
	if err != nil {
		ok = "false"
	}
	m.stages.WithLabelValues(op, string(stage), ok).Observe(elapsed.Seconds())
}
