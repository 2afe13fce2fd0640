package cognitive

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cognitive_decisions_total",
			Help: "Total number of decisions made by the cognitive core, by selection algorithm.",
		},
		[]string{"algorithm"},
	)

	mabSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cognitive_mab_selections_total",
			Help: "Total number of MAB arm selections, by strategy_id.",
		},
		[]string{"strategy_id"},
	)

	goldenTemplateCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cognitive_golden_templates",
			Help: "Current number of golden templates in the registry.",
		},
	)

	cullingEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cognitive_culling_events_total",
			Help: "Total number of strategies culled from the trial ground.",
		},
		[]string{"strategy_id"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cognitive_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	metricsOnce sync.Once
)

// InitMetrics registers the cognitive core's Prometheus metrics, extending
// pkg/observability/metrics.go's registration pattern with a cognitive_*
// family. Safe to call multiple times.
func InitMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(decisionsTotal, mabSelectionsTotal, goldenTemplateCount, cullingEventsTotal, stageDuration)
	})
}

func recordDecisionMetric(algorithm string) {
	decisionsTotal.WithLabelValues(algorithm).Inc()
}

func recordSelectionMetric(strategyID string) {
	mabSelectionsTotal.WithLabelValues(strategyID).Inc()
}

func setGoldenTemplateGauge(n int) {
	goldenTemplateCount.Set(float64(n))
}

func recordCullingMetric(strategyID string) {
	cullingEventsTotal.WithLabelValues(strategyID).Inc()
}

// recordStageTimings feeds a completed pipeline run's per-stage durations
// into the stage_duration histogram.
func recordStageTimings(timings map[string]time.Duration) {
	for stage, d := range timings {
		stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}
