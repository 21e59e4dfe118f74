package compare

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsScannedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datadiff",
		Subsystem: "compare",
		Name:      "rows_scanned",
		Help:      "Rows read from relations being compared.",
	}, []string{"side"})
	diffsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datadiff",
		Subsystem: "compare",
		Name:      "diffs",
		Help:      "Differences found between relations.",
	}, []string{"type"})
	comparisonsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datadiff",
		Subsystem: "compare",
		Name:      "comparisons",
		Help:      "Completed comparisons by outcome.",
	}, []string{"outcome"})
	inProgressMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "datadiff",
		Subsystem: "compare",
		Name:      "in_progress",
		Help:      "Comparisons currently running.",
	})
)

func init() {
	// Initialise each metric by default.
	for _, s := range []string{"a", "b"} {
		rowsScannedMetric.WithLabelValues(s)
	}
	for _, s := range []string{"ONLY_A", "ONLY_B", "VALUE_DIFF"} {
		diffsMetric.WithLabelValues(s)
	}
	for _, s := range []string{"identical", "different", "error"} {
		comparisonsMetric.WithLabelValues(s)
	}
}
