package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rebuildsTotal counts rebuild attempts by outcome.
	// Labels: result (published, unchanged, failed)
	rebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "c3complete",
		Subsystem: "index",
		Name:      "rebuilds_total",
		Help:      "Total index rebuild attempts by result",
	}, []string{"result"})

	rebuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "c3complete",
		Subsystem: "index",
		Name:      "rebuild_seconds",
		Help:      "Time to load, flatten and merge the declarations",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	indexEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "c3complete",
		Subsystem: "index",
		Name:      "entries",
		Help:      "Number of paths in the published index",
	})

	// walkCutoffs counts branches the walker refused to expand in the last
	// published build.
	// Labels: guard (depth, root, cycle, revisit)
	walkCutoffs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "c3complete",
		Subsystem: "index",
		Name:      "walk_cutoffs",
		Help:      "Branches not expanded in the last published build, by guard",
	}, []string{"guard"})

	queriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "c3complete",
		Subsystem: "complete",
		Name:      "queries_total",
		Help:      "Total completion queries answered",
	})

	queryCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "c3complete",
		Subsystem: "complete",
		Name:      "candidates",
		Help:      "Candidates returned per completion query",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})
)

func recordRebuild(result string, seconds float64) {
	rebuildsTotal.WithLabelValues(result).Inc()
	if result == resultPublished {
		rebuildSeconds.Observe(seconds)
	}
}

func recordSnapshot(s *Snapshot) {
	indexEntries.Set(float64(s.Entries))
	walkCutoffs.WithLabelValues("depth").Set(float64(s.Walk.DepthCutoffs))
	walkCutoffs.WithLabelValues("root").Set(float64(s.Walk.RootCutoffs))
	walkCutoffs.WithLabelValues("cycle").Set(float64(s.Walk.CycleCutoffs))
	walkCutoffs.WithLabelValues("revisit").Set(float64(s.Walk.Revisits))
}

func recordQuery(candidates int) {
	queriesTotal.Inc()
	queryCandidates.Observe(float64(candidates))
}
