package mergetree

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors a scheduler registers once and
// updates as it selects and executes merges; Executor and Selector do not
// touch them. No code in this module increments RunsRejected. The
// field-of-collectors shape mirrors wal/wal.go's Metrics struct.
type Metrics struct {
	RunsSelected   prometheus.Counter
	RunsRejected   prometheus.Counter
	PartsMerged    prometheus.Counter
	RowsMerged     prometheus.Counter
	BytesMerged    prometheus.Counter
	MergeDuration  prometheus.Histogram
}

// NewMetrics constructs a Metrics with default bucket boundaries for merge
// duration, unregistered with any Registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		RunsSelected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergetree",
			Name:      "runs_selected_total",
			Help:      "Number of part runs chosen by the selector.",
		}),
		RunsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergetree",
			Name:      "runs_rejected_disk_total",
			Help:      "Number of candidate runs rejected for insufficient disk headroom.",
		}),
		PartsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergetree",
			Name:      "parts_merged_total",
			Help:      "Number of input parts consumed by successful merges.",
		}),
		RowsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergetree",
			Name:      "rows_merged_total",
			Help:      "Number of rows written to merge output parts.",
		}),
		BytesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mergetree",
			Name:      "bytes_merged_total",
			Help:      "Number of input bytes consumed by successful merges.",
		}),
		MergeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mergetree",
			Name:      "merge_duration_seconds",
			Help:      "Wall-clock duration of a single Executor.Execute call.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.RunsSelected, m.RunsRejected, m.PartsMerged, m.RowsMerged, m.BytesMerged, m.MergeDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveResult updates the parts/rows/bytes counters for one completed,
// successful merge that wrote rowsWritten rows.
func (m *Metrics) ObserveResult(run []*Part, rowsWritten uint64) {
	m.PartsMerged.Add(float64(len(run)))
	m.RowsMerged.Add(float64(rowsWritten))
	var bytes uint64
	for _, p := range run {
		bytes += p.SizeBytes
	}
	m.BytesMerged.Add(float64(bytes))
}
