package mergetree

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// RunStats records the distribution of merge run sizes and durations across
// the lifetime of a scheduler, the way tool/manifest.go accumulates
// hdrhistogram-go histograms over a manifest's compaction history.
type RunStats struct {
	mu sync.Mutex

	runLength *hdrhistogram.Histogram
	rowsMerged *hdrhistogram.Histogram
	durationUs *hdrhistogram.Histogram
}

// NewRunStats returns an empty RunStats. Histograms track run length in
// parts (1-1000), rows merged (1-1e11), and duration in microseconds
// (1-1hr), each to 3 significant figures.
func NewRunStats() *RunStats {
	return &RunStats{
		runLength:  hdrhistogram.New(1, 1000, 3),
		rowsMerged: hdrhistogram.New(1, 1e11, 3),
		durationUs: hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3),
	}
}

// Record adds one completed merge's observations.
func (s *RunStats) Record(partCount int, rows uint64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.runLength.RecordValue(int64(partCount))
	_ = s.rowsMerged.RecordValue(int64(rows))
	_ = s.durationUs.RecordValue(d.Microseconds())
}

// Snapshot is a point-in-time read of RunStats' percentiles.
type Snapshot struct {
	RunLengthP50, RunLengthP99     int64
	RowsMergedP50, RowsMergedP99   int64
	DurationP50, DurationP99       time.Duration
	Count                          int64
}

// Snapshot returns the current percentile readings.
func (s *RunStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RunLengthP50:  s.runLength.ValueAtQuantile(50),
		RunLengthP99:  s.runLength.ValueAtQuantile(99),
		RowsMergedP50: s.rowsMerged.ValueAtQuantile(50),
		RowsMergedP99: s.rowsMerged.ValueAtQuantile(99),
		DurationP50:   time.Duration(s.durationUs.ValueAtQuantile(50)) * time.Microsecond,
		DurationP99:   time.Duration(s.durationUs.ValueAtQuantile(99)) * time.Microsecond,
		Count:         s.durationUs.TotalCount(),
	}
}
