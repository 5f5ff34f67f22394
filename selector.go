package mergetree

import (
	"math"
	"time"
)

// diskUsageCoefficientToSelect is the minimum ratio of available disk space
// to the total size of a candidate run for that run to be selectable.
const diskUsageCoefficientToSelect = 1.6

// SelectOptions parameterizes a single call to Selector.SelectPartsToMerge.
type SelectOptions struct {
	// AvailableDiskBytes is the disk headroom the caller has available for
	// a new merge output, not counting anything already reserved.
	AvailableDiskBytes uint64
	// MergeAnythingForOldMonths relaxes the balance requirement for
	// partitions whose month has fully elapsed, provided the oldest part in
	// the candidate run has sat for more than 15 days.
	MergeAnythingForOldMonths bool
	// Aggressive disables both the per-part row ceiling and the balance
	// requirement: any contiguous, same-partition, overlap-free run is
	// valid.
	Aggressive bool
	// OnlySmall forces the stricter MaxRowsToMergePartsSecond ceiling
	// regardless of the nightly window.
	OnlySmall bool
	// CanMerge gates every extension of a candidate run. It must be pure
	// over the snapshot it is invoked against.
	CanMerge CanMergePredicate
}

// Selector chooses, from a snapshot of a table's parts, at most one
// contiguous run worth merging next.
type Selector struct {
	settings *Settings
}

// NewSelector returns a Selector configured by settings. settings is copied
// and defaulted; later mutation of the passed-in value has no effect.
func NewSelector(settings Settings) *Selector {
	s := settings
	s.EnsureDefaults()
	return &Selector{settings: &s}
}

// runStats tracks the running aggregates of a candidate run as it is
// extended one part at a time.
type runStats struct {
	max, min, sum uint64
	totalBytes    uint64
	length        int
	minModTime    time.Time
	lastRight     uint64
}

func newRunStats(p *Part) runStats {
	return runStats{
		max: p.Size, min: p.Size, sum: p.Size,
		totalBytes: p.SizeBytes,
		length:     1,
		minModTime: p.ModTime,
		lastRight:  p.Right,
	}
}

func (r *runStats) extend(p *Part) {
	if p.Size > r.max {
		r.max = p.Size
	}
	if p.Size < r.min {
		r.min = p.Size
	}
	r.sum += p.Size
	r.totalBytes += p.SizeBytes
	r.length++
	if p.ModTime.Before(r.minModTime) {
		r.minModTime = p.ModTime
	}
	r.lastRight = p.Right
}

// balanceRatio computes the dynamic ratio threshold a run's parts must
// satisfy, given the run's current stats: older runs get a more permissive
// threshold, larger runs a stricter one.
func balanceRatio(r runStats, now time.Time, indexGranularity uint64, base float64) float64 {
	age := now.Sub(r.minModTime)
	if age < 0 {
		age = 0
	}
	ageSec := age.Seconds()

	timeRatioModifier := 0.5 + 9*ageSec/(30*86400+ageSec)

	logSum := math.Log2(float64(r.sum * indexGranularity))
	sizeRatioModifier := math.Max(0.25, 2-3*logSum/(25+logSum))

	return math.Max(0.5, timeRatioModifier*sizeRatioModifier*base)
}

// minRunLength implements the "young large parts must be merged at least
// three-at-a-time" rule.
func minRunLength(r runStats, now time.Time, indexGranularity uint64) int {
	age := now.Sub(r.minModTime)
	if r.max*indexGranularity*150 > 1<<30 && age < 6*time.Hour {
		return 3
	}
	return 2
}

// selectionKey is the lexicographic tie-break tuple (max, min, -length);
// smallest wins.
type selectionKey struct {
	max, min uint64
	length   int
}

func (a selectionKey) less(b selectionKey) bool {
	if a.max != b.max {
		return a.max < b.max
	}
	if a.min != b.min {
		return a.min < b.min
	}
	// Greater length wins, i.e. smaller -length.
	return a.length > b.length
}

// SelectPartsToMerge chooses at most one contiguous, same-partition run from
// parts (which must already be sorted by (partition, left), as PartSet's
// Snapshot produces) satisfying every selection rule below. It returns the
// chosen run and true, or nil and false if nothing is worth merging.
//
// parts is read-only; SelectPartsToMerge never mutates it and never performs
// I/O.
func (s *Selector) SelectPartsToMerge(parts []*Part, opts SelectOptions) ([]*Part, bool) {
	settings := s.settings
	log := settings.Logger
	canMerge := opts.CanMerge
	if canMerge == nil {
		canMerge = AlwaysMergeable
	}

	log.Infof("mergetree: selecting parts to merge")

	now := settings.Now()
	nowDay := toDayNum(now)
	nowMonth := toFirstDayOfMonth(nowDay)
	nowHour := now.Hour()

	curMaxRows := settings.MaxRowsToMergeParts
	if nowHour >= 1 && nowHour <= 5 {
		curMaxRows *= settings.MergePartsAtNightInc
	}
	if opts.OnlySmall {
		curMaxRows = settings.MaxRowsToMergePartsSecond
	}

	var (
		found           bool
		best            selectionKey
		bestBegin       int
		maxCountFromLeft int
	)

	for i := 0; i < len(parts); i++ {
		if maxCountFromLeft > 0 {
			maxCountFromLeft--
		}

		first := parts[i]

		if first.Size*settings.IndexGranularity > curMaxRows && !opts.Aggressive {
			continue
		}
		if !first.SinglePartition() {
			log.Infof("mergetree: part %s spans more than one month", first.Name)
			continue
		}

		month := first.LeftMonth
		isOldMonth := nowDay-nowMonth >= 1 && nowMonth > month

		stats := newRunStats(first)

		var longest selectionKey
		longestFound := false

		for j := i; stats.length < settings.MaxPartsToMergeAtOnce; {
			if j+1 >= len(parts) {
				break
			}
			prev := parts[j]
			next := parts[j+1]
			j++

			if !canMerge(prev, next) || !next.SinglePartition() || next.LeftMonth != month {
				break
			}
			if next.Size*settings.IndexGranularity > curMaxRows && !opts.Aggressive {
				break
			}
			if next.Left < stats.lastRight {
				log.Infof("mergetree: part %s intersects previous part", next.Name)
				break
			}

			stats.extend(next)

			minLen := minRunLength(stats, now, settings.IndexGranularity)
			ratio := balanceRatio(stats, now, settings.IndexGranularity, settings.MaxSizeRatioToMergeParts)
			age := now.Sub(stats.minModTime)

			balanced := float64(stats.max)/float64(stats.sum-stats.max) < ratio
			oldMonthExempt := isOldMonth && opts.MergeAnythingForOldMonths && age > 15*24*time.Hour

			if (balanced && stats.length >= minLen) || oldMonthExempt || opts.Aggressive {
				if float64(opts.AvailableDiskBytes) > float64(stats.totalBytes)*diskUsageCoefficientToSelect {
					longest = selectionKey{max: stats.max, min: stats.min, length: stats.length}
					longestFound = true
				} else {
					log.Infof(
						"mergetree: won't merge parts from %s to %s: not enough free space: "+
							"%d available, %d required (+%d%% overhead)",
						first.Name, next.Name, opts.AvailableDiskBytes, stats.totalBytes,
						int((diskUsageCoefficientToSelect-1.0)*100),
					)
				}
			}
		}

		if !longestFound {
			continue
		}
		if longest.length <= maxCountFromLeft {
			continue
		}
		maxCountFromLeft = longest.length

		if !found || longest.less(best) {
			found = true
			best = longest
			bestBegin = i
		}
	}

	if !found {
		log.Infof("mergetree: no parts to merge")
		return nil, false
	}

	run := parts[bestBegin : bestBegin+best.length]
	log.Infof("mergetree: selected %d parts from %s to %s", len(run), run[0].Name, run[len(run)-1].Name)
	return run, true
}
