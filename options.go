package mergetree

import "time"

// Mode is the row-combining policy an Executor applies while merging.
type Mode uint8

const (
	// Ordinary passes every row through; no row is ever dropped.
	Ordinary Mode = iota
	// Collapsing cancels adjacent rows with an equal sort key using a
	// designated signed column (+1/-1): pairs cancel, the net sign is
	// emitted.
	Collapsing
	// Summing aggregates adjacent rows with an equal sort key by summing all
	// non-key numeric columns into a single combined row.
	Summing
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Ordinary:
		return "Ordinary"
	case Collapsing:
		return "Collapsing"
	case Summing:
		return "Summing"
	default:
		return "Unknown"
	}
}

// Settings configures the Selector: the subset of a table's merge-related
// knobs that bear on run selection.
type Settings struct {
	// MaxPartsToMergeAtOnce caps the length of any selected run.
	MaxPartsToMergeAtOnce int
	// MaxRowsToMergeParts is the per-part row ceiling for inclusion in the
	// main selection stream.
	MaxRowsToMergeParts uint64
	// MaxRowsToMergePartsSecond is the stricter ceiling used when the
	// selector is asked to favor small parts (only_small).
	MaxRowsToMergePartsSecond uint64
	// MergePartsAtNightInc multiplies the row ceiling during the nightly
	// window (local hours 01:00-05:00 inclusive).
	MergePartsAtNightInc uint64
	// MaxSizeRatioToMergeParts is the base balance constant feeding the
	// dynamic ratio formula.
	MaxSizeRatioToMergeParts float64
	// IndexGranularity is the number of rows represented by one mark.
	IndexGranularity uint64

	// Logger receives Selector's diagnostic output. Defaults to
	// DefaultLogger.
	Logger Logger
	// Now, if set, overrides time.Now for selection (used by tests to pin
	// the nightly window and part ages). Defaults to time.Now.
	Now func() time.Time
}

// EnsureDefaults returns s with every zero-valued field replaced by its
// default. It does not mutate s if all fields are already set.
func (s *Settings) EnsureDefaults() *Settings {
	if s == nil {
		s = &Settings{}
	}
	if s.MaxPartsToMergeAtOnce == 0 {
		s.MaxPartsToMergeAtOnce = 100
	}
	if s.MaxRowsToMergeParts == 0 {
		s.MaxRowsToMergeParts = 100 << 20 // 100M rows
	}
	if s.MaxRowsToMergePartsSecond == 0 {
		s.MaxRowsToMergePartsSecond = 1 << 20 // 1M rows
	}
	if s.MergePartsAtNightInc == 0 {
		s.MergePartsAtNightInc = 1
	}
	if s.MaxSizeRatioToMergeParts == 0 {
		s.MaxSizeRatioToMergeParts = 5
	}
	if s.IndexGranularity == 0 {
		s.IndexGranularity = 8192
	}
	if s.Logger == nil {
		s.Logger = DefaultLogger{}
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// TableOptions carries the per-table knobs Executor needs that have nothing
// to do with selection: the row-combining mode, the name of the sign column,
// the index granularity, and the logger.
type TableOptions struct {
	Mode Mode
	// SignColumn names the +1/-1 column of the table's schema. No mode reads
	// it: Collapsing mode cancels on Row.Sign.
	SignColumn string
	// IndexGranularity is the number of rows represented by one mark. The
	// Executor does not read it: its output parts get one mark per written
	// block of up to DefaultMergeBlockSize rows.
	IndexGranularity uint64
	// Logger receives Executor's diagnostic output. Defaults to
	// DefaultLogger.
	Logger Logger
}

// EnsureDefaults mirrors Settings.EnsureDefaults for the executor-side
// options.
func (t *TableOptions) EnsureDefaults() *TableOptions {
	if t == nil {
		t = &TableOptions{}
	}
	if t.IndexGranularity == 0 {
		t.IndexGranularity = 8192
	}
	if t.Logger == nil {
		t.Logger = DefaultLogger{}
	}
	return t
}
