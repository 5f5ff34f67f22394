package mergetree

import (
	"fmt"
	"time"
)

// DayNum is a day-granularity timestamp: the number of days since the Unix
// epoch, kept as a small integer handle for cheap comparison and storage.
type DayNum int32

// toDayNum truncates t to a day boundary and returns the day count since the
// epoch.
func toDayNum(t time.Time) DayNum {
	u := t.UTC()
	days := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Unix() / int64(24*time.Hour/time.Second)
	return DayNum(days)
}

// toFirstDayOfMonth returns the DayNum of the first day of the month
// containing d.
func toFirstDayOfMonth(d DayNum) DayNum {
	t := time.Unix(int64(d)*int64(24*time.Hour/time.Second), 0).UTC()
	return toDayNum(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC))
}

// PartitionKey identifies the partition (canonical month) a part belongs to.
type PartitionKey = DayNum

// KeyRange is the inclusive range of the monotone 64-bit sort-key prefix
// covered by a part.
type KeyRange struct {
	Left, Right uint64
}

// DateRange is the inclusive range of calendar days covered by a part,
// within its partition. Its fields are named MinDate/MaxDate rather than
// Left/Right so they don't collide with KeyRange's promoted fields once
// both are embedded in Part.
type DateRange struct {
	MinDate, MaxDate DayNum
}

// Part is an immutable, sorted, column-oriented fragment of a table. Once
// published into a PartSet, none of its fields change; a merge produces a new
// Part rather than mutating an existing one.
type Part struct {
	Name string

	LeftMonth, RightMonth PartitionKey
	KeyRange
	DateRange

	// Size is the number of index marks. Rows are approximately
	// Size*IndexGranularity.
	Size uint64
	// SizeBytes is the on-disk size of the part.
	SizeBytes uint64
	// Level is the merge generation; a freshly inserted part is level 0, and
	// a merge of inputs produces max(inputs.Level)+1.
	Level uint32
	// ModTime is the last write time of the part.
	ModTime time.Time
}

// SinglePartition reports whether the part's left and right dates fall in the
// same canonical month, the precondition for it being mergeable at all.
func (p *Part) SinglePartition() bool {
	return p.LeftMonth == p.RightMonth
}

// Rows estimates the row count of the part from its mark count.
func (p *Part) Rows(indexGranularity uint64) uint64 {
	return p.Size * indexGranularity
}

// partName derives the canonical, unique name for a part spanning the given
// bounds at the given level: date range, key range, then level.
func partName(dr DateRange, kr KeyRange, level uint32) string {
	return fmt.Sprintf("%d_%d_%d_%d_%d", dr.MinDate, dr.MaxDate, kr.Left, kr.Right, level)
}
