package mergetree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestToDayNum(t *testing.T) {
	d := toDayNum(time.Date(2024, time.March, 15, 13, 45, 0, 0, time.UTC))
	again := toDayNum(time.Date(2024, time.March, 15, 23, 59, 59, 0, time.UTC))
	require.Equal(t, d, again, "same calendar day must produce the same DayNum regardless of time of day")
}

func TestToFirstDayOfMonth(t *testing.T) {
	d := toDayNum(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	first := toFirstDayOfMonth(d)
	require.Equal(t, toDayNum(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)), first)
}

func TestSinglePartition(t *testing.T) {
	p := &Part{LeftMonth: 100, RightMonth: 100}
	require.True(t, p.SinglePartition())

	p.RightMonth = 130
	require.False(t, p.SinglePartition())
}

func TestRows(t *testing.T) {
	p := &Part{Size: 5}
	require.Equal(t, uint64(5*8192), p.Rows(8192))
}

func TestPartNameDistinctForDistinctRanges(t *testing.T) {
	a := partName(DateRange{MinDate: 1, MaxDate: 2}, KeyRange{Left: 0, Right: 100}, 0)
	b := partName(DateRange{MinDate: 1, MaxDate: 2}, KeyRange{Left: 100, Right: 200}, 0)
	require.NotEqual(t, a, b)
}
