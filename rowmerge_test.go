package mergetree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func drainCombiner(t *testing.T, c *RowCombiner) []Row {
	var out []Row
	for {
		row, ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, row)
	}
	return out
}

func TestRowCombinerOrdinaryPassesEverythingThrough(t *testing.T) {
	a := newFakeReader([]Row{{Key: 1}, {Key: 1}, {Key: 2}}, 4)
	m, err := NewKWayMerger([]PartReader{a})
	require.NoError(t, err)

	c := NewRowCombiner(TableOptions{Mode: Ordinary}, m)
	rows := drainCombiner(t, c)
	require.Len(t, rows, 3, "Ordinary mode must never drop or merge rows, even with equal keys")
}

func TestCollapseGroupCancelsOppositeSignPairs(t *testing.T) {
	rows := []Row{{Key: 1, Sign: 1}, {Key: 1, Sign: -1}, {Key: 1, Sign: 1}}
	out := collapseGroup(rows)
	require.Len(t, out, 1)
	require.Equal(t, int8(1), out[0].Sign)
}

func TestCollapseGroupFullCancellationDropsEverything(t *testing.T) {
	rows := []Row{{Key: 1, Sign: 1}, {Key: 1, Sign: -1}}
	out := collapseGroup(rows)
	require.Empty(t, out)
}

func TestCollapseGroupNoCancellationKeepsAll(t *testing.T) {
	rows := []Row{{Key: 1, Sign: 1}, {Key: 1, Sign: 1}}
	out := collapseGroup(rows)
	require.Len(t, out, 2)
}

func TestRowCombinerCollapsingAcrossGroups(t *testing.T) {
	a := newFakeReader([]Row{
		{Key: 1, Sign: 1},
		{Key: 1, Sign: -1},
		{Key: 2, Sign: 1},
	}, 8)
	m, err := NewKWayMerger([]PartReader{a})
	require.NoError(t, err)

	c := NewRowCombiner(TableOptions{Mode: Collapsing}, m)
	rows := drainCombiner(t, c)
	require.Len(t, rows, 1)
	require.Equal(t, uint64(2), rows[0].Key)
}

func TestSumGroupSumsNumericColumns(t *testing.T) {
	rows := []Row{
		{Key: 1, Numeric: map[string]float64{"a": 1, "b": 2}},
		{Key: 1, Numeric: map[string]float64{"a": 3, "b": -2}},
	}
	out := sumGroup(rows)
	require.Len(t, out, 1)
	require.Equal(t, 4.0, out[0].Numeric["a"])
	require.Equal(t, 0.0, out[0].Numeric["b"])
}

func TestSumGroupDropsZeroSumRow(t *testing.T) {
	rows := []Row{
		{Key: 1, Numeric: map[string]float64{"a": 5}},
		{Key: 1, Numeric: map[string]float64{"a": -5}},
	}
	require.Empty(t, sumGroup(rows))
}

func TestRowCombinerSummingAcrossGroups(t *testing.T) {
	a := newFakeReader([]Row{
		{Key: 1, Numeric: map[string]float64{"v": 1}},
		{Key: 1, Numeric: map[string]float64{"v": 2}},
		{Key: 2, Numeric: map[string]float64{"v": 5}},
	}, 8)
	m, err := NewKWayMerger([]PartReader{a})
	require.NoError(t, err)

	c := NewRowCombiner(TableOptions{Mode: Summing}, m)
	rows := drainCombiner(t, c)
	require.Len(t, rows, 2)
	require.Equal(t, 3.0, rows[0].Numeric["v"])
	require.Equal(t, 5.0, rows[1].Numeric["v"])
}
