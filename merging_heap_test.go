package mergetree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeReader is a PartReader over an in-memory slice of rows, split into
// fixed-size blocks, used to drive KWayMerger without a PartStore.
type fakeReader struct {
	rows      []Row
	blockSize int
	pos       int
	closed    bool
}

func newFakeReader(rows []Row, blockSize int) *fakeReader {
	return &fakeReader{rows: rows, blockSize: blockSize}
}

func (r *fakeReader) Open() error { return nil }

func (r *fakeReader) Next() (RowBlock, bool, error) {
	if r.pos >= len(r.rows) {
		return RowBlock{}, false, nil
	}
	end := r.pos + r.blockSize
	if end > len(r.rows) {
		end = len(r.rows)
	}
	block := RowBlock{Rows: r.rows[r.pos:end]}
	r.pos = end
	return block, true, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func keysOf(rows []Row) []uint64 {
	out := make([]uint64, len(rows))
	for i, r := range rows {
		out[i] = r.Key
	}
	return out
}

func drainMerger(t *testing.T, m *KWayMerger) ([]Row, []int) {
	var rows []Row
	var sources []int
	for {
		row, idx, ok, err := m.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		rows = append(rows, row)
		sources = append(sources, idx)
	}
	return rows, sources
}

func TestKWayMergerOrdersByKey(t *testing.T) {
	a := newFakeReader([]Row{{Key: 1}, {Key: 4}, {Key: 7}}, 2)
	b := newFakeReader([]Row{{Key: 2}, {Key: 3}, {Key: 8}}, 1)

	m, err := NewKWayMerger([]PartReader{a, b})
	require.NoError(t, err)

	rows, _ := drainMerger(t, m)
	require.Equal(t, []uint64{1, 2, 3, 4, 7, 8}, keysOf(rows))
	require.NoError(t, m.Close())
	require.True(t, a.closed)
	require.True(t, b.closed)
}

func TestKWayMergerBreaksTiesByStreamIndex(t *testing.T) {
	a := newFakeReader([]Row{{Key: 5, Sign: 1}}, 1)
	b := newFakeReader([]Row{{Key: 5, Sign: -1}}, 1)

	m, err := NewKWayMerger([]PartReader{a, b})
	require.NoError(t, err)

	rows, sources := drainMerger(t, m)
	require.Equal(t, []uint64{5, 5}, keysOf(rows))
	require.Equal(t, []int{0, 1}, sources, "equal keys must exit in ascending stream-index order")
	require.Equal(t, int8(1), rows[0].Sign)
	require.Equal(t, int8(-1), rows[1].Sign)
}

func TestKWayMergerHandlesEmptyStream(t *testing.T) {
	a := newFakeReader(nil, 4)
	b := newFakeReader([]Row{{Key: 1}, {Key: 2}}, 4)

	m, err := NewKWayMerger([]PartReader{a, b})
	require.NoError(t, err)

	rows, _ := drainMerger(t, m)
	require.Equal(t, []uint64{1, 2}, keysOf(rows))
}
