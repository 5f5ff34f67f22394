package mergetree

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func putPart(t *testing.T, store *PartStore, set *PartSet, name string, left, right uint64, rows []Row) *Part {
	marks, err := store.PutRows(name, rows)
	require.NoError(t, err)
	p := &Part{
		Name:      name,
		KeyRange:  KeyRange{Left: left, Right: right},
		Size:      marks,
		SizeBytes: uint64(len(rows)) * 16,
	}
	set.Add(p)
	return p
}

func TestExecutorOrdinaryMergeProducesUnionOfRows(t *testing.T) {
	store := NewPartStore()
	set := NewPartSet()

	a := putPart(t, store, set, "a", 0, 2, []Row{{Key: 0}, {Key: 2}})
	b := putPart(t, store, set, "b", 2, 4, []Row{{Key: 1}, {Key: 3}})

	exec := NewExecutor(TableOptions{Mode: Ordinary}, store, nil)
	result, err := exec.Execute(context.Background(), set, []*Part{a, b}, nil)
	require.NoError(t, err)
	require.True(t, result.Merged)

	rows, err := store.Rows(result.Output.Name)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2, 3}, keysOf(rows))

	snap := set.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, result.Output.Name, snap[0].Name)

	_, err = store.Rows("a")
	require.Error(t, err, "input parts must be deleted from the store after a successful merge")
}

func TestExecutorSummingDropsZeroSumGroups(t *testing.T) {
	store := NewPartStore()
	set := NewPartSet()

	a := putPart(t, store, set, "a", 0, 1, []Row{{Key: 1, Numeric: map[string]float64{"v": 5}}})
	b := putPart(t, store, set, "b", 0, 1, []Row{{Key: 1, Numeric: map[string]float64{"v": -5}}})

	exec := NewExecutor(TableOptions{Mode: Summing}, store, nil)
	result, err := exec.Execute(context.Background(), set, []*Part{a, b}, nil)
	require.NoError(t, err)
	require.False(t, result.Merged, "a run that fully cancels must not produce an output part")

	// Inputs are left in place for the caller to garbage-collect.
	snap := set.Snapshot()
	require.Len(t, snap, 2)
}

func TestExecutorHonorsCancellation(t *testing.T) {
	store := NewPartStore()
	set := NewPartSet()

	rows := make([]Row, DefaultMergeBlockSize*3)
	for i := range rows {
		rows[i] = Row{Key: uint64(i)}
	}
	a := putPart(t, store, set, "a", 0, uint64(len(rows)), rows)

	token := NewCancelToken()
	token.Cancel()

	exec := NewExecutor(TableOptions{Mode: Ordinary}, store, nil)
	result, err := exec.Execute(context.Background(), set, []*Part{a}, token)
	require.NoError(t, err)
	require.False(t, result.Merged)

	snap := set.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "a", snap[0].Name, "a cancelled merge must leave the input part set untouched")
}

// fatalCapturingLogger records Fatalf calls instead of exiting the process,
// so tests can assert an Executor invariant violation without killing the
// test binary.
type fatalCapturingLogger struct {
	fatal []string
}

func (l *fatalCapturingLogger) Infof(format string, args ...interface{}) {}

func (l *fatalCapturingLogger) Fatalf(format string, args ...interface{}) {
	l.fatal = append(l.fatal, fmt.Sprintf(format, args...))
}

func TestExecutorOrdinaryMergeWithNoOutputRowsIsFatal(t *testing.T) {
	store := NewPartStore()
	set := NewPartSet()

	a := putPart(t, store, set, "a", 0, 0, nil)

	logger := &fatalCapturingLogger{}
	exec := NewExecutor(TableOptions{Mode: Ordinary, Logger: logger}, store, nil)
	_, err := exec.Execute(context.Background(), set, []*Part{a}, nil)
	require.NoError(t, err)
	require.Len(t, logger.fatal, 1, "an Ordinary merge that writes zero rows must be treated as a fatal invariant violation, not a benign empty merge")
}

func TestExecutorRejectsEmptyRun(t *testing.T) {
	store := NewPartStore()
	exec := NewExecutor(TableOptions{}, store, nil)
	_, err := exec.Execute(context.Background(), NewPartSet(), nil, nil)
	require.Error(t, err)
}
