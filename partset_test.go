package mergetree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func namedPart(name string, left, right uint64, month PartitionKey) *Part {
	return &Part{
		Name:       name,
		LeftMonth:  month,
		RightMonth: month,
		KeyRange:   KeyRange{Left: left, Right: right},
	}
}

func TestPartSetSnapshotIsOrderedAndDefensive(t *testing.T) {
	s := NewPartSet()
	s.Add(namedPart("c", 200, 300, 1), namedPart("a", 0, 100, 1), namedPart("b", 100, 200, 1))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{snap[0].Name, snap[1].Name, snap[2].Name})

	snap[0] = namedPart("mutated", 0, 0, 1)
	require.Equal(t, "a", s.Snapshot()[0].Name, "mutating a returned snapshot must not affect the set")
}

func TestPartSetReplacePartsSwapsAtomically(t *testing.T) {
	s := NewPartSet()
	a, b := namedPart("a", 0, 100, 1), namedPart("b", 100, 200, 1)
	s.Add(a, b)

	merged := namedPart("merged", 0, 200, 1)
	require.NoError(t, s.ReplaceParts([]*Part{a, b}, merged))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "merged", snap[0].Name)
}

func TestPartSetReplacePartsRejectsMissingPart(t *testing.T) {
	s := NewPartSet()
	a := namedPart("a", 0, 100, 1)
	s.Add(a)

	ghost := namedPart("ghost", 100, 200, 1)
	err := s.ReplaceParts([]*Part{a, ghost}, namedPart("merged", 0, 200, 1))
	require.Error(t, err)

	// The failed replace must not have removed a.
	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "a", snap[0].Name)
}
