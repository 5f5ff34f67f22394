package mergetree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClaimTrackerAllOrNothing(t *testing.T) {
	ct := NewClaimTracker()
	a, b, c := &Part{Name: "a"}, &Part{Name: "b"}, &Part{Name: "c"}

	require.True(t, ct.TryClaim([]*Part{a, b}))
	require.False(t, ct.TryClaim([]*Part{b, c}), "b is already claimed, so the whole run must fail")
	require.True(t, ct.TryClaim([]*Part{c}), "c was never claimed by the failed attempt")

	ct.Release([]*Part{a, b})
	require.True(t, ct.TryClaim([]*Part{a, b}))
}

func TestClaimTrackerPredicateReflectsClaims(t *testing.T) {
	ct := NewClaimTracker()
	a, b := &Part{Name: "a"}, &Part{Name: "b"}
	pred := ct.Predicate()

	require.True(t, pred(a, b))
	ct.TryClaim([]*Part{b})
	require.False(t, pred(a, b))
	ct.Release([]*Part{b})
	require.True(t, pred(a, b))
}
