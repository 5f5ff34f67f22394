package mergetree

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEstimateDiskSpaceForMerge(t *testing.T) {
	parts := []*Part{
		{SizeBytes: 100},
		{SizeBytes: 200},
	}
	require.Equal(t, uint64(420), EstimateDiskSpaceForMerge(parts))
}

func TestPacerAllowsWaitWithinBurst(t *testing.T) {
	p := NewPacer(1<<20, 1<<20)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Wait(ctx, 100))
}

func TestPacerZeroRateIsUnbounded(t *testing.T) {
	p := NewPacer(0, 0)
	require.NoError(t, p.Wait(context.Background(), 1<<30))
}
