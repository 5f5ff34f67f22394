package mergetree

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tokenbucket"
)

// estimateDiskSpaceCoefficient is the safety margin EstimateDiskSpaceForMerge
// applies on top of the input parts' raw size, to leave room for a
// temporarily oversized output directory while the merge is in flight.
const estimateDiskSpaceCoefficient = 1.4

// EstimateDiskSpaceForMerge returns the disk space Executor should reserve
// before starting a merge of parts: the sum of their on-disk sizes, scaled
// up by estimateDiskSpaceCoefficient to leave room for a temporarily
// oversized output directory.
func EstimateDiskSpaceForMerge(parts []*Part) uint64 {
	var total uint64
	for _, p := range parts {
		total += p.SizeBytes
	}
	return uint64(float64(total) * estimateDiskSpaceCoefficient)
}

// Pacer throttles an Executor's output writes to a configured byte rate, so
// a background merge does not starve foreground I/O. It wraps
// cockroachdb/tokenbucket the way cleaner.go's deletion pacer wraps
// internal/rate for the same reason on the delete-file path.
type Pacer struct {
	bucket tokenbucket.TokenBucket
}

// NewPacer returns a Pacer allowing bytesPerSecond sustained throughput with
// bursts up to burstBytes. A zero bytesPerSecond disables pacing.
func NewPacer(bytesPerSecond, burstBytes float64) *Pacer {
	p := &Pacer{}
	if bytesPerSecond <= 0 {
		bytesPerSecond = float64(1 << 62)
	}
	if burstBytes <= 0 {
		burstBytes = bytesPerSecond
	}
	p.bucket.Init(tokenbucket.TokensPerSecond(bytesPerSecond), tokenbucket.Tokens(burstBytes))
	return p
}

// Wait blocks until n bytes worth of tokens are available, or ctx is done.
func (p *Pacer) Wait(ctx context.Context, n uint64) error {
	if err := p.bucket.WaitCtx(ctx, tokenbucket.Tokens(n)); err != nil {
		return errors.Wrapf(err, "mergetree: pacing merge output")
	}
	return nil
}
