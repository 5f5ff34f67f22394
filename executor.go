package mergetree

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Executor turns a selected run of parts into one output part. It owns no
// state across calls: each Execute call opens its own readers, runs its own
// k-way merge, and writes its own output.
type Executor struct {
	opts  TableOptions
	store *PartStore
	pacer *Pacer
}

// NewExecutor returns an Executor writing into store, pacing its output
// through pacer. pacer may be nil, in which case output is unpaced.
func NewExecutor(opts TableOptions, store *PartStore, pacer *Pacer) *Executor {
	o := opts
	o.EnsureDefaults()
	return &Executor{opts: o, store: store, pacer: pacer}
}

// derivedPart computes the output part's metadata from its inputs: the union
// of key and date ranges, the partition months (equal across the run by
// construction), the summed mark and byte counts, and a level one past the
// maximum level among the inputs.
func derivedPart(run []*Part) *Part {
	first, last := run[0], run[len(run)-1]
	out := &Part{
		LeftMonth:  first.LeftMonth,
		RightMonth: last.RightMonth,
		KeyRange:   KeyRange{Left: first.Left, Right: last.Right},
		DateRange:  DateRange{MinDate: first.DateRange.MinDate, MaxDate: last.DateRange.MaxDate},
	}
	var maxLevel uint32
	for _, p := range run {
		out.Size += p.Size
		out.SizeBytes += p.SizeBytes
		if p.Level > maxLevel {
			maxLevel = p.Level
		}
		if p.DateRange.MinDate < out.DateRange.MinDate {
			out.DateRange.MinDate = p.DateRange.MinDate
		}
		if p.DateRange.MaxDate > out.DateRange.MaxDate {
			out.DateRange.MaxDate = p.DateRange.MaxDate
		}
	}
	out.Level = maxLevel + 1
	out.Name = partName(out.DateRange, out.KeyRange, out.Level)
	return out
}

// Result is the outcome of a single Execute call.
type Result struct {
	// Output is the newly written part, valid only when Merged is true.
	Output *Part
	// Rows is the number of rows actually written to Output, which can be
	// fewer than the sum of the input rows under Collapsing or Summing mode.
	Rows uint64
	// Merged reports whether a new part was produced and swapped into parts.
	// It is false for both the benign "run collapsed to nothing" case and the
	// cancelled case; the returned error distinguishes both from a real
	// failure.
	Merged bool
}

// Execute merges run (as selected by Selector.SelectPartsToMerge) into one
// new part, writes it to e.store, and atomically replaces run with the
// output in parts. The new part's name is derived before any row is
// written.
//
// token, if non-nil, is checked once per output block; a cancellation mid
// merge leaves parts untouched and returns a nil error with Result.Merged
// false.
func (e *Executor) Execute(ctx context.Context, parts *PartSet, run []*Part, token *CancelToken) (Result, error) {
	if len(run) == 0 {
		return Result{}, errors.New("mergetree: cannot execute an empty run")
	}

	out := derivedPart(run)
	log := e.opts.Logger

	readers := make([]PartReader, len(run))
	for i, p := range run {
		readers[i] = e.store.NewReader(p.Name)
	}

	merger, err := NewKWayMerger(readers)
	if err != nil {
		return Result{}, errors.Wrapf(err, "mergetree: merging run into %s", out.Name)
	}
	defer func() { _ = merger.Close() }()

	combiner := NewRowCombiner(e.opts, merger)

	writer := e.store.NewWriter(out.Name)
	if err := writer.Open(); err != nil {
		return Result{}, errors.Wrapf(err, "mergetree: opening output part %s", out.Name)
	}

	blockSize := DefaultMergeBlockSize
	block := make([]Row, 0, blockSize)
	var totalRows uint64

	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		if e.pacer != nil {
			if err := e.pacer.Wait(ctx, uint64(len(block)) * 64); err != nil {
				return err
			}
		}
		if err := writer.Write(RowBlock{Rows: block}); err != nil {
			return err
		}
		totalRows += uint64(len(block))
		block = block[:0]
		return nil
	}

	for {
		if token != nil && len(block) == 0 && token.Cancelled() {
			log.Infof("mergetree: merge of %s cancelled after %d rows", out.Name, totalRows)
			return Result{}, nil
		}

		row, ok, err := combiner.Next()
		if err != nil {
			return Result{}, errors.Wrapf(err, "mergetree: reading merged rows for %s", out.Name)
		}
		if !ok {
			break
		}
		block = append(block, row)
		if len(block) >= blockSize {
			if err := flush(); err != nil {
				return Result{}, errors.Wrapf(err, "mergetree: writing block for %s", out.Name)
			}
		}
	}
	if err := flush(); err != nil {
		return Result{}, errors.Wrapf(err, "mergetree: writing final block for %s", out.Name)
	}

	marksCount, err := writer.Close()
	if err != nil {
		return Result{}, errors.Wrapf(err, "mergetree: closing output part %s", out.Name)
	}

	if totalRows == 0 {
		if e.opts.Mode == Ordinary {
			log.Fatalf("mergetree: Ordinary merge of %s produced no rows from %d input rows",
				out.Name, combiner.InputRows())
		}
		// Every row cancelled out (Collapsing) or zero-summed (Summing): the
		// run is benign but produces nothing. Drop the empty output and
		// leave the inputs in place for the caller to garbage-collect.
		e.store.Delete(out.Name)
		log.Infof("mergetree: merge of %d parts into %s produced no rows", len(run), out.Name)
		return Result{}, nil
	}

	out.Size = marksCount

	if err := parts.ReplaceParts(run, out); err != nil {
		e.store.Delete(out.Name)
		return Result{}, errors.Wrapf(err, "mergetree: replacing merged parts with %s", out.Name)
	}
	for _, p := range run {
		e.store.Delete(p.Name)
	}

	log.Infof("mergetree: merged %d parts into %s (%d rows)", len(run), out.Name, totalRows)
	return Result{Output: out, Rows: totalRows, Merged: true}, nil
}
