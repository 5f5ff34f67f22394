package mergetree

import "github.com/cockroachdb/errors"

// RowCombiner sits on top of a KWayMerger and applies one of the three
// row-combining modes to each run of rows sharing a sort key. Ordinary passes
// each group through unchanged; Summing reduces each group to zero or one
// output row; Collapsing cancels opposite-sign pairs within a group and can
// emit several rows.
type RowCombiner struct {
	opts   TableOptions
	merger *KWayMerger

	bufferedRow   Row
	bufferedValid bool

	queue     []Row
	inputRows uint64
}

// NewRowCombiner returns a RowCombiner driven by merger, behaving per
// opts.Mode.
func NewRowCombiner(opts TableOptions, merger *KWayMerger) *RowCombiner {
	return &RowCombiner{opts: opts, merger: merger}
}

// InputRows returns the number of rows pulled from the underlying merger so
// far, counting every row regardless of whether combining dropped it. The
// Executor reports it when an Ordinary-mode merge writes no rows.
func (c *RowCombiner) InputRows() uint64 { return c.inputRows }

// Next returns the next output row, or ok=false once the underlying merger
// is exhausted and every buffered group has been emitted.
func (c *RowCombiner) Next() (Row, bool, error) {
	for len(c.queue) == 0 {
		group, ok, err := c.nextGroup()
		if err != nil {
			return Row{}, false, err
		}
		if !ok {
			return Row{}, false, nil
		}
		c.inputRows += uint64(len(group))
		c.queue = combine(c.opts.Mode, group)
	}
	row := c.queue[0]
	c.queue = c.queue[1:]
	return row, true, nil
}

// nextGroup drains the merger for one run of rows with an equal Key,
// buffering one row of lookahead the way rowStream does for KWayMerger's own
// inputs.
func (c *RowCombiner) nextGroup() ([]Row, bool, error) {
	if !c.bufferedValid {
		row, _, ok, err := c.merger.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		c.bufferedRow = row
		c.bufferedValid = true
	}

	group := []Row{c.bufferedRow}
	c.bufferedValid = false

	for {
		row, _, ok, err := c.merger.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		if row.Key != group[0].Key {
			c.bufferedRow = row
			c.bufferedValid = true
			break
		}
		group = append(group, row)
	}
	return group, true, nil
}

func combine(mode Mode, group []Row) []Row {
	switch mode {
	case Ordinary:
		return group
	case Collapsing:
		return collapseGroup(group)
	case Summing:
		return sumGroup(group)
	default:
		panic(errors.AssertionFailedf("mergetree: unknown row-combining mode %d", mode))
	}
}

// collapseGroup applies Collapsing mode: scanning the group in input order,
// a row whose Sign is the exact opposite of the currently pending row's
// cancels that pending row and is itself dropped. What survives to the end
// of the group is emitted.
func collapseGroup(rows []Row) []Row {
	var out []Row
	var pending Row
	havePending := false

	for _, r := range rows {
		if havePending && pending.Sign != 0 && r.Sign == -pending.Sign {
			havePending = false
			continue
		}
		if havePending {
			out = append(out, pending)
		}
		pending = r
		havePending = true
	}
	if havePending {
		out = append(out, pending)
	}
	return out
}

// sumGroup applies Summing mode: every row sharing a key is reduced to one
// row whose Numeric columns are the per-column sum across the group. A group
// whose summed columns are all zero is dropped entirely.
func sumGroup(rows []Row) []Row {
	sum := make(map[string]float64)
	for _, r := range rows {
		for k, v := range r.Numeric {
			sum[k] += v
		}
	}

	allZero := true
	for _, v := range sum {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return nil
	}

	last := rows[len(rows)-1]
	return []Row{{Key: last.Key, Sign: last.Sign, Numeric: sum}}
}
