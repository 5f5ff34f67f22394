package mergetree

// Row is a single record flowing through the merge pipeline. The real
// on-disk column format is out of scope; Row is the minimal shape Executor
// needs to implement sort-key ordering and the three row-combining modes.
type Row struct {
	// Key is the row's position in the table's monotone sort-key prefix.
	// Rows are merged in ascending Key order; for equal keys, input-part
	// order (then within-part order) decides.
	Key uint64
	// Sign is the signed column Collapsing mode cancels pairs on. It is
	// ignored by Ordinary and Summing.
	Sign int8
	// Numeric holds the non-key numeric columns Summing mode aggregates.
	// Ordinary and Collapsing pass it through unchanged.
	Numeric map[string]float64
}

// Clone returns a deep copy of r, safe to mutate independently.
func (r Row) Clone() Row {
	out := Row{Key: r.Key, Sign: r.Sign}
	if r.Numeric != nil {
		out.Numeric = make(map[string]float64, len(r.Numeric))
		for k, v := range r.Numeric {
			out.Numeric[k] = v
		}
	}
	return out
}
