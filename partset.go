package mergetree

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// PartSet is the authoritative, mutable collection of parts for a table. It
// is safe for concurrent use: readers call Snapshot to get a consistent
// point-in-time view, and Add and ReplaceParts are the only mutations, each
// a single atomic transition.
//
// PartSet stands in for the table catalog's own part bookkeeping: the merge
// planner treats it as an external collaborator it reads from and swaps
// atomically, never as state it owns outright.
type PartSet struct {
	mu struct {
		sync.Mutex
		parts []*Part
	}
}

// NewPartSet returns an empty PartSet.
func NewPartSet() *PartSet {
	return &PartSet{}
}

// sortKey orders parts by (partition, left), the invariant order required by
// Selector's single left-to-right scan.
func sortKey(p *Part) (PartitionKey, uint64) {
	return p.LeftMonth, p.Left
}

// Add inserts parts into the set, maintaining sort order. It does not check
// for overlap; overlap is detected (and logged, not rejected) by Selector.
func (s *PartSet) Add(parts ...*Part) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.parts = append(s.mu.parts, parts...)
	s.sortLocked()
}

func (s *PartSet) sortLocked() {
	sort.Slice(s.mu.parts, func(i, j int) bool {
		pi, ki := sortKey(s.mu.parts[i])
		pj, kj := sortKey(s.mu.parts[j])
		if pi != pj {
			return pi < pj
		}
		return ki < kj
	})
}

// Snapshot returns a consistent point-in-time view of the part set, ordered
// by (partition, left). The returned slice is owned by the caller; the parts
// it references are immutable.
func (s *PartSet) Snapshot() []*Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Part, len(s.mu.parts))
	copy(out, s.mu.parts)
	return out
}

// ReplaceParts atomically removes old from the set and inserts output in
// their place. Readers observing the set via Snapshot see either all of old
// or just output, never both and never a hole.
//
// It is an error for any part in old to be missing from the set; that would
// mean a concurrent merge already consumed it, which a correct can_merge
// predicate is supposed to prevent.
func (s *PartSet) ReplaceParts(old []*Part, output *Part) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName := make(map[string]*Part, len(s.mu.parts))
	for _, p := range s.mu.parts {
		byName[p.Name] = p
	}
	for _, p := range old {
		if byName[p.Name] == nil {
			return errors.Newf("mergetree: part %q not present in part set; concurrent replace?", p.Name)
		}
	}

	removed := make(map[string]bool, len(old))
	for _, p := range old {
		removed[p.Name] = true
	}
	next := make([]*Part, 0, len(s.mu.parts)-len(old)+1)
	for _, p := range s.mu.parts {
		if !removed[p.Name] {
			next = append(next, p)
		}
	}
	next = append(next, output)
	s.mu.parts = next
	s.sortLocked()
	return nil
}
