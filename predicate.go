package mergetree

import "sync"

// CanMergePredicate decides whether two adjacent parts may be merged right
// now. It abstracts cross-worker coordination (claiming parts so two workers
// don't pick overlapping runs) and any replication constraints; the core
// places no requirement on the implementation beyond purity over the
// snapshot it was handed.
type CanMergePredicate func(prev, next *Part) bool

// AlwaysMergeable is a CanMergePredicate that imposes no additional
// constraint beyond the ones Selector already checks.
func AlwaysMergeable(prev, next *Part) bool { return true }

// ClaimTracker is a reference CanMergePredicate implementation that
// coordinates a pool of background merge workers: a part participates in at
// most one in-flight merge at a time. Workers call TryClaim on the run Selector
// returns before merging, and Release once Executor has published (or
// abandoned) the result.
//
// A mutex-guarded claimed-set, consulted before starting work, is enough to
// keep two concurrent workers from picking overlapping runs.
type ClaimTracker struct {
	mu     sync.Mutex
	claims map[string]bool
}

// NewClaimTracker returns an empty ClaimTracker.
func NewClaimTracker() *ClaimTracker {
	return &ClaimTracker{claims: make(map[string]bool)}
}

// Predicate returns a CanMergePredicate that refuses to extend a run across
// any part currently claimed by another in-flight merge.
func (c *ClaimTracker) Predicate() CanMergePredicate {
	return func(prev, next *Part) bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return !c.claims[prev.Name] && !c.claims[next.Name]
	}
}

// TryClaim claims every part in run, atomically. If any part is already
// claimed, no part is claimed and TryClaim returns false.
func (c *ClaimTracker) TryClaim(run []*Part) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range run {
		if c.claims[p.Name] {
			return false
		}
	}
	for _, p := range run {
		c.claims[p.Name] = true
	}
	return true
}

// Release removes the claim on every part in run.
func (c *ClaimTracker) Release(run []*Part) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range run {
		delete(c.claims, p.Name)
	}
}
