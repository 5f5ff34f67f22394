package mergetree

import "sync/atomic"

// CancelToken is a cooperative cancellation flag checked once per output
// block, never mid-block.
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken returns a token in the not-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel marks the token cancelled. Safe to call from any goroutine, any
// number of times.
func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}
