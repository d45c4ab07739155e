// Package control provides the cooperative cancellation handle of a
// pipeline run. No stage unwinds like an exception on cancellation: the
// decode stage checks the token once per section before decoding it, and
// the merger checks it once per 4096 merged hits; both then return a
// Canceled outcome. Scanning, clustering and extraction take no token
// and are not cancellable.
package control

import "sync/atomic"

// CancelToken is a cheap, copy-free cancellation flag. The zero value is
// a valid, never-canceled token.
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken returns a fresh, non-canceled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel marks the token as canceled. Safe to call more than once or
// from multiple goroutines.
func (c *CancelToken) Cancel() {
	if c == nil {
		return
	}
	c.flag.Store(true)
}

// Canceled reports whether Cancel has been called.
func (c *CancelToken) Canceled() bool {
	if c == nil {
		return false
	}
	return c.flag.Load()
}
