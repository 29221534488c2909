// Package runlock provides the run-level mutual exclusion that keeps two
// pipeline passes from interleaving. Staging is cleared and reloaded every
// run; two overlapping runs can lose rows or duplicate a partial load, so
// the lock is held for the full run duration.
package runlock

import (
	"context"
	"fmt"
)

// Locker is a mutual-exclusion lease keyed by pipeline identity.
type Locker interface {
	// Acquire attempts to take the lock. It returns false, without error,
	// when another holder has it.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up. Safe to call when not held.
	Release(ctx context.Context) error
}

// ErrHeld is returned by the pipeline when the lock is already taken.
var ErrHeld = fmt.Errorf("run lock held by another process")
