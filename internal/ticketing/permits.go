package ticketing

import (
	"context"
	"fmt"
)

// Permits is a counting semaphore modelling a fixed number of sales
// windows.  It bounds how many calls are inside the store at once and plays
// no part in seat-level correctness.
type Permits struct {
	slots chan struct{}
}

// NewPermits returns a semaphore with n windows.  n below one is raised to one.
func NewPermits(n int) *Permits {
	if n < 1 {
		n = 1
	}
	return &Permits{slots: make(chan struct{}, n)}
}

// Acquire waits for a free window.  If ctx ends first the wait is abandoned
// and ErrWindowUnavailable is returned; the caller then owns no permit.
func (p *Permits) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	default:
	}
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrWindowUnavailable, ctx.Err())
	}
}

// Release returns a window obtained from Acquire.
func (p *Permits) Release() { <-p.slots }

// InUse reports how many windows are currently held.
func (p *Permits) InUse() int { return len(p.slots) }

// Capacity reports the total number of windows.
func (p *Permits) Capacity() int { return cap(p.slots) }
