// Package verify decides whether a recorded ticketing history is
// linearizable: whether some total order of its operations, consistent with
// real-time precedence, replays against the sequential reference with every
// observed result.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/iliyamo/route-ticketing/internal/geometry"
	"github.com/iliyamo/route-ticketing/internal/trace"
)

// ErrRecordOutOfRange is returned by New when a record names a route, tour,
// seat or count the geometry cannot hold.
var ErrRecordOutOfRange = errors.New("record out of range")

// Outcome is the verdict of one verification.
type Outcome int

const (
	Linearizable Outcome = iota + 1
	NotLinearizable
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Linearizable:
		return "LINEARIZABLE"
	case NotLinearizable:
		return "NOT_LINEARIZABLE"
	case TimedOut:
		return "TIMED_OUT"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result carries the verdict plus a witness order when one was found.
type Result struct {
	Outcome       Outcome
	Linearization []trace.Record
	// Steps counts records replayed into fresh search states.
	Steps   int
	Elapsed time.Duration
}

// Verifier checks one history.  Create a new Verifier per history.
type Verifier struct {
	geo      geometry.Geometry
	records  []trace.Record
	maxSteps int
	stopped  atomic.Bool
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithStepLimit bounds the search to n fresh states.  A search that runs out
// of steps reports TimedOut.  n <= 0 means no bound.
func WithStepLimit(n int) Option {
	return func(v *Verifier) { v.maxSteps = n }
}

// New validates records against g and prepares them for search.  Records are
// ordered by start time, then end time, then thread; equal keys keep their
// input order.
func New(g geometry.Geometry, records []trace.Record, opts ...Option) (*Verifier, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	for i, r := range records {
		if err := checkRecord(g, r); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, r, err)
		}
	}
	sorted := make([]trace.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(a, b int) bool {
		ra, rb := sorted[a], sorted[b]
		if ra.Start != rb.Start {
			return ra.Start < rb.Start
		}
		if ra.End != rb.End {
			return ra.End < rb.End
		}
		return ra.Thread < rb.Thread
	})
	v := &Verifier{geo: g, records: sorted}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func checkRecord(g geometry.Geometry, r trace.Record) error {
	if r.End < r.Start {
		return fmt.Errorf("%w: end before start", ErrRecordOutOfRange)
	}
	switch r.Op {
	case trace.OpRefundError:
		return nil
	case trace.OpBuy, trace.OpRefund, trace.OpSoldOut, trace.OpInquiry:
	default:
		return fmt.Errorf("%w: opcode %d", ErrRecordOutOfRange, int(r.Op))
	}
	if !g.ValidRoute(r.Route) || !g.ValidTour(r.Departure, r.Arrival) {
		return ErrRecordOutOfRange
	}
	if r.Mutates() && !g.ValidSeat(r.Coach, r.Seat) {
		return ErrRecordOutOfRange
	}
	if r.Op == trace.OpInquiry && (r.Left < 0 || r.Left > g.Slots()) {
		return ErrRecordOutOfRange
	}
	return nil
}

// Records returns the records in search order.
func (v *Verifier) Records() []trace.Record {
	out := make([]trace.Record, len(v.records))
	copy(out, v.records)
	return out
}

// Stop asks a running Verify to give up.  Verify then returns TimedOut.
// Stop is safe to call from any goroutine, any number of times.
func (v *Verifier) Stop() {
	v.stopped.Store(true)
}

// Verify searches for a linearization.  Cancelling ctx has the same effect as
// Stop.
func (v *Verifier) Verify(ctx context.Context) Result {
	began := time.Now()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			v.Stop()
		case <-done:
		}
	}()

	s := newSearch(v.geo, v.records, &v.stopped)
	s.maxSteps = v.maxSteps
	outcome, order := s.run()
	res := Result{Outcome: outcome, Steps: s.steps, Elapsed: time.Since(began)}
	if outcome == Linearizable {
		res.Linearization = make([]trace.Record, len(order))
		for i, idx := range order {
			res.Linearization[i] = v.records[idx]
		}
	}
	return res
}

// Run verifies records on a separate goroutine and waits at most timeout
// (no limit when timeout <= 0).  On expiry the search is stopped and Run
// returns its TimedOut result.
func Run(ctx context.Context, g geometry.Geometry, records []trace.Record, timeout time.Duration, opts ...Option) (Result, error) {
	v, err := New(g, records, opts...)
	if err != nil {
		return Result{}, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out := make(chan Result, 1)
	go func() { out <- v.Verify(ctx) }()
	select {
	case res := <-out:
		return res, nil
	case <-ctx.Done():
		v.Stop()
		return <-out, nil
	}
}
