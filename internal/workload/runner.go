// Package workload drives a ticketing store with a random mix of buys,
// refunds and inquiries from concurrent workers and records every completed
// call as a trace record.
package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/iliyamo/route-ticketing/internal/geometry"
	"github.com/iliyamo/route-ticketing/internal/model"
	"github.com/iliyamo/route-ticketing/internal/ticketing"
	"github.com/iliyamo/route-ticketing/internal/trace"
)

// Mix splits operations by percentage.  Whatever is left after refunds and
// buys goes to inquiries.
type Mix struct {
	RefundPct int
	BuyPct    int
}

// DefaultMix is 30% refunds, 30% buys and 40% inquiries.
var DefaultMix = Mix{RefundPct: 30, BuyPct: 30}

func (m Mix) validate() error {
	if m.RefundPct < 0 || m.BuyPct < 0 || m.RefundPct+m.BuyPct > 100 {
		return fmt.Errorf("workload: invalid mix %d/%d", m.RefundPct, m.BuyPct)
	}
	return nil
}

// Stats counts what one runner did.
type Stats struct {
	Bought       int
	SoldOut      int
	Refunded     int
	RefundErrors int
	Inquiries    int
}

func (s *Stats) add(o Stats) {
	s.Bought += o.Bought
	s.SoldOut += o.SoldOut
	s.Refunded += o.Refunded
	s.RefundErrors += o.RefundErrors
	s.Inquiries += o.Inquiries
}

// Total returns the number of completed operations.
func (s Stats) Total() int {
	return s.Bought + s.SoldOut + s.Refunded + s.RefundErrors + s.Inquiries
}

// Store is the part of ticketing.Store a runner drives.
type Store interface {
	Buy(ctx context.Context, passenger string, route, departure, arrival int) (model.Ticket, bool, error)
	Refund(ctx context.Context, t model.Ticket) (bool, error)
	Inquiry(ctx context.Context, route, departure, arrival int) (int, error)
}

// Runner is one worker.  ID becomes the thread field of its records.
//
// Fields:
//   - Ops: number of operations to attempt.
//   - Passengers: names are drawn from passenger0..passenger<Passengers-1>.
//   - Trace: receives a record per completed call; nil disables recording.
//   - Epoch: record times are nanoseconds since Epoch.
//   - Seed: seeds the runner's random source; runners with equal seeds make
//     the same choices.
type Runner struct {
	ID         int
	Store      Store
	Geometry   geometry.Geometry
	Ops        int
	Passengers int
	Mix        Mix
	Trace      *trace.Buffer
	Epoch      time.Time
	Seed       uint64
}

// Run performs Ops operations and stops early when ctx is done or the store
// returns an error.  Refunds are only attempted on tickets this runner still
// holds; a refund is counted once it was attempted, whatever its result.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := r.Mix.validate(); err != nil {
		return stats, err
	}
	rng := rand.New(rand.NewPCG(r.Seed, uint64(r.ID)))
	passengers := r.Passengers
	if passengers <= 0 {
		passengers = 1
	}
	var held []model.Ticket

	for i := 0; i < r.Ops; i++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		sel := rng.IntN(100)
		switch {
		case sel < r.Mix.RefundPct:
			if len(held) == 0 {
				continue
			}
			k := rng.IntN(len(held))
			t := held[k]
			held[k] = held[len(held)-1]
			held = held[:len(held)-1]

			start := r.now()
			ok, err := r.Store.Refund(ctx, t)
			if err != nil {
				return stats, err
			}
			end := r.now()
			if ok {
				stats.Refunded++
				r.record(trace.Refunded(start, end, r.ID, t))
			} else {
				stats.RefundErrors++
				r.record(trace.RefundError(start, end, r.ID))
			}

		case sel < r.Mix.RefundPct+r.Mix.BuyPct:
			passenger := fmt.Sprintf("passenger%d", rng.IntN(passengers))
			route, dep, arr := r.pickTour(rng)
			start := r.now()
			t, ok, err := r.Store.Buy(ctx, passenger, route, dep, arr)
			if err != nil {
				return stats, err
			}
			end := r.now()
			if ok {
				stats.Bought++
				held = append(held, t)
				r.record(trace.Bought(start, end, r.ID, t))
			} else {
				stats.SoldOut++
				r.record(trace.SoldOut(start, end, r.ID, route, dep, arr))
			}

		default:
			route, dep, arr := r.pickTour(rng)
			start := r.now()
			left, err := r.Store.Inquiry(ctx, route, dep, arr)
			if err != nil {
				return stats, err
			}
			end := r.now()
			stats.Inquiries++
			r.record(trace.Inquiry(start, end, r.ID, route, dep, arr, left))
		}
	}
	return stats, nil
}

// pickTour draws a route and a tour uniformly over departures, then over
// arrivals past the departure.
func (r *Runner) pickTour(rng *rand.Rand) (route, departure, arrival int) {
	route = rng.IntN(r.Geometry.Routes) + 1
	departure = rng.IntN(r.Geometry.Stations-1) + 1
	arrival = departure + rng.IntN(r.Geometry.Stations-departure) + 1
	return route, departure, arrival
}

func (r *Runner) now() int64 {
	return int64(time.Since(r.Epoch))
}

func (r *Runner) record(rec trace.Record) {
	if r.Trace != nil {
		r.Trace.Add(rec)
	}
}

// Case is one benchmark configuration.
type Case struct {
	Ops      int               `yaml:"testnum"`
	Threads  int               `yaml:"threadnum"`
	Geometry geometry.Geometry `yaml:",inline"`
}

// Validate rejects cases that cannot run.
func (c Case) Validate() error {
	if c.Ops < 0 || c.Threads < 1 {
		return fmt.Errorf("workload: case needs testnum >= 0 and threadnum >= 1, got %d/%d", c.Ops, c.Threads)
	}
	return c.Geometry.Validate()
}

// String renders c like the header of a benchmark report.
func (c Case) String() string {
	return fmt.Sprintf("testnum=%d threadnum=%d %s", c.Ops, c.Threads, c.Geometry)
}

// Report is the outcome of one RunAll.
type Report struct {
	Trace    *trace.Buffer
	Stats    Stats
	Duration time.Duration
}

// RunAll runs c.Threads runners with ids 0..Threads-1 against one fresh store
// sized with one sales window per thread, and waits for all of them.  Each
// runner performs c.Ops operations.
func RunAll(ctx context.Context, c Case, record bool) (Report, error) {
	if err := c.Validate(); err != nil {
		return Report{}, err
	}
	store, err := ticketing.NewStore(c.Geometry, c.Threads)
	if err != nil {
		return Report{}, err
	}

	var buf *trace.Buffer
	if record {
		buf = trace.NewBuffer(c.Ops * c.Threads)
	}
	seed := uint64(time.Now().UnixNano())
	epoch := time.Now()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total Stats
		errs  []error
	)
	for id := 0; id < c.Threads; id++ {
		r := &Runner{
			ID:         id,
			Store:      store,
			Geometry:   c.Geometry,
			Ops:        c.Ops,
			Passengers: max(c.Ops, 1),
			Mix:        DefaultMix,
			Trace:      buf,
			Epoch:      epoch,
			Seed:       seed,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := r.Run(ctx)
			mu.Lock()
			defer mu.Unlock()
			total.add(stats)
			if err != nil {
				errs = append(errs, fmt.Errorf("runner %d: %w", r.ID, err))
			}
		}()
	}
	wg.Wait()

	rep := Report{Trace: buf, Stats: total, Duration: time.Since(epoch)}
	return rep, errors.Join(errs...)
}
