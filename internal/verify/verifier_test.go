package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/route-ticketing/internal/geometry"
	"github.com/iliyamo/route-ticketing/internal/model"
	"github.com/iliyamo/route-ticketing/internal/ticketing"
	"github.com/iliyamo/route-ticketing/internal/trace"
	"github.com/iliyamo/route-ticketing/internal/workload"
)

// oneSeat has a single sellable slot and a single tour <1,2>.
var oneSeat = geometry.Geometry{Routes: 1, Coaches: 1, Seats: 1, Stations: 2}

// oneSeatThreeStations has a single slot and tours <1,2>, <1,3>, <2,3>.
var oneSeatThreeStations = geometry.Geometry{Routes: 1, Coaches: 1, Seats: 1, Stations: 3}

func ticket(id int64, passenger string, dep, arr int) model.Ticket {
	return model.Ticket{ID: id, Passenger: passenger, Route: 1, Coach: 1, Seat: 1, Departure: dep, Arrival: arr}
}

func verdict(t *testing.T, g geometry.Geometry, recs ...trace.Record) Result {
	t.Helper()
	v, err := New(g, recs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v.Verify(context.Background())
}

// replayWitness checks that a linearization is a permutation of recs that
// respects real-time order and replays with every observed result.
func replayWitness(t *testing.T, g geometry.Geometry, recs []trace.Record, res Result) {
	t.Helper()
	if len(res.Linearization) != len(recs) {
		t.Fatalf("linearization has %d records, history %d", len(res.Linearization), len(recs))
	}
	ref := ticketing.NewReference(g)
	for i, r := range res.Linearization {
		for _, later := range res.Linearization[i+1:] {
			if trace.Precedes(later, r) {
				t.Fatalf("%q placed before %q, which finished before it started", r, later)
			}
		}
		ok := true
		switch r.Op {
		case trace.OpBuy:
			ok = ref.Buy(r.Ticket())
		case trace.OpRefund:
			ok = ref.Refund(r.Ticket())
		case trace.OpInquiry:
			ok = ref.Remaining(r.Route, r.Departure, r.Arrival) == r.Left
		case trace.OpSoldOut:
			ok = ref.Remaining(r.Route, r.Departure, r.Arrival) == 0
		}
		if !ok {
			t.Fatalf("witness step %d (%q) does not replay", i, r)
		}
	}
}

func TestVerify_HandWrittenHistories(t *testing.T) {
	t.Parallel()

	t1 := ticket(1, "p1", 1, 2)
	t2 := ticket(2, "p2", 1, 2)

	tests := []struct {
		name string
		g    geometry.Geometry
		recs []trace.Record
		want Outcome
	}{
		{
			name: "empty history",
			g:    oneSeat,
			want: Linearizable,
		},
		{
			name: "one seat sold twice",
			g:    oneSeat,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, t1),
				trace.Bought(5, 15, 1, t2),
			},
			want: NotLinearizable,
		},
		{
			name: "resale inside a concurrent refund",
			g:    oneSeat,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, t1),
				trace.Refunded(20, 40, 0, t1),
				trace.Bought(25, 30, 1, t2),
			},
			want: Linearizable,
		},
		{
			name: "resale before the refund started",
			g:    oneSeat,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, t1),
				trace.Bought(12, 14, 1, t2),
				trace.Refunded(20, 40, 0, t1),
			},
			want: NotLinearizable,
		},
		{
			name: "inquiries disagree with real-time order",
			g:    oneSeat,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, t1),
				trace.Inquiry(5, 6, 1, 1, 1, 2, 0),
				trace.Inquiry(7, 8, 2, 1, 1, 2, 1),
			},
			want: NotLinearizable,
		},
		{
			name: "inquiry concurrent with sale sees old count",
			g:    oneSeat,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, t1),
				trace.Inquiry(5, 6, 1, 1, 1, 2, 1),
				trace.Inquiry(7, 8, 2, 1, 1, 2, 0),
			},
			want: Linearizable,
		},
		{
			name: "stale inquiry after sale",
			g:    oneSeat,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, t1),
				trace.Inquiry(11, 12, 1, 1, 1, 2, 1),
			},
			want: NotLinearizable,
		},
		{
			name: "sold out on an empty train",
			g:    oneSeat,
			recs: []trace.Record{
				trace.SoldOut(0, 5, 0, 1, 1, 2),
			},
			want: NotLinearizable,
		},
		{
			name: "sold out behind a concurrent sale",
			g:    oneSeat,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, t1),
				trace.SoldOut(5, 20, 1, 1, 1, 2),
			},
			want: Linearizable,
		},
		{
			name: "rejected refunds commute with everything",
			g:    oneSeat,
			recs: []trace.Record{
				trace.RefundError(0, 100, 3),
				trace.Bought(0, 10, 0, t1),
				trace.RefundError(11, 12, 3),
				trace.Inquiry(20, 30, 1, 1, 1, 2, 0),
			},
			want: Linearizable,
		},
		{
			name: "refund of a ticket never sold",
			g:    oneSeat,
			recs: []trace.Record{
				trace.Refunded(0, 10, 0, t1),
			},
			want: NotLinearizable,
		},
		{
			name: "overlapping tours share the seat",
			g:    oneSeatThreeStations,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, ticket(1, "p1", 1, 3)),
				trace.Bought(5, 15, 1, ticket(2, "p2", 2, 3)),
			},
			want: NotLinearizable,
		},
		{
			name: "adjacent tours share the seat in turn",
			g:    oneSeatThreeStations,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, ticket(1, "p1", 1, 2)),
				trace.Bought(5, 15, 1, ticket(2, "p2", 2, 3)),
				trace.Inquiry(20, 21, 0, 1, 1, 3, 0),
				trace.Inquiry(20, 21, 1, 1, 1, 2, 0),
			},
			want: Linearizable,
		},
		{
			name: "partial trip frees the rest of the route",
			g:    oneSeatThreeStations,
			recs: []trace.Record{
				trace.Bought(0, 10, 0, ticket(1, "p1", 2, 3)),
				trace.Inquiry(11, 12, 0, 1, 1, 2, 1),
				trace.SoldOut(11, 12, 1, 1, 1, 3),
			},
			want: Linearizable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := verdict(t, tt.g, tt.recs...)
			if res.Outcome != tt.want {
				t.Fatalf("got %s, want %s", res.Outcome, tt.want)
			}
			if res.Outcome == Linearizable {
				replayWitness(t, tt.g, tt.recs, res)
			} else if res.Linearization != nil {
				t.Fatalf("failed verdict carries a linearization")
			}
		})
	}
}

func TestVerify_WitnessOrder(t *testing.T) {
	t.Parallel()

	t1 := ticket(1, "p1", 1, 2)
	t2 := ticket(2, "p2", 1, 2)
	res := verdict(t, oneSeat,
		trace.Bought(25, 30, 1, t2),
		trace.Refunded(20, 40, 0, t1),
		trace.Bought(0, 10, 0, t1),
	)
	if res.Outcome != Linearizable {
		t.Fatalf("got %s", res.Outcome)
	}
	want := []trace.Opcode{trace.OpBuy, trace.OpRefund, trace.OpBuy}
	for i, r := range res.Linearization {
		if r.Op != want[i] {
			t.Fatalf("step %d: got %s, want %s", i, r.Op, want[i])
		}
	}
	if res.Linearization[0].TicketID != 1 || res.Linearization[2].TicketID != 2 {
		t.Fatalf("unexpected witness %v", res.Linearization)
	}
	if res.Steps < 3 {
		t.Fatalf("expected at least 3 steps, got %d", res.Steps)
	}
}

func TestNew_RejectsRecordsOutsideGeometry(t *testing.T) {
	t.Parallel()

	bad := []trace.Record{
		trace.Bought(0, 1, 0, model.Ticket{ID: 1, Passenger: "p", Route: 2, Coach: 1, Seat: 1, Departure: 1, Arrival: 2}),
		trace.Bought(0, 1, 0, model.Ticket{ID: 1, Passenger: "p", Route: 1, Coach: 1, Seat: 2, Departure: 1, Arrival: 2}),
		trace.Bought(0, 1, 0, model.Ticket{ID: 1, Passenger: "p", Route: 1, Coach: 1, Seat: 1, Departure: 2, Arrival: 2}),
		trace.Inquiry(0, 1, 0, 1, 1, 2, 2),
		trace.SoldOut(0, 1, 0, 1, 0, 2),
		{Start: 5, End: 1, Op: trace.OpRefundError},
		{Start: 0, End: 1, Op: trace.Opcode(99)},
	}
	for _, r := range bad {
		if _, err := New(oneSeat, []trace.Record{r}); !errors.Is(err, ErrRecordOutOfRange) {
			t.Fatalf("New(%q): expected ErrRecordOutOfRange, got %v", r, err)
		}
	}
	if _, err := New(geometry.Geometry{}, nil); !errors.Is(err, geometry.ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestVerify_Stopping(t *testing.T) {
	t.Parallel()

	recs := []trace.Record{
		trace.Bought(0, 10, 0, ticket(1, "p1", 1, 2)),
		trace.Inquiry(20, 30, 1, 1, 1, 2, 0),
	}

	t.Run("stop before verify", func(t *testing.T) {
		v, err := New(oneSeat, recs)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		v.Stop()
		v.Stop()
		if res := v.Verify(context.Background()); res.Outcome != TimedOut {
			t.Fatalf("expected TimedOut, got %s", res.Outcome)
		}
	})

	t.Run("step limit", func(t *testing.T) {
		v, err := New(oneSeat, recs, WithStepLimit(1))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if res := v.Verify(context.Background()); res.Outcome != TimedOut {
			t.Fatalf("expected TimedOut, got %s", res.Outcome)
		}
	})

	t.Run("deadline on an exponential history", func(t *testing.T) {
		// Forty concurrent buys, two per seat: every subset that keeps at
		// most one buy of each pair is a distinct legal search state.
		g := geometry.Geometry{Routes: 1, Coaches: 1, Seats: 20, Stations: 2}
		var hard []trace.Record
		for i := 0; i < 40; i++ {
			tk := model.Ticket{ID: int64(i + 1), Passenger: "p", Route: 1, Coach: 1, Seat: i%20 + 1, Departure: 1, Arrival: 2}
			hard = append(hard, trace.Bought(0, 1000, i, tk))
		}
		began := time.Now()
		res, err := Run(context.Background(), g, hard, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Outcome != TimedOut {
			t.Fatalf("expected TimedOut, got %s", res.Outcome)
		}
		if time.Since(began) > 5*time.Second {
			t.Fatalf("search did not stop promptly")
		}
	})

	t.Run("run without deadline", func(t *testing.T) {
		res, err := Run(context.Background(), oneSeat, recs, 0)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Outcome != Linearizable {
			t.Fatalf("expected Linearizable, got %s", res.Outcome)
		}
	})

	t.Run("run rejects bad input", func(t *testing.T) {
		_, err := Run(context.Background(), oneSeat, []trace.Record{trace.Inquiry(0, 1, 0, 9, 1, 2, 0)}, time.Second)
		if !errors.Is(err, ErrRecordOutOfRange) {
			t.Fatalf("expected ErrRecordOutOfRange, got %v", err)
		}
	})
}

func TestVerify_StoreHistoriesAreLinearizable(t *testing.T) {
	t.Parallel()

	t.Run("concurrent single-tour routes", func(t *testing.T) {
		c := workload.Case{Ops: 300, Threads: 4,
			Geometry: geometry.Geometry{Routes: 2, Coaches: 2, Seats: 2, Stations: 2}}
		rep, err := workload.RunAll(context.Background(), c, true)
		if err != nil {
			t.Fatalf("RunAll: %v", err)
		}
		recs := rep.Trace.Records()
		if err := CheckHistory(recs); err != nil {
			t.Fatalf("CheckHistory: %v", err)
		}
		res, err := Run(context.Background(), c.Geometry, recs, 30*time.Second)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Outcome != Linearizable {
			t.Fatalf("store history of %d records: %s", len(recs), res.Outcome)
		}
		replayWitness(t, c.Geometry, recs, res)
	})

	t.Run("sequential multi-station route", func(t *testing.T) {
		c := workload.Case{Ops: 1000, Threads: 1,
			Geometry: geometry.Geometry{Routes: 1, Coaches: 2, Seats: 3, Stations: 5}}
		rep, err := workload.RunAll(context.Background(), c, true)
		if err != nil {
			t.Fatalf("RunAll: %v", err)
		}
		recs := rep.Trace.Records()
		res, err := Run(context.Background(), c.Geometry, recs, 30*time.Second)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Outcome != Linearizable {
			t.Fatalf("sequential history of %d records: %s", len(recs), res.Outcome)
		}
		replayWitness(t, c.Geometry, recs, res)
	})
}

func TestCheckHistory(t *testing.T) {
	t.Parallel()

	t1 := ticket(1, "p1", 1, 2)
	tests := []struct {
		name string
		recs []trace.Record
		ok   bool
	}{
		{"buy then refund", []trace.Record{trace.Bought(0, 10, 0, t1), trace.Refunded(11, 20, 0, t1)}, true},
		{"thread overlaps itself", []trace.Record{trace.Bought(0, 10, 0, t1), trace.Inquiry(5, 20, 0, 1, 1, 2, 0)}, false},
		{"ticket id sold twice", []trace.Record{trace.Bought(0, 10, 0, t1), trace.Bought(0, 10, 1, t1)}, false},
		{"refund of unsold ticket", []trace.Record{trace.Refunded(0, 10, 0, t1)}, false},
		{"refund with another passenger", []trace.Record{trace.Bought(0, 10, 0, t1), trace.Refunded(11, 20, 0, ticket(1, "p2", 1, 2))}, false},
		{"refund ends before sale starts", []trace.Record{trace.Refunded(0, 5, 0, t1), trace.Bought(10, 20, 1, t1)}, false},
	}
	for _, tt := range tests {
		err := CheckHistory(tt.recs)
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInconsistentHistory) {
			t.Fatalf("%s: expected ErrInconsistentHistory, got %v", tt.name, err)
		}
	}
}

func TestBitset(t *testing.T) {
	t.Parallel()

	b := newBitset(130).fill(130)
	if !b.get(0) || !b.get(129) {
		t.Fatalf("fill left holes")
	}
	b.clear(0)
	b.clear(64)
	if got := b.next(0); got != 1 {
		t.Fatalf("next(0) = %d, want 1", got)
	}
	if got := b.next(64); got != 65 {
		t.Fatalf("next(64) = %d, want 65", got)
	}
	c := b.clone()
	if !c.equals(b) || c.hash() != b.hash() {
		t.Fatalf("clone differs")
	}
	c.clear(129)
	if c.equals(b) {
		t.Fatalf("clone shares storage")
	}
	for i := 0; i < 130; i++ {
		b.clear(i)
	}
	if got := b.next(0); got != -1 {
		t.Fatalf("next on empty set = %d", got)
	}
}
