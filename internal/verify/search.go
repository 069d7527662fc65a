package verify

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/iliyamo/route-ticketing/internal/geometry"
	"github.com/iliyamo/route-ticketing/internal/ticketing"
	"github.com/iliyamo/route-ticketing/internal/trace"
)

// frame is one node of the depth-first search.  applied is the record whose
// replay produced this node (-1 at the root); undoing it restores the
// parent's reference state.
type frame struct {
	candidates []int
	next       int
	applied    int
}

// search replays records against a private Reference.  The reference state
// is a function of which records have been linearized, so a remaining set
// already expanded once never needs a second visit.
type search struct {
	recs      []trace.Record
	ref       *ticketing.Reference
	remaining bitset
	left      int
	visited   map[uint64][]bitset
	stop      *atomic.Bool
	steps     int
	maxSteps  int
}

func newSearch(g geometry.Geometry, recs []trace.Record, stop *atomic.Bool) *search {
	return &search{
		recs:      recs,
		ref:       ticketing.NewReference(g),
		remaining: newBitset(len(recs)).fill(len(recs)),
		left:      len(recs),
		visited:   make(map[uint64][]bitset),
		stop:      stop,
	}
}

// run returns the outcome and, when linearizable, the record positions in
// linearized order.
func (s *search) run() (Outcome, []int) {
	frames := []frame{{candidates: s.expand(), applied: -1}}
	for {
		if s.stop.Load() || (s.maxSteps > 0 && s.steps >= s.maxSteps) {
			return TimedOut, nil
		}
		if s.left == 0 {
			order := make([]int, 0, len(frames)-1)
			for _, f := range frames[1:] {
				order = append(order, f.applied)
			}
			return Linearizable, order
		}

		top := &frames[len(frames)-1]
		if top.next == len(top.candidates) {
			if top.applied < 0 {
				return NotLinearizable, nil
			}
			s.undo(top.applied)
			frames = frames[:len(frames)-1]
			continue
		}
		idx := top.candidates[top.next]
		top.next++

		if !s.apply(idx) {
			continue
		}
		if s.seen() {
			s.undo(idx)
			continue
		}
		s.steps++
		frames = append(frames, frame{candidates: s.expand(), applied: idx})
	}
}

// apply replays record i if the reference reproduces its observed result.
func (s *search) apply(i int) bool {
	r := s.recs[i]
	ok := false
	switch r.Op {
	case trace.OpBuy:
		ok = s.ref.Buy(r.Ticket())
	case trace.OpRefund:
		ok = s.ref.Refund(r.Ticket())
	case trace.OpInquiry:
		ok = s.ref.Remaining(r.Route, r.Departure, r.Arrival) == r.Left
	case trace.OpSoldOut:
		ok = s.ref.Remaining(r.Route, r.Departure, r.Arrival) == 0
	case trace.OpRefundError:
		ok = true
	}
	if ok {
		s.remaining.clear(i)
		s.left--
	}
	return ok
}

// undo reverts apply(i).
func (s *search) undo(i int) {
	r := s.recs[i]
	switch r.Op {
	case trace.OpBuy:
		s.ref.Refund(r.Ticket())
	case trace.OpRefund:
		s.ref.Buy(r.Ticket())
	}
	s.remaining.set(i)
	s.left++
}

// seen records the current remaining set and reports whether it was
// already expanded.
func (s *search) seen() bool {
	h := s.remaining.hash()
	for _, b := range s.visited[h] {
		if b.equals(s.remaining) {
			return true
		}
	}
	s.visited[h] = append(s.visited[h], s.remaining.clone())
	return false
}

// expand lists the records that may be linearized next.  A record is a
// candidate when no remaining record finished before it started; the frontier
// is the earliest end among remaining records.  When a candidate cannot
// interact with any competitor it is returned alone.
func (s *search) expand() []int {
	frontier := int64(math.MaxInt64)
	var scanned []int
	for i := s.remaining.next(0); i >= 0; i = s.remaining.next(i + 1) {
		r := s.recs[i]
		if r.Start > frontier {
			break
		}
		scanned = append(scanned, i)
		if r.End < frontier {
			frontier = r.End
		}
	}
	candidates := scanned[:0]
	for _, i := range scanned {
		if s.recs[i].Start <= frontier {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return s.recs[candidates[a]].End < s.recs[candidates[b]].End
	})

	for _, i := range candidates {
		if s.isolate(i) {
			return []int{i}
		}
	}
	return candidates
}

// isolate reports whether record i can be scheduled now without losing any
// linearization: it is a read that already matches, a rejected refund, or a
// legal buy/refund that no concurrent remaining record interferes with.
func (s *search) isolate(i int) bool {
	r := s.recs[i]
	switch r.Op {
	case trace.OpRefundError:
		return true
	case trace.OpInquiry:
		return s.ref.Remaining(r.Route, r.Departure, r.Arrival) == r.Left
	case trace.OpSoldOut:
		return s.ref.Remaining(r.Route, r.Departure, r.Arrival) == 0
	}

	for j := s.remaining.next(0); j >= 0; j = s.remaining.next(j + 1) {
		o := s.recs[j]
		if o.Start > r.End {
			break
		}
		if j != i && trace.Conflicts(r, o) {
			return false
		}
	}
	if !s.apply(i) {
		return false
	}
	s.undo(i)
	return true
}
