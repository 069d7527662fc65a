package ticketing

import (
	"sync"
	"sync/atomic"

	"github.com/iliyamo/route-ticketing/internal/geometry"
)

// holder is the passenger record stored at a (tour, slot) pair while sold.
type holder struct {
	id   int64
	name string
	sold bool
}

// seatSlot is one physical seat of a route.  occupancy[t] counts the active
// sales on this slot whose tour conflicts with tour t; holders[t] is the
// sale made for tour t itself.  Both are guarded by mu.
type seatSlot struct {
	mu        sync.Mutex
	occupancy []int16
	holders   []holder
}

// routeInventory is the seat map of one route.
//
//	nomax
//	^
//	| N || N |     | N |
//	|...||...|     |...|
//	| 1 || 1 |     | 1 |  <- slots, each with a counter per tour
//	 <T1 ><T2 > ... <Tn>  -> remaining and cursor per tour
type routeInventory struct {
	collisions geometry.CollisionIndex
	slots      []seatSlot     // 1..N
	remaining  []atomic.Int32 // 1..T, free slots per tour
	cursor     []atomic.Int32 // 1..T, slot believed free for the tour
}

func newRouteInventory(g geometry.Geometry, collisions geometry.CollisionIndex) *routeInventory {
	tours, n := g.Tours(), g.Slots()
	r := &routeInventory{
		collisions: collisions,
		slots:      make([]seatSlot, n+1),
		remaining:  make([]atomic.Int32, tours+1),
		cursor:     make([]atomic.Int32, tours+1),
	}
	for i := 1; i <= n; i++ {
		r.slots[i].occupancy = make([]int16, tours+1)
		r.slots[i].holders = make([]holder, tours+1)
	}
	for t := 1; t <= tours; t++ {
		r.remaining[t].Store(int32(n))
		r.cursor[t].Store(1)
	}
	return r
}

// acquire sells one slot for tour and returns it with the minted ticket id.
// It reports false only after observing that no slot is left for tour.
func (r *routeInventory) acquire(tour int, name string, mint func() int64) (int, int64, bool) {
	n := len(r.slots) - 1
retry:
	for {
		if r.remaining[tour].Load() == 0 {
			return 0, 0, false
		}
		start := int(r.cursor[tour].Load())
		no := start
		for r.remaining[tour].Load() > 0 {
			if id, ok := r.mark(no, tour, name, mint); ok {
				// Losing this race only leaves the hint stale.
				r.cursor[tour].CompareAndSwap(int32(start), int32(no%n+1))
				return no, id, true
			}
			if int(r.cursor[tour].Load()) != start {
				// a refund published a free slot
				continue retry
			}
			no = no%n + 1
		}
		return 0, 0, false
	}
}

// mark occupies slot no for tour if it is still free for it.
func (r *routeInventory) mark(no, tour int, name string, mint func() int64) (int64, bool) {
	s := &r.slots[no]
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.occupancy[tour] > 0 {
		return 0, false
	}
	for _, t := range r.collisions.Of(tour) {
		if s.occupancy[t] == 0 {
			r.remaining[t].Add(-1)
		}
		s.occupancy[t]++
	}
	id := mint()
	s.holders[tour] = holder{id: id, name: name, sold: true}
	return id, true
}

// release undoes the sale (id, name) of tour on slot no.  It reports false
// when that exact sale is not active.
func (r *routeInventory) release(id int64, tour, no int, name string) bool {
	s := &r.slots[no]
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.holders[tour]
	if !h.sold || h.id != id || h.name != name {
		return false
	}
	for _, t := range r.collisions.Of(tour) {
		s.occupancy[t]--
		if s.occupancy[t] == 0 {
			r.remaining[t].Add(1)
			r.cursor[t].Store(int32(no))
		}
	}
	s.holders[tour] = holder{}
	return true
}

func (r *routeInventory) count(tour int) int {
	return int(r.remaining[tour].Load())
}
