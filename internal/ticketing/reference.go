package ticketing

import (
	"github.com/iliyamo/route-ticketing/internal/geometry"
	"github.com/iliyamo/route-ticketing/internal/model"
)

// Reference is a sequential inventory used to replay a recorded trace.
// Unlike Store it sells the exact seat named by a ticket, so a recorded sale
// can be checked for legality and undone by Refund.  It is not safe for
// concurrent use; one verification run owns one Reference.
type Reference struct {
	geo        geometry.Geometry
	collisions geometry.CollisionIndex
	routes     []*referenceRoute
}

type referenceRoute struct {
	occupancy [][]int16  // [slot][tour]
	holders   [][]holder // [slot][tour]
	remaining []int      // [tour]
}

// NewReference returns an empty reference inventory for g.
func NewReference(g geometry.Geometry) *Reference {
	tours, n := g.Tours(), g.Slots()
	ref := &Reference{
		geo:        g,
		collisions: geometry.NewCollisionIndex(g),
		routes:     make([]*referenceRoute, g.Routes+1),
	}
	for i := 1; i <= g.Routes; i++ {
		r := &referenceRoute{
			occupancy: make([][]int16, n+1),
			holders:   make([][]holder, n+1),
			remaining: make([]int, tours+1),
		}
		for no := 1; no <= n; no++ {
			r.occupancy[no] = make([]int16, tours+1)
			r.holders[no] = make([]holder, tours+1)
		}
		for t := 1; t <= tours; t++ {
			r.remaining[t] = n
		}
		ref.routes[i] = r
	}
	return ref
}

func (ref *Reference) locate(t model.Ticket) (*referenceRoute, int, int, bool) {
	g := ref.geo
	if !g.ValidRoute(t.Route) || !g.ValidTour(t.Departure, t.Arrival) || !g.ValidSeat(t.Coach, t.Seat) {
		return nil, 0, 0, false
	}
	return ref.routes[t.Route], g.TourIndex(t.Departure, t.Arrival), g.SlotIndex(t.Coach, t.Seat), true
}

// Buy records the sale t if it is legal now: the tour is not sold out and the
// named seat is free for it.
func (ref *Reference) Buy(t model.Ticket) bool {
	r, tour, no, ok := ref.locate(t)
	if !ok {
		return false
	}
	if r.remaining[tour] == 0 || r.occupancy[no][tour] > 0 || r.holders[no][tour].sold {
		return false
	}
	for _, c := range ref.collisions.Of(tour) {
		if r.occupancy[no][c] == 0 {
			r.remaining[c]--
		}
		r.occupancy[no][c]++
	}
	r.holders[no][tour] = holder{id: t.ID, name: t.Passenger, sold: true}
	return true
}

// Refund removes the sale t if it is active with the same id and passenger.
func (ref *Reference) Refund(t model.Ticket) bool {
	r, tour, no, ok := ref.locate(t)
	if !ok {
		return false
	}
	h := r.holders[no][tour]
	if r.occupancy[no][tour] == 0 || !h.sold || h.id != t.ID || h.name != t.Passenger {
		return false
	}
	for _, c := range ref.collisions.Of(tour) {
		r.occupancy[no][c]--
		if r.occupancy[no][c] == 0 {
			r.remaining[c]++
		}
	}
	r.holders[no][tour] = holder{}
	return true
}

// Remaining returns the free seat count of a tour, or -1 when the route or
// stations are outside the geometry.
func (ref *Reference) Remaining(route, departure, arrival int) int {
	if !ref.geo.ValidRoute(route) || !ref.geo.ValidTour(departure, arrival) {
		return -1
	}
	return ref.routes[route].remaining[ref.geo.TourIndex(departure, arrival)]
}
