package ticketing

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/iliyamo/route-ticketing/internal/geometry"
	"github.com/iliyamo/route-ticketing/internal/model"
)

// Store is the concurrent seat inventory for every route of a geometry.
// Buy, Refund and Inquiry are safe for concurrent use.  Locking is per seat
// slot, so calls on disjoint tours only meet when they probe the same slot.
type Store struct {
	geo     geometry.Geometry
	routes  []*routeInventory // 1..R
	windows *Permits
	nextID  atomic.Int64
}

// NewStore builds an empty inventory for g with the given number of sales
// windows.
func NewStore(g geometry.Geometry, windows int) (*Store, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	collisions := geometry.NewCollisionIndex(g)
	routes := make([]*routeInventory, g.Routes+1)
	for i := 1; i <= g.Routes; i++ {
		routes[i] = newRouteInventory(g, collisions)
	}
	return &Store{geo: g, routes: routes, windows: NewPermits(windows)}, nil
}

// Geometry returns the shape the store was built for.
func (s *Store) Geometry() geometry.Geometry { return s.geo }

// Capacity returns the number of slots per route, the starting remaining
// count of every tour.
func (s *Store) Capacity() int { return s.geo.Slots() }

func (s *Store) tour(route, departure, arrival int) (int, error) {
	if !s.geo.ValidRoute(route) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRoute, route)
	}
	if !s.geo.ValidTour(departure, arrival) {
		return 0, fmt.Errorf("%w: <%d,%d>", ErrInvalidTour, departure, arrival)
	}
	return s.geo.TourIndex(departure, arrival), nil
}

func (s *Store) enter(ctx context.Context) error {
	if err := s.windows.Acquire(ctx); err != nil {
		log.Printf("ticketing: window wait interrupted: %v", err)
		return err
	}
	return nil
}

// Buy sells one seat on route for the tour <departure, arrival>.  The
// boolean is false when the tour is sold out.
func (s *Store) Buy(ctx context.Context, passenger string, route, departure, arrival int) (model.Ticket, bool, error) {
	tour, err := s.tour(route, departure, arrival)
	if err != nil {
		return model.Ticket{}, false, err
	}
	if err := s.enter(ctx); err != nil {
		return model.Ticket{}, false, err
	}
	defer s.windows.Release()

	no, id, ok := s.routes[route].acquire(tour, passenger, func() int64 { return s.nextID.Add(1) })
	if !ok {
		return model.Ticket{}, false, nil
	}
	coach, seat := s.geo.SlotPosition(no)
	return model.Ticket{
		ID:        id,
		Passenger: passenger,
		Route:     route,
		Coach:     coach,
		Seat:      seat,
		Departure: departure,
		Arrival:   arrival,
	}, true, nil
}

// Refund returns a sold ticket.  It reports false when t does not match an
// active sale exactly: wrong id or passenger, already refunded, never sold.
func (s *Store) Refund(ctx context.Context, t model.Ticket) (bool, error) {
	tour, err := s.tour(t.Route, t.Departure, t.Arrival)
	if err != nil {
		return false, nil
	}
	if !s.geo.ValidSeat(t.Coach, t.Seat) {
		return false, nil
	}
	if err := s.enter(ctx); err != nil {
		return false, err
	}
	defer s.windows.Release()

	return s.routes[t.Route].release(t.ID, tour, s.geo.SlotIndex(t.Coach, t.Seat), t.Passenger), nil
}

// Inquiry returns how many seats are still free for the tour.  It reads a
// counter maintained by Buy and Refund and takes no seat lock.
func (s *Store) Inquiry(ctx context.Context, route, departure, arrival int) (int, error) {
	tour, err := s.tour(route, departure, arrival)
	if err != nil {
		return 0, err
	}
	if err := s.enter(ctx); err != nil {
		return 0, err
	}
	defer s.windows.Release()

	return s.routes[route].count(tour), nil
}
