// Package geometry maps stations and seats of a route onto the dense indices
// used by the inventory: a (departure, arrival) pair becomes a tour index in
// 1..T and a (coach, seat) pair becomes a slot number in 1..N.  All functions
// are pure; a Geometry value is safe to share between goroutines.
package geometry

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is returned by Validate when a count is out of range.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Geometry describes the shape shared by every route of a ticketing run.
//
// Fields:
//
//	Routes   – number of routes, numbered 1..Routes.
//	Coaches  – coaches per train, numbered 1..Coaches.
//	Seats    – seats per coach, numbered 1..Seats.
//	Stations – stations per route, numbered 1..Stations.
type Geometry struct {
	Routes   int `yaml:"routenum" json:"routenum"`
	Coaches  int `yaml:"coachnum" json:"coachnum"`
	Seats    int `yaml:"seatnum" json:"seatnum"`
	Stations int `yaml:"stationnum" json:"stationnum"`
}

// Validate reports whether every count is usable.  A route needs at least
// two stations to carry a single tour.
func (g Geometry) Validate() error {
	switch {
	case g.Routes < 1:
		return fmt.Errorf("%w: routenum=%d", ErrInvalidGeometry, g.Routes)
	case g.Coaches < 1:
		return fmt.Errorf("%w: coachnum=%d", ErrInvalidGeometry, g.Coaches)
	case g.Seats < 1:
		return fmt.Errorf("%w: seatnum=%d", ErrInvalidGeometry, g.Seats)
	case g.Stations < 2:
		return fmt.Errorf("%w: stationnum=%d", ErrInvalidGeometry, g.Stations)
	}
	return nil
}

// stride is the width of one coach in slot numbering.
func (g Geometry) stride() int {
	if g.Coaches > g.Seats {
		return g.Coaches
	}
	return g.Seats
}

// Tours returns T, the number of single-direction tours of a route.
func (g Geometry) Tours() int {
	return g.Stations * (g.Stations - 1) / 2
}

// Slots returns N, the number of seat slots of a route.
func (g Geometry) Slots() int {
	return (g.Coaches-1)*g.stride() + g.Seats
}

// TourIndex hashes a (departure, arrival) pair onto 1..T.  Tours are
// enumerated departure-major: <1,2>=1, <1,3>=2, ..., <2,3>=S, ...
func (g Geometry) TourIndex(departure, arrival int) int {
	return ((2*g.Stations-departure)*(departure-1))/2 + arrival - departure
}

// TourStations is the inverse of TourIndex.
func (g Geometry) TourStations(tour int) (departure, arrival int) {
	base := 0
	for dep := 1; dep < g.Stations; dep++ {
		span := g.Stations - dep
		if tour <= base+span {
			return dep, dep + tour - base
		}
		base += span
	}
	return 0, 0
}

// SlotIndex hashes a (coach, seat) pair onto 1..N.
func (g Geometry) SlotIndex(coach, seat int) int {
	return (coach-1)*g.stride() + seat
}

// SlotPosition is the inverse of SlotIndex.  When coaches outnumber seats
// the numbering leaves slots whose seat exceeds Seats; they are still
// distinct sellable slots and round-trip through SlotIndex.
func (g Geometry) SlotPosition(slot int) (coach, seat int) {
	w := g.stride()
	return (slot-1)/w + 1, (slot-1)%w + 1
}

// ValidRoute reports whether route is in 1..Routes.
func (g Geometry) ValidRoute(route int) bool {
	return route >= 1 && route <= g.Routes
}

// ValidTour reports whether 1 <= departure < arrival <= Stations.
func (g Geometry) ValidTour(departure, arrival int) bool {
	return departure >= 1 && departure < arrival && arrival <= g.Stations
}

// ValidSeat reports whether (coach, seat) names one of the N slots.
func (g Geometry) ValidSeat(coach, seat int) bool {
	if coach < 1 || coach > g.Coaches || seat < 1 || seat > g.stride() {
		return false
	}
	return g.SlotIndex(coach, seat) <= g.Slots()
}

// Conflict reports whether two station ranges share a segment, i.e. whether
// one physical seat cannot serve both tours at once.
func Conflict(dep1, arr1, dep2, arr2 int) bool {
	return !(arr1 <= dep2 || arr2 <= dep1)
}

// String renders the geometry in the key=value form read by config.LoadGeometry.
func (g Geometry) String() string {
	return fmt.Sprintf("routenum=%d coachnum=%d seatnum=%d stationnum=%d",
		g.Routes, g.Coaches, g.Seats, g.Stations)
}
