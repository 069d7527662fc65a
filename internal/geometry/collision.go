package geometry

// CollisionIndex lists, for every tour, the tours that would be blocked by a
// sale of that tour on the same slot.  The list for a tour includes the tour
// itself.  The index is built once and only read afterward.
type CollisionIndex struct {
	tours [][]int
}

// NewCollisionIndex builds the index for g.  Index 0 is unused so tours can
// be looked up by their 1-based number.
func NewCollisionIndex(g Geometry) CollisionIndex {
	t := g.Tours()
	tours := make([][]int, t+1)
	for a := 1; a <= t; a++ {
		depA, arrA := g.TourStations(a)
		for b := 1; b <= t; b++ {
			depB, arrB := g.TourStations(b)
			if Conflict(depA, arrA, depB, arrB) {
				tours[a] = append(tours[a], b)
			}
		}
	}
	return CollisionIndex{tours: tours}
}

// Of returns the conflicting tours of tour in ascending order.  Callers must
// not modify the returned slice.
func (c CollisionIndex) Of(tour int) []int {
	if tour < 1 || tour >= len(c.tours) {
		return nil
	}
	return c.tours[tour]
}
