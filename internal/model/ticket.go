package model

// Ticket is the proof of one sale.  It is minted by a successful buy and
// consumed by the matching refund.  A refund must present every identifying
// field unchanged: ID, Passenger, Route, Coach and Seat locate the sale,
// Departure and Arrival locate the tour it was sold for.
//
// Fields:
//  ID        – globally unique, monotonically increasing ticket id.
//  Passenger – name recorded with the sale.
//  Route     – route number, 1-based.
//  Coach     – coach number, 1-based.
//  Seat      – seat number within the coach, 1-based.
//  Departure – departure station, 1-based.
//  Arrival   – arrival station, greater than Departure.
type Ticket struct {
	ID        int64  `json:"tid"`
	Passenger string `json:"passenger"`
	Route     int    `json:"route"`
	Coach     int    `json:"coach"`
	Seat      int    `json:"seat"`
	Departure int    `json:"departure"`
	Arrival   int    `json:"arrival"`
}
