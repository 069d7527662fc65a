// Package ticketing holds the seat inventory of every route: the concurrent
// Store used by sales windows and the sequential Reference used to replay
// recorded traces.
//
// Sold-out buys, rejected refunds and zero inquiries are ordinary results,
// never errors.  The sentinel values below cover the remaining cases so
// callers can match them with errors.Is.
package ticketing

import "errors"

// ErrWindowUnavailable is returned when waiting for a sales window was
// interrupted (the caller's context ended).  The operation had no effect.
var ErrWindowUnavailable = errors.New("sales window unavailable")

// ErrInvalidRoute is returned for a route number outside the geometry.
var ErrInvalidRoute = errors.New("invalid route")

// ErrInvalidTour is returned for a departure/arrival pair outside the
// geometry or with departure >= arrival.
var ErrInvalidTour = errors.New("invalid tour")
