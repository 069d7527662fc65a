package service

import "errors"

var (
    // ErrInvalidTrace wraps every reason a submitted history cannot be checked.
    ErrInvalidTrace = errors.New("invalid trace")
    // ErrReportsDisabled is returned by report lookups without a database.
    ErrReportsDisabled = errors.New("report storage disabled")
    // ErrNoHistory is returned when the live history was requested but the
    // server does not record one.
    ErrNoHistory = errors.New("history recording disabled")
)
