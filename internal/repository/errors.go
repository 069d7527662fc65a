// Package repository persists verification reports.  Sentinel errors let
// handlers tell a missing report from a storage failure.
package repository

import "errors"

// ErrReportNotFound is returned when no report has the requested id.
// Handlers translate it into an HTTP 404 response.
var ErrReportNotFound = errors.New("report not found")

// ErrDuplicateReport is returned when a report id is stored twice.
var ErrDuplicateReport = errors.New("report already exists")
