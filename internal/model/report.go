package model

import "time"

// VerificationReport summarises one linearizability check of a recorded
// trace.  Reports are written by the verification service and are never
// updated afterward.
//
// Fields:
//  ID          – run identifier (UUID).
//  TraceDigest – hex SHA-1 of the canonical trace text.
//  Outcome     – LINEARIZABLE, NOT_LINEARIZABLE or TIMED_OUT.
//  Records     – number of records in the trace.
//  Steps       – search nodes expanded before the outcome was reached.
//  ElapsedMS   – wall time spent in the search.
//  Geometry    – key=value geometry the trace was checked against.
//  CreatedAt   – when the report was stored.
type VerificationReport struct {
	ID          string    `json:"id"`           // verification_reports.id
	TraceDigest string    `json:"trace_digest"` // verification_reports.trace_digest
	Outcome     string    `json:"outcome"`      // verification_reports.outcome
	Records     int       `json:"records"`      // verification_reports.records
	Steps       int       `json:"steps"`        // verification_reports.steps
	ElapsedMS   int64     `json:"elapsed_ms"`   // verification_reports.elapsed_ms
	Geometry    string    `json:"geometry"`     // verification_reports.geometry
	CreatedAt   time.Time `json:"created_at"`   // verification_reports.created_at
}
