// Package queue defines message payloads exchanged over the message broker
// and the consumer that archives them.
package queue

// QueueName is the durable queue carrying ticket and verdict events.
const QueueName = "ticket.events"

// Event kinds.
const (
    KindSold     = "sold"
    KindRefunded = "refunded"
    KindVerdict  = "verdict"
)

// Event is published for every completed sale or refund and for every
// stored verification verdict.  Sale and refund events carry the operation
// as a trace line, so the archived ticket log can be fed back to the
// verifier unchanged.
type Event struct {
    Kind     string `json:"kind"`
    Line     string `json:"line,omitempty"`      // trace record, sold/refunded only
    ReportID string `json:"report_id,omitempty"` // verdict only
    Outcome  string `json:"outcome,omitempty"`   // verdict only
    Records  int    `json:"records,omitempty"`   // verdict only
    At       string `json:"at"`                  // RFC 3339 publish time
}
