// Package trace models completed ticketing operations as flat text records.
// One record is one line:
//
//	<start> <end> <thread> TicketBought <tid> <passenger> <route> <coach> <departure> <arrival> <seat>
//	<start> <end> <thread> TicketRefund <tid> <passenger> <route> <coach> <departure> <arrival> <seat>
//	<start> <end> <thread> TicketSoldOut <route> <departure> <arrival>
//	<start> <end> <thread> RemainTicket <left> <route> <departure> <arrival>
//	<start> <end> <thread> ErrOfRefund
//
// start and end are nanoseconds relative to a shared epoch.
package trace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/route-ticketing/internal/model"
)

// ErrMalformedRecord is returned by Parse for a line that is not a record.
var ErrMalformedRecord = errors.New("malformed trace record")

// Opcode is the kind of a completed operation.
type Opcode int

const (
	OpBuy Opcode = iota + 1
	OpRefund
	OpSoldOut
	OpInquiry
	OpRefundError
)

var opNames = map[Opcode]string{
	OpBuy:         "TicketBought",
	OpRefund:      "TicketRefund",
	OpSoldOut:     "TicketSoldOut",
	OpInquiry:     "RemainTicket",
	OpRefundError: "ErrOfRefund",
}

var opFields = map[Opcode]int{
	OpBuy:         11,
	OpRefund:      11,
	OpSoldOut:     7,
	OpInquiry:     8,
	OpRefundError: 4,
}

func (o Opcode) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "Opcode(" + strconv.Itoa(int(o)) + ")"
}

func parseOpcode(s string) (Opcode, bool) {
	for op, name := range opNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// Record is one completed operation.  Which payload fields are meaningful
// depends on Op; the others are zero.
type Record struct {
	Start     int64
	End       int64
	Thread    int
	Op        Opcode
	TicketID  int64
	Passenger string
	Route     int
	Coach     int
	Seat      int
	Departure int
	Arrival   int
	Left      int
}

// Bought records a successful buy.
func Bought(start, end int64, thread int, t model.Ticket) Record {
	return fromTicket(OpBuy, start, end, thread, t)
}

// Refunded records a successful refund.
func Refunded(start, end int64, thread int, t model.Ticket) Record {
	return fromTicket(OpRefund, start, end, thread, t)
}

func fromTicket(op Opcode, start, end int64, thread int, t model.Ticket) Record {
	return Record{
		Start: start, End: end, Thread: thread, Op: op,
		TicketID: t.ID, Passenger: t.Passenger,
		Route: t.Route, Coach: t.Coach, Seat: t.Seat,
		Departure: t.Departure, Arrival: t.Arrival,
	}
}

// SoldOut records a buy that found no seat.
func SoldOut(start, end int64, thread, route, departure, arrival int) Record {
	return Record{Start: start, End: end, Thread: thread, Op: OpSoldOut,
		Route: route, Departure: departure, Arrival: arrival}
}

// Inquiry records an inquiry that observed left free seats.
func Inquiry(start, end int64, thread, route, departure, arrival, left int) Record {
	return Record{Start: start, End: end, Thread: thread, Op: OpInquiry,
		Route: route, Departure: departure, Arrival: arrival, Left: left}
}

// RefundError records a rejected refund.
func RefundError(start, end int64, thread int) Record {
	return Record{Start: start, End: end, Thread: thread, Op: OpRefundError}
}

// Ticket returns the ticket carried by a buy or refund record.
func (r Record) Ticket() model.Ticket {
	return model.Ticket{
		ID: r.TicketID, Passenger: r.Passenger,
		Route: r.Route, Coach: r.Coach, Seat: r.Seat,
		Departure: r.Departure, Arrival: r.Arrival,
	}
}

// Mutates reports whether replaying r changes inventory state.
func (r Record) Mutates() bool {
	return r.Op == OpBuy || r.Op == OpRefund
}

// String renders r in the line format accepted by Parse.
func (r Record) String() string {
	head := fmt.Sprintf("%d %d %d %s", r.Start, r.End, r.Thread, r.Op)
	switch r.Op {
	case OpBuy, OpRefund:
		return fmt.Sprintf("%s %d %s %d %d %d %d %d", head,
			r.TicketID, r.Passenger, r.Route, r.Coach, r.Departure, r.Arrival, r.Seat)
	case OpSoldOut:
		return fmt.Sprintf("%s %d %d %d", head, r.Route, r.Departure, r.Arrival)
	case OpInquiry:
		return fmt.Sprintf("%s %d %d %d %d", head, r.Left, r.Route, r.Departure, r.Arrival)
	}
	return head
}

// Parse reads one record line.  The opcode decides how many fields must
// follow; every numeric field must be an integer.
func Parse(line string) (Record, error) {
	f := strings.Fields(line)
	if len(f) < 4 {
		return Record{}, fmt.Errorf("%w: %q", ErrMalformedRecord, line)
	}
	op, ok := parseOpcode(f[3])
	if !ok {
		return Record{}, fmt.Errorf("%w: unknown opcode %q in %q", ErrMalformedRecord, f[3], line)
	}
	if len(f) != opFields[op] {
		return Record{}, fmt.Errorf("%w: %s wants %d fields, got %d in %q",
			ErrMalformedRecord, op, opFields[op], len(f), line)
	}

	p := fieldParser{fields: f}
	r := Record{Op: op}
	r.Start = p.int64(0)
	r.End = p.int64(1)
	r.Thread = p.int(2)
	switch op {
	case OpBuy, OpRefund:
		r.TicketID = p.int64(4)
		r.Passenger = f[5]
		r.Route = p.int(6)
		r.Coach = p.int(7)
		r.Departure = p.int(8)
		r.Arrival = p.int(9)
		r.Seat = p.int(10)
	case OpSoldOut:
		r.Route = p.int(4)
		r.Departure = p.int(5)
		r.Arrival = p.int(6)
	case OpInquiry:
		r.Left = p.int(4)
		r.Route = p.int(5)
		r.Departure = p.int(6)
		r.Arrival = p.int(7)
	}
	if p.err != nil {
		return Record{}, fmt.Errorf("%w: %v in %q", ErrMalformedRecord, p.err, line)
	}
	if r.End < r.Start {
		return Record{}, fmt.Errorf("%w: end %d before start %d in %q", ErrMalformedRecord, r.End, r.Start, line)
	}
	return r, nil
}

// fieldParser keeps the first conversion error so Parse can check once.
type fieldParser struct {
	fields []string
	err    error
}

func (p *fieldParser) int64(i int) int64 {
	n, err := strconv.ParseInt(p.fields[i], 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
	}
	return n
}

func (p *fieldParser) int(i int) int {
	n, err := strconv.Atoi(p.fields[i])
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
	}
	return n
}

// Overlaps reports whether the intervals of a and b intersect in time.
// Touching intervals overlap: neither finished strictly before the other
// started.
func Overlaps(a, b Record) bool {
	return !Precedes(a, b) && !Precedes(b, a)
}

// Precedes reports whether a finished strictly before b started, which
// forces a ahead of b in any linearization.
func Precedes(a, b Record) bool {
	return a.End < b.Start
}

// Conflicts reports whether a and b touch the same inventory: the same route
// with station ranges sharing a segment.  A rejected refund touches nothing.
func Conflicts(a, b Record) bool {
	if a.Op == OpRefundError || b.Op == OpRefundError {
		return false
	}
	return a.Route == b.Route && !(a.Arrival <= b.Departure || b.Arrival <= a.Departure)
}
