package service

import (
    "context"
    "sync/atomic"
    "time"

    "github.com/iliyamo/route-ticketing/internal/geometry"
    "github.com/iliyamo/route-ticketing/internal/model"
    q "github.com/iliyamo/route-ticketing/internal/queue"
    "github.com/iliyamo/route-ticketing/internal/ticketing"
    "github.com/iliyamo/route-ticketing/internal/trace"
)

// EventSink receives ticket and verdict events.
type EventSink interface {
    Emit(ev q.Event)
}

// TicketService fronts the shared store for the HTTP layer.  When recording
// is on, every completed call is appended to an in-memory history that the
// verifier can check later.  Each call gets its own thread id, so calls
// are only ever ordered by real time.
type TicketService struct {
    store   *ticketing.Store
    history *trace.Buffer
    epoch   time.Time
    calls   atomic.Int64
    events  EventSink
}

// NewTicketService wraps store.  events may be nil.
func NewTicketService(store *ticketing.Store, record bool, events EventSink) *TicketService {
    s := &TicketService{store: store, epoch: time.Now(), events: events}
    if record {
        s.history = trace.NewBuffer(1024)
    }
    return s
}

func (s *TicketService) Geometry() geometry.Geometry { return s.store.Geometry() }

func (s *TicketService) now() int64 { return int64(time.Since(s.epoch)) }

func (s *TicketService) thread() int { return int(s.calls.Add(1)) }

func (s *TicketService) record(r trace.Record) {
    if s.history != nil {
        s.history.Add(r)
    }
}

func (s *TicketService) emit(kind string, r trace.Record) {
    if s.events != nil {
        s.events.Emit(q.Event{Kind: kind, Line: r.String()})
    }
}

// Buy sells a seat; ok is false when the tour is sold out.
func (s *TicketService) Buy(ctx context.Context, passenger string, route, departure, arrival int) (model.Ticket, bool, error) {
    id, start := s.thread(), s.now()
    t, ok, err := s.store.Buy(ctx, passenger, route, departure, arrival)
    if err != nil {
        return t, false, err
    }
    end := s.now()
    if !ok {
        s.record(trace.SoldOut(start, end, id, route, departure, arrival))
        return t, false, nil
    }
    rec := trace.Bought(start, end, id, t)
    s.record(rec)
    s.emit(q.KindSold, rec)
    return t, true, nil
}

// Refund returns t; ok is false when t is not an active sale.
func (s *TicketService) Refund(ctx context.Context, t model.Ticket) (bool, error) {
    id, start := s.thread(), s.now()
    ok, err := s.store.Refund(ctx, t)
    if err != nil {
        return false, err
    }
    end := s.now()
    if !ok {
        s.record(trace.RefundError(start, end, id))
        return false, nil
    }
    rec := trace.Refunded(start, end, id, t)
    s.record(rec)
    s.emit(q.KindRefunded, rec)
    return true, nil
}

// Remaining returns the free seat count of a tour.
func (s *TicketService) Remaining(ctx context.Context, route, departure, arrival int) (int, error) {
    id, start := s.thread(), s.now()
    n, err := s.store.Inquiry(ctx, route, departure, arrival)
    if err != nil {
        return 0, err
    }
    s.record(trace.Inquiry(start, s.now(), id, route, departure, arrival, n))
    return n, nil
}

// Recording reports whether the service keeps a history.
func (s *TicketService) Recording() bool { return s.history != nil }

// History returns a snapshot of the recorded calls, or nil when recording
// is off.
func (s *TicketService) History() []trace.Record {
    if s.history == nil {
        return nil
    }
    return s.history.Records()
}
