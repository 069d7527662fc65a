package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/route-ticketing/internal/geometry"
	"github.com/iliyamo/route-ticketing/internal/model"
	q "github.com/iliyamo/route-ticketing/internal/queue"
	"github.com/iliyamo/route-ticketing/internal/repository"
	"github.com/iliyamo/route-ticketing/internal/ticketing"
	"github.com/iliyamo/route-ticketing/internal/trace"
)

var small = geometry.Geometry{Routes: 1, Coaches: 1, Seats: 2, Stations: 3}

type fakeSink struct {
	mu     sync.Mutex
	events []q.Event
}

func (f *fakeSink) Emit(ev q.Event) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

type fakeReports struct {
	mu   sync.Mutex
	byID map[string]model.VerificationReport
	fail error
}

func newFakeReports() *fakeReports { return &fakeReports{byID: map[string]model.VerificationReport{}} }

func (f *fakeReports) Create(_ context.Context, rep *model.VerificationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.byID[rep.ID] = *rep
	return nil
}

func (f *fakeReports) GetByID(_ context.Context, id string) (*model.VerificationReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rep, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	return &rep, nil
}

func (f *fakeReports) ListRecent(context.Context, int) ([]model.VerificationReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.VerificationReport{}
	for _, r := range f.byID {
		out = append(out, r)
	}
	return out, nil
}

type fakeCache struct {
	mu   sync.Mutex
	byID map[string]model.VerificationReport
	puts int
}

func (f *fakeCache) Get(_ context.Context, digest string) (*model.VerificationReport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rep, ok := f.byID[digest]
	return &rep, ok
}

func (f *fakeCache) Put(_ context.Context, rep *model.VerificationReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[rep.TraceDigest] = *rep
	f.puts++
}

func newTicketService(t *testing.T, sink EventSink) *TicketService {
	t.Helper()
	store, err := ticketing.NewStore(small, 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewTicketService(store, true, sink)
}

func TestTicketService_RecordsAndEmits(t *testing.T) {
	sink := &fakeSink{}
	s := newTicketService(t, sink)
	ctx := context.Background()

	t1, ok, err := s.Buy(ctx, "alice", 1, 1, 3)
	if err != nil || !ok {
		t.Fatalf("Buy: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.Buy(ctx, "bob", 1, 1, 3); !ok {
		t.Fatalf("second seat should be free")
	}
	if _, ok, _ := s.Buy(ctx, "carol", 1, 2, 3); ok {
		t.Fatalf("<2,3> should be sold out")
	}
	if n, err := s.Remaining(ctx, 1, 2, 3); err != nil || n != 0 {
		t.Fatalf("Remaining = %d, %v", n, err)
	}
	if ok, err := s.Refund(ctx, t1); err != nil || !ok {
		t.Fatalf("Refund: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Refund(ctx, t1); ok {
		t.Fatalf("double refund accepted")
	}
	if _, _, err := s.Buy(ctx, "dave", 9, 1, 2); !errors.Is(err, ticketing.ErrInvalidRoute) {
		t.Fatalf("expected ErrInvalidRoute, got %v", err)
	}

	hist := s.History()
	want := []trace.Opcode{trace.OpBuy, trace.OpBuy, trace.OpSoldOut, trace.OpInquiry, trace.OpRefund, trace.OpRefundError}
	if len(hist) != len(want) {
		t.Fatalf("history has %d records, want %d", len(hist), len(want))
	}
	threads := map[int]bool{}
	for i, r := range hist {
		if r.Op != want[i] {
			t.Fatalf("record %d: got %s, want %s", i, r.Op, want[i])
		}
		if threads[r.Thread] {
			t.Fatalf("thread id %d reused", r.Thread)
		}
		threads[r.Thread] = true
	}

	if len(sink.events) != 3 {
		t.Fatalf("expected 3 events (2 sold, 1 refunded), got %d", len(sink.events))
	}
	if sink.events[2].Kind != q.KindRefunded {
		t.Fatalf("unexpected last event %+v", sink.events[2])
	}
	if _, err := trace.Parse(sink.events[0].Line); err != nil {
		t.Fatalf("event line is not a trace record: %v", err)
	}
}

func TestVerificationService(t *testing.T) {
	ctx := context.Background()
	tickets := newTicketService(t, nil)
	for i := 0; i < 5; i++ {
		tk, ok, err := tickets.Buy(ctx, "p", 1, 1, 2)
		if err != nil {
			t.Fatalf("Buy: %v", err)
		}
		if ok && i%2 == 0 {
			_, _ = tickets.Refund(ctx, tk)
		}
		_, _ = tickets.Remaining(ctx, 1, 1, 3)
	}
	history := tickets.History()

	reports := newFakeReports()
	verdicts := &fakeCache{byID: map[string]model.VerificationReport{}}
	sink := &fakeSink{}
	svc := &VerificationService{Timeout: 10 * time.Second, Cache: verdicts, Reports: reports, Events: sink}

	v, err := svc.Verify(ctx, small, history)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Report.Outcome != "LINEARIZABLE" || v.Cached || !v.Stored {
		t.Fatalf("unexpected verdict %+v", v)
	}
	if len(v.Linearization) != len(history) {
		t.Fatalf("witness has %d records, history %d", len(v.Linearization), len(history))
	}
	if verdicts.puts != 1 || len(sink.events) != 1 || sink.events[0].ReportID != v.Report.ID {
		t.Fatalf("cache puts=%d events=%v", verdicts.puts, sink.events)
	}

	again, err := svc.Verify(ctx, small, history)
	if err != nil {
		t.Fatalf("Verify again: %v", err)
	}
	if !again.Cached || again.Report.ID != v.Report.ID {
		t.Fatalf("expected cached verdict of the first run, got %+v", again)
	}

	got, err := svc.Report(ctx, v.Report.ID)
	if err != nil || got.TraceDigest != v.Report.TraceDigest {
		t.Fatalf("Report: %+v %v", got, err)
	}
	if _, err := svc.Report(ctx, "not-a-uuid"); !errors.Is(err, repository.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}

	t.Run("violation", func(t *testing.T) {
		tk := model.Ticket{ID: 1, Passenger: "p", Route: 1, Coach: 1, Seat: 1, Departure: 1, Arrival: 3}
		tk2 := tk
		tk2.ID = 2
		bad := []trace.Record{trace.Bought(0, 10, 0, tk), trace.Bought(5, 15, 1, tk2)}
		v, err := svc.Verify(ctx, small, bad)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if v.Report.Outcome != "NOT_LINEARIZABLE" {
			t.Fatalf("got %s", v.Report.Outcome)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		out := []trace.Record{trace.Inquiry(0, 1, 0, 7, 1, 2, 0)}
		if _, err := svc.Verify(ctx, small, out); !errors.Is(err, ErrInvalidTrace) {
			t.Fatalf("expected ErrInvalidTrace, got %v", err)
		}
		overlap := []trace.Record{trace.Inquiry(0, 10, 0, 1, 1, 2, 2), trace.Inquiry(5, 6, 0, 1, 1, 2, 2)}
		if _, err := svc.Verify(ctx, small, overlap); !errors.Is(err, ErrInvalidTrace) {
			t.Fatalf("expected ErrInvalidTrace, got %v", err)
		}
		if _, err := svc.Verify(ctx, geometry.Geometry{}, nil); !errors.Is(err, ErrInvalidTrace) {
			t.Fatalf("expected ErrInvalidTrace for bad geometry, got %v", err)
		}
	})

	t.Run("storage failure still answers", func(t *testing.T) {
		failing := newFakeReports()
		failing.fail = errors.New("disk full")
		s := &VerificationService{Reports: failing}
		v, err := s.Verify(ctx, small, history)
		if err != nil || v.Stored {
			t.Fatalf("expected unstored verdict, got %+v %v", v, err)
		}
	})

	t.Run("no report storage", func(t *testing.T) {
		s := &VerificationService{}
		if _, err := s.Report(ctx, v.Report.ID); !errors.Is(err, ErrReportsDisabled) {
			t.Fatalf("expected ErrReportsDisabled, got %v", err)
		}
		if _, err := s.Recent(ctx, 5); !errors.Is(err, ErrReportsDisabled) {
			t.Fatalf("expected ErrReportsDisabled, got %v", err)
		}
	})
}

type countingPublisher struct {
	mu  sync.Mutex
	got []q.Event
}

func (c *countingPublisher) Publish(_ context.Context, ev q.Event) error {
	c.mu.Lock()
	c.got = append(c.got, ev)
	c.mu.Unlock()
	return nil
}

func (c *countingPublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestDispatcher(t *testing.T) {
	pub := &countingPublisher{}
	d := NewDispatcher(pub, 2)
	d.Emit(q.Event{Kind: q.KindSold, Line: "a"})
	d.Emit(q.Event{Kind: q.KindSold, Line: "b"})
	d.Emit(q.Event{Kind: q.KindSold, Line: "c"})
	if d.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", d.Dropped())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { d.Run(ctx); close(done) }()
	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if pub.count() != 2 {
		t.Fatalf("expected 2 published events, got %d", pub.count())
	}
	if pub.got[0].At == "" {
		t.Fatalf("Emit did not stamp the event time")
	}

	var nilDispatcher *Dispatcher
	nilDispatcher.Emit(q.Event{Kind: q.KindSold})
}
