package trace

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/iliyamo/route-ticketing/internal/model"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("buy line", func(t *testing.T) {
		r, err := Parse("100 250 3 TicketBought 42 passenger7 2 5 1 4 17")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := Record{Start: 100, End: 250, Thread: 3, Op: OpBuy, TicketID: 42, Passenger: "passenger7",
			Route: 2, Coach: 5, Departure: 1, Arrival: 4, Seat: 17}
		if r != want {
			t.Fatalf("got %+v, want %+v", r, want)
		}
		if r.Ticket() != (model.Ticket{ID: 42, Passenger: "passenger7", Route: 2, Coach: 5, Seat: 17, Departure: 1, Arrival: 4}) {
			t.Fatalf("unexpected ticket %+v", r.Ticket())
		}
	})

	t.Run("every opcode renders back to its line", func(t *testing.T) {
		lines := []string{
			"1 2 0 TicketBought 1 p 1 1 1 2 1",
			"3 4 1 TicketRefund 1 p 1 1 1 2 1",
			"5 6 2 TicketSoldOut 1 2 3",
			"7 8 3 RemainTicket 9 1 2 3",
			"9 10 4 ErrOfRefund",
		}
		for _, line := range lines {
			r, err := Parse(line)
			if err != nil {
				t.Fatalf("Parse(%q): %v", line, err)
			}
			if r.String() != line {
				t.Fatalf("String() = %q, want %q", r.String(), line)
			}
		}
	})

	t.Run("inquiry fields", func(t *testing.T) {
		r, err := Parse("7 8 3 RemainTicket 9 1 2 3")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if r.Left != 9 || r.Route != 1 || r.Departure != 2 || r.Arrival != 3 {
			t.Fatalf("unexpected inquiry %+v", r)
		}
	})

	t.Run("malformed lines", func(t *testing.T) {
		bad := []string{
			"",
			"1 2 3",
			"1 2 3 TicketLost 1",
			"1 2 3 TicketSoldOut 1 2",
			"1 2 3 TicketSoldOut 1 2 3 4",
			"a 2 3 ErrOfRefund",
			"1 2 3 RemainTicket x 1 2 3",
			"9 2 3 ErrOfRefund",
			"1 2 3 ErrorOfRefund",
		}
		for _, line := range bad {
			if _, err := Parse(line); !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("Parse(%q): expected ErrMalformedRecord, got %v", line, err)
			}
		}
	})
}

func TestOverlapAndConflict(t *testing.T) {
	t.Parallel()

	a := Record{Start: 0, End: 10, Op: OpBuy, Route: 1, Departure: 1, Arrival: 3}
	b := Record{Start: 5, End: 20, Op: OpInquiry, Route: 1, Departure: 2, Arrival: 4}
	c := Record{Start: 11, End: 12, Op: OpSoldOut, Route: 1, Departure: 3, Arrival: 4}
	d := Record{Start: 10, End: 12, Op: OpRefundError}

	if !Overlaps(a, b) || !Overlaps(b, a) {
		t.Fatalf("a and b should overlap")
	}
	if Overlaps(a, c) || !Precedes(a, c) || Precedes(c, a) {
		t.Fatalf("a should strictly precede c")
	}
	if !Overlaps(a, d) {
		t.Fatalf("touching intervals should overlap")
	}
	if !Conflicts(a, b) {
		t.Fatalf("<1,3> and <2,4> share segment 2-3")
	}
	if Conflicts(a, c) {
		t.Fatalf("<1,3> and <3,4> are adjacent, not conflicting")
	}
	b.Route = 2
	if Conflicts(a, b) {
		t.Fatalf("different routes never conflict")
	}
	if Conflicts(a, d) || Conflicts(d, d) {
		t.Fatalf("refund errors conflict with nothing")
	}
}

func TestBufferAndFiles(t *testing.T) {
	t.Parallel()

	buf := NewBuffer(0)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				buf.Add(Inquiry(int64(i), int64(i+1), w, 1, 1, 2, i))
			}
		}(w)
	}
	wg.Wait()
	if buf.Len() != 200 {
		t.Fatalf("expected 200 records, got %d", buf.Len())
	}

	path := filepath.Join(t.TempDir(), "dump", "case0repeat0.txt")
	if err := WriteFile(path, buf.Records()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 200 {
		t.Fatalf("expected 200 records read back, got %d", len(got))
	}

	var out bytes.Buffer
	if err := Write(&out, got[:2]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if strings.Count(out.String(), "\n") != 2 {
		t.Fatalf("expected two lines, got %q", out.String())
	}

	_, err = Read(strings.NewReader("1 2 0 ErrOfRefund\n\nnot a record\n"))
	if !errors.Is(err, ErrMalformedRecord) || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected malformed error on line 3, got %v", err)
	}
}
