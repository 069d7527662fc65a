package verify

import (
	"errors"
	"fmt"
	"sort"

	"github.com/iliyamo/route-ticketing/internal/trace"
)

// ErrInconsistentHistory is returned by CheckHistory.
var ErrInconsistentHistory = errors.New("inconsistent history")

// CheckHistory runs the cheap structural checks every recorded history must
// pass before a search is worth starting:
//
//   - records of one thread never overlap in time;
//   - ticket ids of successful buys are unique;
//   - every successful refund names a ticket bought exactly as refunded,
//     by a buy that started before the refund ended.
func CheckHistory(records []trace.Record) error {
	threads := map[int][]trace.Record{}
	for _, r := range records {
		threads[r.Thread] = append(threads[r.Thread], r)
	}
	for id, recs := range threads {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Start < recs[j].Start })
		for i := 1; i < len(recs); i++ {
			if recs[i].Start < recs[i-1].End {
				return fmt.Errorf("%w: thread %d runs %q and %q at once", ErrInconsistentHistory, id, recs[i-1], recs[i])
			}
		}
	}

	bought := map[int64]trace.Record{}
	for _, r := range records {
		if r.Op != trace.OpBuy {
			continue
		}
		if dup, ok := bought[r.TicketID]; ok {
			return fmt.Errorf("%w: ticket %d sold twice (%q, %q)", ErrInconsistentHistory, r.TicketID, dup, r)
		}
		bought[r.TicketID] = r
	}
	for _, r := range records {
		if r.Op != trace.OpRefund {
			continue
		}
		b, ok := bought[r.TicketID]
		if !ok || b.Ticket() != r.Ticket() {
			return fmt.Errorf("%w: refund of unsold ticket %q", ErrInconsistentHistory, r)
		}
		if b.Start > r.End {
			return fmt.Errorf("%w: refund %q ends before its sale starts", ErrInconsistentHistory, r)
		}
	}
	return nil
}
