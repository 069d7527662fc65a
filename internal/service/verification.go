package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/route-ticketing/internal/cache"
    "github.com/iliyamo/route-ticketing/internal/geometry"
    "github.com/iliyamo/route-ticketing/internal/model"
    q "github.com/iliyamo/route-ticketing/internal/queue"
    "github.com/iliyamo/route-ticketing/internal/repository"
    "github.com/iliyamo/route-ticketing/internal/trace"
    "github.com/iliyamo/route-ticketing/internal/verify"
)

// ReportStore persists verification reports.
type ReportStore interface {
    Create(ctx context.Context, rep *model.VerificationReport) error
    GetByID(ctx context.Context, id string) (*model.VerificationReport, error)
    ListRecent(ctx context.Context, limit int) ([]model.VerificationReport, error)
}

// VerdictCache looks verdicts up by trace digest.
type VerdictCache interface {
    Get(ctx context.Context, digest string) (*model.VerificationReport, bool)
    Put(ctx context.Context, rep *model.VerificationReport)
}

// Verdict is the answer to one verification request.
type Verdict struct {
    Report        model.VerificationReport
    Cached        bool
    Stored        bool
    Linearization []trace.Record
}

// VerificationService checks histories.  Every dependency is optional:
// without Cache every request searches, without Reports nothing is stored,
// without Events no verdict is announced.
type VerificationService struct {
    Timeout    time.Duration
    MaxCached  int // histories longer than this skip the cache; 0 means no bound
    Cache      VerdictCache
    Reports    ReportStore
    Events     EventSink
}

// Verify checks records against g.  Malformed or inconsistent histories are
// rejected with an error wrapping ErrInvalidTrace; every searched history
// yields a Verdict, including TIMED_OUT.
func (s *VerificationService) Verify(ctx context.Context, g geometry.Geometry, records []trace.Record) (Verdict, error) {
    if err := g.Validate(); err != nil {
        return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidTrace, err)
    }
    digest := cache.Digest(g, records)
    cacheable := s.Cache != nil && (s.MaxCached <= 0 || len(records) <= s.MaxCached)
    if cacheable {
        if rep, ok := s.Cache.Get(ctx, digest); ok {
            return Verdict{Report: *rep, Cached: true}, nil
        }
    }

    if err := verify.CheckHistory(records); err != nil {
        return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidTrace, err)
    }
    res, err := verify.Run(ctx, g, records, s.Timeout)
    if err != nil {
        return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidTrace, err)
    }

    v := Verdict{
        Report: model.VerificationReport{
            ID:          uuid.NewString(),
            TraceDigest: digest,
            Outcome:     res.Outcome.String(),
            Records:     len(records),
            Steps:       res.Steps,
            ElapsedMS:   res.Elapsed.Milliseconds(),
            Geometry:    g.String(),
            CreatedAt:   time.Now().UTC(),
        },
        Linearization: res.Linearization,
    }
    log.Printf("verify: %s %s records=%d steps=%d elapsed=%s",
        v.Report.ID, v.Report.Outcome, v.Report.Records, v.Report.Steps, res.Elapsed)

    // The request may already be cancelled; storing must still go through.
    bg := context.WithoutCancel(ctx)
    if s.Reports != nil {
        if err := s.Reports.Create(bg, &v.Report); err != nil {
            log.Printf("verify: store report %s: %v", v.Report.ID, err)
        } else {
            v.Stored = true
        }
    }
    if cacheable && res.Outcome != verify.TimedOut {
        s.Cache.Put(bg, &v.Report)
    }
    if s.Events != nil {
        s.Events.Emit(q.Event{Kind: q.KindVerdict, ReportID: v.Report.ID, Outcome: v.Report.Outcome, Records: v.Report.Records})
    }
    return v, nil
}

// Report fetches a stored report.
func (s *VerificationService) Report(ctx context.Context, id string) (*model.VerificationReport, error) {
    if s.Reports == nil {
        return nil, ErrReportsDisabled
    }
    if _, err := uuid.Parse(id); err != nil {
        return nil, repository.ErrReportNotFound
    }
    rep, err := s.Reports.GetByID(ctx, id)
    if err != nil && !errors.Is(err, repository.ErrReportNotFound) {
        log.Printf("verify: load report %s: %v", id, err)
    }
    return rep, err
}

// Recent lists the newest stored reports.
func (s *VerificationService) Recent(ctx context.Context, limit int) ([]model.VerificationReport, error) {
    if s.Reports == nil {
        return nil, ErrReportsDisabled
    }
    return s.Reports.ListRecent(ctx, limit)
}
