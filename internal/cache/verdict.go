// Package cache stores verification verdicts in Redis keyed by a digest of
// the geometry and the history, so an identical submission is answered
// without a second search.
package cache

import (
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "errors"
    "log"
    "sort"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/route-ticketing/internal/config"
    "github.com/iliyamo/route-ticketing/internal/geometry"
    "github.com/iliyamo/route-ticketing/internal/model"
    "github.com/iliyamo/route-ticketing/internal/trace"
)

// Digest returns the hex SHA-1 of the geometry line followed by the records
// in (start, end, thread, text) order.  Histories that differ only in line
// order share a digest.
func Digest(g geometry.Geometry, records []trace.Record) string {
    lines := make([]string, len(records))
    sorted := make([]trace.Record, len(records))
    copy(sorted, records)
    sort.Slice(sorted, func(i, j int) bool {
        a, b := sorted[i], sorted[j]
        if a.Start != b.Start { return a.Start < b.Start }
        if a.End != b.End { return a.End < b.End }
        if a.Thread != b.Thread { return a.Thread < b.Thread }
        return a.String() < b.String()
    })
    for i, r := range sorted {
        lines[i] = r.String()
    }

    h := sha1.New()
    h.Write([]byte(g.String()))
    h.Write([]byte{'\n'})
    for _, l := range lines {
        h.Write([]byte(l))
        h.Write([]byte{'\n'})
    }
    return hex.EncodeToString(h.Sum(nil))
}

// Verdicts is a Redis-backed verdict cache.  A nil *Verdicts, or one built
// without a client, misses on every Get and drops every Put.
type Verdicts struct {
    rdb    *redis.Client
    ttl    time.Duration
    prefix string
}

// NewVerdicts returns nil when the cache is disabled or rdb is nil.
func NewVerdicts(cfg config.VerdictCacheConfig, rdb *redis.Client) *Verdicts {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = time.Hour
    }
    return &Verdicts{rdb: rdb, ttl: ttl, prefix: cfg.Prefix}
}

func (v *Verdicts) key(digest string) string {
    return v.prefix + ":" + digest
}

// Get returns the cached report for digest.
func (v *Verdicts) Get(ctx context.Context, digest string) (*model.VerificationReport, bool) {
    if v == nil {
        return nil, false
    }
    bs, err := v.rdb.Get(ctx, v.key(digest)).Bytes()
    if err != nil {
        if !errors.Is(err, redis.Nil) {
            log.Printf("verdict-cache: get %s: %v", digest, err)
        }
        return nil, false
    }
    var rep model.VerificationReport
    if err := json.Unmarshal(bs, &rep); err != nil {
        log.Printf("verdict-cache: corrupt entry %s: %v", digest, err)
        return nil, false
    }
    return &rep, true
}

// Put stores rep under its TraceDigest.
func (v *Verdicts) Put(ctx context.Context, rep *model.VerificationReport) {
    if v == nil {
        return
    }
    bs, err := json.Marshal(rep)
    if err != nil {
        return
    }
    if err := v.rdb.SetEx(ctx, v.key(rep.TraceDigest), bs, v.ttl).Err(); err != nil {
        log.Printf("verdict-cache: put %s: %v", rep.TraceDigest, err)
    }
}
