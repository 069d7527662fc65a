package config

import (
    "os"
    "time"
)

// VerdictCacheConfig controls the Redis cache of verification results.  A
// verdict is keyed by the digest of the geometry plus the submitted trace, so
// resubmitting an identical history returns the stored result.  Timed-out
// verdicts are never cached.
type VerdictCacheConfig struct {
    Enabled    bool
    TTL        time.Duration
    Prefix     string
    MaxRecords int // histories longer than this are verified but not cached
}

// LoadVerdictCacheConfig reads VERDICT_CACHE_* variables.
func LoadVerdictCacheConfig() VerdictCacheConfig {
    return VerdictCacheConfig{
        Enabled:    envBool("VERDICT_CACHE_ENABLED", true),
        TTL:        envDur("VERDICT_CACHE_TTL", 24*time.Hour),
        Prefix:     envStr("VERDICT_CACHE_PREFIX", "verdict"),
        MaxRecords: envInt("VERDICT_CACHE_MAX_RECORDS", 200000),
    }
}

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}
