package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/route-ticketing/internal/config"
)

// gcra keeps one theoretical arrival time per client key (generic cell rate
// algorithm).  ARGV: now, emission interval, burst allowance and key TTL, all
// in milliseconds.  It returns {allowed, requests left in the burst, ms to
// wait when refused}.
var gcra = redis.NewScript(`
local now = tonumber(ARGV[1])
local emission = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local tat = tonumber(redis.call('GET', KEYS[1]))
if tat == nil or tat < now then
    tat = now
end
local ahead = tat + emission - now
if ahead > burst then
    return {0, 0, math.ceil(ahead - burst)}
end
redis.call('SET', KEYS[1], tostring(tat + emission), 'PX', ARGV[4])
return {1, math.floor((burst - ahead) / emission), 0}
`)

// limits converts the configuration into script arguments: one request is
// earned every RefillInterval/RefillTokens and up to Capacity may be spent
// at once.
func limits(cfg config.RateLimitConfig) (emissionMs, burstMs float64, ttlMs int64) {
    emissionMs = float64(cfg.RefillInterval.Milliseconds()) / float64(max(cfg.RefillTokens, 1))
    if emissionMs <= 0 {
        emissionMs = 1
    }
    burstMs = emissionMs * float64(max(cfg.Capacity, 1))
    ttlMs = max(cfg.TTL.Milliseconds(), int64(math.Ceil(burstMs)))
    return emissionMs, burstMs, ttlMs
}

// NewSalesLimiter throttles each client key with the gcra script.  With the
// limiter disabled or no Redis client it passes every request through; a
// Redis failure during a request also lets it through, since refusing sales
// because the limiter is down would be worse than not limiting.
func NewSalesLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    emission, burst, ttl := limits(cfg)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            now := time.Now().UnixMilli()
            res, err := gcra.Run(c.Request().Context(), rdb, []string{key}, now, emission, burst, ttl).Int64Slice()
            if err != nil || len(res) != 3 {
                c.Logger().Warnf("ratelimit: key=%s: %v %v", key, res, err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
            if res[0] != 1 {
                secs := (res[2] + 999) / 1000
                h.Set("Retry-After", strconv.FormatInt(secs, 10))
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

// rateKey joins the configured parts: client ip, the JWT subject ("anon"
// when unauthenticated) and the route pattern.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    sub := Subject(c)
    if sub == "" {
        sub = "anon"
    }

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", sub)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", sub)
    default:
        parts = append(parts, "ip", ip, "user", sub, "route", c.Request().Method+" "+c.Path())
    }
    return strings.Join(parts, ":")
}
