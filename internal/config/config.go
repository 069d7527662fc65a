package config // package config loads service, geometry and benchmark configuration

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"

    "github.com/joho/godotenv"

    "github.com/iliyamo/route-ticketing/internal/geometry"
)

// Config holds the runtime configuration of the ticketing server.  Each field
// corresponds to an environment variable.  The database and broker settings
// are optional: an empty DBHost or RabbitURL turns the matching feature off.
type Config struct {
    Env             string            // application environment (e.g. "dev", "prod")
    Port            string            // HTTP port to listen on
    Geometry        geometry.Geometry // ROUTE_NUM, COACH_NUM, SEAT_NUM, STATION_NUM
    Windows         int               // concurrent sales windows admitted into the store
    RecordHistory   bool              // keep every call in memory for POST /v1/verify
    JWTSecret       string            // secret used to sign JWTs
    AccessTTLMin    int               // access token time-to-live in minutes
    OperatorKeyHash string            // bcrypt hash of the operator key
    VerifyTimeout   time.Duration     // deadline of one verification request
    DBUser          string            // report database username
    DBPass          string            // report database password (optional)
    DBHost          string            // report database host; empty disables reports
    DBPort          string            // report database port number
    DBName          string            // report database name
    RabbitURL       string            // AMQP URL for ticket events; empty disables publishing
}

// ReportsEnabled reports whether a report database is configured.
func (c Config) ReportsEnabled() bool { return c.DBHost != "" }

// Load reads configuration values from the environment, after merging an
// optional .env file from the working directory.  Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
    // A missing .env is normal outside local development.
    _ = godotenv.Load()

    g, err := GeometryFromEnv()
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    return Config{
        Env:             must("APP_ENV"),
        Port:            must("APP_PORT"),
        Geometry:        g,
        Windows:         envInt("WINDOW_NUM", 16),
        RecordHistory:   envBool("RECORD_HISTORY", true),
        JWTSecret:       must("JWT_SECRET"),
        AccessTTLMin:    mustInt("ACCESS_TOKEN_TTL_MIN"),
        OperatorKeyHash: must("OPERATOR_KEY_HASH"),
        VerifyTimeout:   envDur("VERIFY_TIMEOUT", 60*time.Second),
        DBUser:          os.Getenv("DB_USER"),
        DBPass:          os.Getenv("DB_PASS"),
        DBHost:          os.Getenv("DB_HOST"),
        DBPort:          getenv("DB_PORT", "3306"),
        DBName:          getenv("DB_NAME", "ticketing"),
        RabbitURL:       os.Getenv("RABBITMQ_URL"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
