package config

import (
    "bufio"
    "errors"
    "fmt"
    "io"
    "os"
    "strconv"
    "strings"

    "github.com/iliyamo/route-ticketing/internal/geometry"
)

// ErrMissingField is returned when a geometry source lacks one of the four
// counts.
var ErrMissingField = errors.New("missing geometry field")

// geometryKeys maps the file keys onto Geometry fields.
var geometryKeys = []string{"routenum", "coachnum", "seatnum", "stationnum"}

// LoadGeometry reads a geometry file such as
//
//    routenum=5 coachnum=8 seatnum=100 stationnum=10
//
// Pairs are whitespace separated and may be spread over several lines in any
// order.  Text after '#' is a comment.  Unknown keys are ignored.
func LoadGeometry(path string) (geometry.Geometry, error) {
    f, err := os.Open(path)
    if err != nil {
        return geometry.Geometry{}, fmt.Errorf("open geometry: %w", err)
    }
    defer f.Close()
    g, err := ParseGeometry(f)
    if err != nil {
        return geometry.Geometry{}, fmt.Errorf("%s: %w", path, err)
    }
    return g, nil
}

// ParseGeometry reads the LoadGeometry format from r.
func ParseGeometry(r io.Reader) (geometry.Geometry, error) {
    vals := map[string]int{}
    sc := bufio.NewScanner(r)
    for sc.Scan() {
        line := sc.Text()
        if i := strings.IndexByte(line, '#'); i >= 0 {
            line = line[:i]
        }
        for _, pair := range strings.Fields(line) {
            k, v, ok := strings.Cut(pair, "=")
            if !ok {
                continue
            }
            k = strings.ToLower(k)
            if !isGeometryKey(k) {
                continue
            }
            n, err := strconv.Atoi(v)
            if err != nil {
                return geometry.Geometry{}, fmt.Errorf("%s: %w", k, err)
            }
            vals[k] = n
        }
    }
    if err := sc.Err(); err != nil {
        return geometry.Geometry{}, err
    }
    return fromValues(func(k string) (int, bool, error) {
        n, ok := vals[k]
        return n, ok, nil
    })
}

// GeometryFromEnv reads ROUTE_NUM, COACH_NUM, SEAT_NUM and STATION_NUM.
func GeometryFromEnv() (geometry.Geometry, error) {
    env := map[string]string{
        "routenum":   "ROUTE_NUM",
        "coachnum":   "COACH_NUM",
        "seatnum":    "SEAT_NUM",
        "stationnum": "STATION_NUM",
    }
    return fromValues(func(k string) (int, bool, error) {
        v := os.Getenv(env[k])
        if v == "" {
            return 0, false, nil
        }
        n, err := strconv.Atoi(v)
        if err != nil {
            return 0, true, fmt.Errorf("%s: %w", env[k], err)
        }
        return n, true, nil
    })
}

func isGeometryKey(k string) bool {
    for _, key := range geometryKeys {
        if key == k {
            return true
        }
    }
    return false
}

// fromValues assembles and validates a Geometry from a key lookup.
func fromValues(lookup func(key string) (int, bool, error)) (geometry.Geometry, error) {
    var out [4]int
    for i, k := range geometryKeys {
        n, ok, err := lookup(k)
        if err != nil {
            return geometry.Geometry{}, err
        }
        if !ok {
            return geometry.Geometry{}, fmt.Errorf("%w: %s", ErrMissingField, k)
        }
        out[i] = n
    }
    g := geometry.Geometry{Routes: out[0], Coaches: out[1], Seats: out[2], Stations: out[3]}
    if err := g.Validate(); err != nil {
        return geometry.Geometry{}, err
    }
    return g, nil
}
