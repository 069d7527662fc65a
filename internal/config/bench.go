package config

import (
    "bufio"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strconv"
    "strings"

    "gopkg.in/yaml.v3"

    "github.com/iliyamo/route-ticketing/internal/workload"
)

// Bench describes a benchmark run: every case is repeated Repeat times.
// Verify runs the history checks after each repetition; Statistics prints
// timings only and skips verification.
type Bench struct {
    Repeat     int             `yaml:"repeat"`
    Verify     bool            `yaml:"verify"`
    Statistics bool            `yaml:"statistics"`
    Cases      []workload.Case `yaml:"cases"`
}

// LoadBench reads a bench file.  Files ending in .yaml or .yml are YAML;
// anything else is read in the line format:
//
//    repeat=3
//    testnum=10000 threadnum=4 routenum=5 coachnum=8 seatnum=100 stationnum=10
//    ENABLE_VERIFICATION=true
//    ENABLE_STATISTICS=false
//
// A case line missing any of its six fields is skipped.
func LoadBench(path string) (Bench, error) {
    f, err := os.Open(path)
    if err != nil {
        return Bench{}, fmt.Errorf("open bench: %w", err)
    }
    defer f.Close()

    var b Bench
    switch strings.ToLower(filepath.Ext(path)) {
    case ".yaml", ".yml":
        dec := yaml.NewDecoder(f)
        dec.KnownFields(true)
        if err := dec.Decode(&b); err != nil && err != io.EOF {
            return Bench{}, fmt.Errorf("%s: %w", path, err)
        }
    default:
        b, err = parseBenchLines(f)
        if err != nil {
            return Bench{}, fmt.Errorf("%s: %w", path, err)
        }
    }
    if b.Repeat < 1 {
        b.Repeat = 1
    }
    for i, c := range b.Cases {
        if err := c.Validate(); err != nil {
            return Bench{}, fmt.Errorf("%s: case %d: %w", path, i, err)
        }
    }
    return b, nil
}

func parseBenchLines(r io.Reader) (Bench, error) {
    var b Bench
    sc := bufio.NewScanner(r)
    for sc.Scan() {
        line := strings.TrimSpace(sc.Text())
        switch {
        case strings.HasPrefix(line, "repeat="):
            n, err := strconv.Atoi(strings.TrimPrefix(line, "repeat="))
            if err != nil {
                return Bench{}, fmt.Errorf("repeat: %w", err)
            }
            b.Repeat = n
        case strings.HasPrefix(line, "testnum="):
            c, ok, err := parseCase(line)
            if err != nil {
                return Bench{}, err
            }
            if ok {
                b.Cases = append(b.Cases, c)
            }
        case strings.HasPrefix(line, "ENABLE_VERIFICATION="):
            b.Verify = strings.TrimPrefix(line, "ENABLE_VERIFICATION=") == "true"
        case strings.HasPrefix(line, "ENABLE_STATISTICS="):
            b.Statistics = strings.TrimPrefix(line, "ENABLE_STATISTICS=") == "true"
        }
    }
    return b, sc.Err()
}

// parseCase reads one case line.  ok is false when a field is missing.
func parseCase(line string) (workload.Case, bool, error) {
    vals := map[string]int{}
    for _, pair := range strings.Fields(line) {
        k, v, found := strings.Cut(pair, "=")
        if !found {
            continue
        }
        n, err := strconv.Atoi(v)
        if err != nil {
            return workload.Case{}, false, fmt.Errorf("%s: %w", k, err)
        }
        vals[k] = n
    }
    for _, k := range []string{"testnum", "threadnum", "routenum", "coachnum", "seatnum", "stationnum"} {
        if _, ok := vals[k]; !ok {
            return workload.Case{}, false, nil
        }
    }
    var c workload.Case
    c.Ops = vals["testnum"]
    c.Threads = vals["threadnum"]
    c.Geometry.Routes = vals["routenum"]
    c.Geometry.Coaches = vals["coachnum"]
    c.Geometry.Seats = vals["seatnum"]
    c.Geometry.Stations = vals["stationnum"]
    return c, true, nil
}
