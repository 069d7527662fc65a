package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGeometricMean(t *testing.T) {
	got := geometricMean([]time.Duration{2 * time.Millisecond, 8 * time.Millisecond})
	if d := got - 4*time.Millisecond; d < -time.Microsecond || d > time.Microsecond {
		t.Fatalf("geometric mean of 2ms and 8ms = %v", got)
	}
	if geometricMean(nil) != 0 {
		t.Fatalf("empty mean should be 0")
	}
}

func TestRun_VerifiesAndDumps(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bench.txt")
	body := strings.Join([]string{
		"repeat=2",
		"testnum=200 threadnum=3 routenum=1 coachnum=1 seatnum=3 stationnum=2",
		"ENABLE_VERIFICATION=true",
		"ENABLE_STATISTICS=false",
	}, "\n")
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatalf("write bench: %v", err)
	}

	var out bytes.Buffer
	dump := filepath.Join(dir, "dump")
	if err := run(context.Background(), []string{"--file", file, "--dump", "--dump-dir", dump}, &out); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	if n := strings.Count(out.String(), "Passed"); n != 4 {
		t.Fatalf("expected 4 passed checks, got %d:\n%s", n, out.String())
	}
	for _, name := range []string{"case0repeat0.txt", "case0repeat1.txt"} {
		if _, err := os.Stat(filepath.Join(dump, name)); err != nil {
			t.Fatalf("missing dump %s: %v", name, err)
		}
	}
}

func TestRun_Statistics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	body := "repeat: 3\nstatistics: true\ncases:\n  - {testnum: 50, threadnum: 2, routenum: 2, coachnum: 2, seatnum: 2, stationnum: 4}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write bench: %v", err)
	}
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-f", path}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "repeat2: ") || !strings.Contains(s, "average: ") || strings.Contains(s, "Verify") {
		t.Fatalf("unexpected statistics output:\n%s", s)
	}
}
