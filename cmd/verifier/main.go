// verifier checks one recorded trace for linearizability against the
// ticketing inventory.
//
//	verifier [--config config.txt] [--timeout 60s] [--out file] [--quiet] TRACE
//
// The geometry comes from --config, or from ROUTE_NUM, COACH_NUM, SEAT_NUM
// and STATION_NUM (a .env file is honoured).  Exit status is 0 when the
// trace is linearizable, 1 when it is not, 2 when the search ran out of
// time and 3 for unusable input.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/route-ticketing/internal/config"
	"github.com/iliyamo/route-ticketing/internal/geometry"
	"github.com/iliyamo/route-ticketing/internal/trace"
	"github.com/iliyamo/route-ticketing/internal/verify"
)

const (
	exitPassed  = 0
	exitFailed  = 1
	exitTimeout = 2
	exitInput   = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		configPath string
		outPath    string
		timeout    time.Duration
		quiet      bool
	)
	flags := pflag.NewFlagSet("verifier", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&configPath, "config", "", "geometry file (routenum=.. coachnum=.. seatnum=.. stationnum=..)")
	flags.DurationVar(&timeout, "timeout", 60*time.Second, "give up after this long; 0 disables the limit")
	flags.StringVar(&outPath, "out", "", "write the linearized trace to this file instead of stdout")
	flags.BoolVarP(&quiet, "quiet", "q", false, "print the verdict line only")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitPassed
		}
		return exitInput
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: verifier [flags] TRACE")
		flags.PrintDefaults()
		return exitInput
	}

	g, err := loadGeometry(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInput
	}
	records, err := trace.ReadFile(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInput
	}
	if err := verify.CheckHistory(records); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInput
	}

	res, err := verify.Run(context.Background(), g, records, timeout)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInput
	}

	switch res.Outcome {
	case verify.Linearizable:
		fmt.Fprintf(stdout, "Verification Passed %dms\n", res.Elapsed.Milliseconds())
		if quiet {
			return exitPassed
		}
		if outPath != "" {
			if err := trace.WriteFile(outPath, res.Linearization); err != nil {
				fmt.Fprintf(stderr, "error: %v\n", err)
				return exitInput
			}
			return exitPassed
		}
		fmt.Fprintln(stdout, "Linearized Trace as below")
		if err := trace.Write(stdout, res.Linearization); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return exitPassed
	case verify.NotLinearizable:
		fmt.Fprintf(stdout, "Verification Failed %dms\n", res.Elapsed.Milliseconds())
		return exitFailed
	default:
		fmt.Fprintf(stdout, "Verification Time Limit Exceed %s\n", timeout)
		return exitTimeout
	}
}

func loadGeometry(path string) (geometry.Geometry, error) {
	if path != "" {
		return config.LoadGeometry(path)
	}
	// A missing .env is normal; the variables may come from the shell.
	_ = godotenv.Load()
	return config.GeometryFromEnv()
}
