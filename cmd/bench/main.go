// bench drives the ticketing store with concurrent random workloads and
// optionally checks every recorded history.
//
//	bench [--file test.txt] [--dump] [--timeout 60s]
//
// Each case in the bench file runs repeat times.  With verification on (and
// statistics off) every repetition is checked for history consistency and
// linearizability; with statistics on the wall time of each repetition is
// printed together with their geometric mean.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/route-ticketing/internal/config"
	"github.com/iliyamo/route-ticketing/internal/trace"
	"github.com/iliyamo/route-ticketing/internal/verify"
	"github.com/iliyamo/route-ticketing/internal/workload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	file    string
	dump    bool
	dumpDir string
	timeout time.Duration
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var opts options
	flags := pflag.NewFlagSet("bench", pflag.ContinueOnError)
	flags.StringVarP(&opts.file, "file", "f", "test.txt", "bench file (line format, or YAML when it ends in .yaml/.yml)")
	flags.BoolVar(&opts.dump, "dump", false, "write every recorded history to <dump-dir>/case<c>repeat<r>.txt")
	flags.StringVar(&opts.dumpDir, "dump-dir", "dump", "directory for --dump")
	flags.DurationVar(&opts.timeout, "timeout", 60*time.Second, "linearizability search limit per history")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	b, err := config.LoadBench(opts.file)
	if err != nil {
		return err
	}
	verifying := b.Verify && !b.Statistics
	record := verifying || opts.dump

	failures := 0
	for c, bc := range b.Cases {
		costs := make([]time.Duration, 0, b.Repeat)
		for r := 0; r < b.Repeat; r++ {
			rep, err := workload.RunAll(ctx, bc, record)
			if err != nil {
				return fmt.Errorf("case %d repeat %d: %w", c, r, err)
			}
			costs = append(costs, rep.Duration)

			var history []trace.Record
			if record {
				history = rep.Trace.Records()
			}
			if opts.dump {
				path := filepath.Join(opts.dumpDir, fmt.Sprintf("case%drepeat%d.txt", c, r))
				if err := trace.WriteFile(path, history); err != nil {
					return err
				}
			}
			if verifying {
				ok, err := check(ctx, out, bc, r, history, opts.timeout)
				if err != nil {
					return err
				}
				if !ok {
					failures++
				}
			}
		}
		if b.Statistics {
			printStatistics(out, bc, costs)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d histories failed verification", failures)
	}
	return nil
}

// check prints the two verdicts of one repetition and reports whether both
// passed.
func check(ctx context.Context, out io.Writer, bc workload.Case, r int, history []trace.Record, timeout time.Duration) (bool, error) {
	fmt.Fprintf(out, "Verify correctness of finite history for %s repeat=%d ...\n", bc, r)
	if err := verify.CheckHistory(history); err != nil {
		fmt.Fprintf(out, "Failed: %v\n\n", err)
		return false, nil
	}
	fmt.Fprintln(out, "Passed")

	fmt.Fprintf(out, "Verify linearizability of finite history for %s repeat=%d ...\n", bc, r)
	res, err := verify.Run(ctx, bc.Geometry, history, timeout)
	if err != nil {
		return false, err
	}
	switch res.Outcome {
	case verify.Linearizable:
		fmt.Fprintf(out, "Passed %dms\n\n", res.Elapsed.Milliseconds())
		return true, nil
	case verify.NotLinearizable:
		fmt.Fprintf(out, "Failed %dms\n\n", res.Elapsed.Milliseconds())
		return false, nil
	default:
		fmt.Fprintf(out, "Time Limit Exceed %s\n\n", timeout)
		return false, nil
	}
}

func printStatistics(out io.Writer, bc workload.Case, costs []time.Duration) {
	fmt.Fprintf(out, "statistics for %s repeat=%d\n", bc, len(costs))
	for r, d := range costs {
		fmt.Fprintf(out, "repeat%d: %dms\n", r, d.Milliseconds())
	}
	fmt.Fprintf(out, "average: %dms\n\n", geometricMean(costs).Milliseconds())
}

// geometricMean averages in log space so long runs cannot overflow.
func geometricMean(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var sum float64
	for _, d := range ds {
		sum += math.Log(math.Max(float64(d), 1))
	}
	return time.Duration(math.Exp(sum / float64(len(ds))))
}
