// Package probe runs the startup checks of the station binaries.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout applies to probes without their own timeout.
const DefaultTimeout = 5 * time.Second

// CheckFunc returns nil when the checked dependency is usable.
type CheckFunc func(ctx context.Context) error

// Probe is a single named startup check. A failing Critical probe stops startup.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool
	Timeout  time.Duration
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes all probes concurrently, each under its own timeout, and
// returns the results in probe order.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Go(func() {
			results[i] = runOne(ctx, p)
		})
	}
	wg.Wait()
	return results
}

func runOne(ctx context.Context, p Probe) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(checkCtx)
	return Result{Probe: p, Error: err, Duration: time.Since(start)}
}

// AnalyzeResults logs every result and joins the errors of failed critical probes.
func AnalyzeResults(results []Result) error {
	var critical []error
	failed := 0
	for _, r := range results {
		attrs := []any{"probe", r.Probe.Name, "critical", r.Probe.Critical, "took", r.Duration.Round(time.Millisecond)}
		if r.Error == nil {
			slog.Info("Startup check passed", attrs...)
			continue
		}
		failed++
		slog.Error("Startup check failed", append(attrs, "error", r.Error)...)
		if r.Probe.Critical {
			critical = append(critical, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		}
	}
	slog.Info("Startup checks complete", "total", len(results), "failed", failed)
	return errors.Join(critical...)
}
