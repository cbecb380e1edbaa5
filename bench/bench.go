// Package bench drives a singleton.Registry the way the strategies are meant
// to be compared: reset, release a burst of concurrent workers, then check
// how many instances were created and how long it took.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zhuanxuhit/singleton-notes/metrics"
	"github.com/zhuanxuhit/singleton-notes/singleton"
)

// ErrInvalidOptions is returned by Run for a non-positive worker or
// iteration count.
var ErrInvalidOptions = errors.New("bench: invalid options")

// cancelCheckInterval is how many calls a worker makes between context
// checks.
const cancelCheckInterval = 1024

// Options controls one run.
type Options struct {
	Workers    int
	Iterations int

	// Metrics, if set, observes every run.
	Metrics *metrics.Collector
	// Logger, if set, reports every run at Info.
	Logger *slog.Logger
}

func (o Options) validate() error {
	if o.Workers < 1 || o.Iterations < 1 {
		return fmt.Errorf("%w: workers=%d iterations=%d", ErrInvalidOptions, o.Workers, o.Iterations)
	}
	return nil
}

// Result is the outcome of one run of one strategy.
type Result struct {
	Strategy   singleton.Strategy
	Workers    int
	Iterations int
	// Calls is the number of access calls that returned a handle.
	Calls   int
	Elapsed time.Duration
	// UniqueReferences is the registry's tracking set size after the run.
	UniqueReferences int
	// HandleIdentities is the number of distinct identities among all the
	// handles the workers got back.
	HandleIdentities int
}

// OK reports whether the run saw exactly one instance.
func (r Result) OK() bool {
	return r.UniqueReferences == 1 && r.HandleIdentities == 1
}

// CallsPerSecond is the run's throughput.
func (r Result) CallsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Calls) / r.Elapsed.Seconds()
}

type observation struct {
	calls int
	ids   map[string]struct{}
}

// Run resets reg and has opts.Workers goroutines call strategy s
// opts.Iterations times each. The first worker error, or ctx being done,
// aborts the run.
func Run(ctx context.Context, reg *singleton.Registry, s singleton.Strategy, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	if s.Mode() != reg.Mode() {
		return Result{}, fmt.Errorf("bench: %w: %s on %s registry", singleton.ErrModeMismatch, s, reg.Mode())
	}

	reg.Reset()

	g, gctx := errgroup.WithContext(ctx)
	observations := make([]<-chan observation, opts.Workers)

	begin := time.Now()
	for w := 0; w < opts.Workers; w++ {
		ch := make(chan observation, 1)
		observations[w] = ch
		g.Go(func() error {
			defer close(ch)
			obs, err := work(gctx, reg, s, opts.Iterations)
			if err != nil {
				return err
			}
			ch <- obs
			return nil
		})
	}
	err := g.Wait()
	elapsed := time.Since(begin)
	if err != nil {
		return Result{}, fmt.Errorf("bench: %s: %w", s, err)
	}

	res := Result{
		Strategy:         s,
		Workers:          opts.Workers,
		Iterations:       opts.Iterations,
		Elapsed:          elapsed,
		UniqueReferences: reg.UniqueReferenceCount(),
	}
	ids := make(map[string]struct{})
	for obs := range Merge(observations...) {
		res.Calls += obs.calls
		for id := range obs.ids {
			ids[id] = struct{}{}
		}
	}
	res.HandleIdentities = len(ids)

	if opts.Metrics != nil {
		opts.Metrics.ObserveRun(s, res.Calls, res.Elapsed, res.UniqueReferences)
	}
	if opts.Logger != nil {
		opts.Logger.Info("run finished",
			slog.String("strategy", s.String()),
			slog.Int("calls", res.Calls),
			slog.Duration("elapsed", res.Elapsed),
			slog.Int("unique_references", res.UniqueReferences),
			slog.Bool("ok", res.OK()))
	}
	return res, nil
}

// work is one worker's loop. It only looks at identities when the handle
// pointer changes, so the hot path stays a pointer compare.
func work(ctx context.Context, reg *singleton.Registry, s singleton.Strategy, iterations int) (observation, error) {
	obs := observation{ids: make(map[string]struct{}, 1)}
	var last *singleton.Instance
	for i := 0; i < iterations; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return obs, err
			}
		}
		inst, err := reg.Access(s)
		if err != nil {
			return obs, err
		}
		if inst != last {
			obs.ids[inst.Key()] = struct{}{}
			last = inst
		}
		obs.calls++
	}
	return obs, nil
}

// Suite runs each strategy in order against reg and collects the results.
func Suite(ctx context.Context, reg *singleton.Registry, strategies []singleton.Strategy, opts Options) (*Report, error) {
	report := NewReport()
	for _, s := range strategies {
		res, err := Run(ctx, reg, s, opts)
		if err != nil {
			return report, err
		}
		report.Add(res)
	}
	return report, nil
}
