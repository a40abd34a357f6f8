package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/junioryono/flyweight"
	"github.com/junioryono/flyweight/internal/fraction"
)

// ErrNotUnique is returned when two different instances were observed for
// the same value.
var ErrNotUnique = errors.New("bench: more than one instance for a value")

// identity names one flyweight value across the fraction family.
type identity struct {
	kind     string
	num, den int
	name     string
}

// Workload hammers the fraction family from many goroutines.
type Workload struct {
	cfg    Config
	reg    *flyweight.Registry
	logger *slog.Logger

	seen sync.Map // identity -> instance
}

// Report summarizes a run.
type Report struct {
	Calls    int64
	Failures int64
	Distinct int
	Live     int
	Pending  int
	Elapsed  time.Duration
}

// NewWorkload creates a workload over reg.
func NewWorkload(cfg Config, reg *flyweight.Registry, logger *slog.Logger) *Workload {
	return &Workload{cfg: cfg, reg: reg, logger: logger}
}

// Run starts the workers and waits for them. Injected failures are counted,
// any other error stops the run.
func (w *Workload) Run(ctx context.Context) (Report, error) {
	var calls, failures atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for worker := 0; worker < w.cfg.Workers; worker++ {
		rng := rand.New(rand.NewPCG(w.cfg.Seed, uint64(worker)))
		g.Go(func() error {
			for i := 0; i < w.cfg.Iterations; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				calls.Add(1)
				err := w.step(ctx, rng)
				switch {
				case err == nil:
				case errors.Is(err, fraction.ErrZeroDenominator), errors.Is(err, fraction.ErrNegativeMixed):
					failures.Add(1)
				default:
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	distinct := 0
	w.seen.Range(func(any, any) bool {
		distinct++
		return true
	})

	report := Report{
		Calls:    calls.Load(),
		Failures: failures.Load(),
		Distinct: distinct,
		Live:     w.reg.Len(),
		Pending:  w.reg.Pending(),
		Elapsed:  time.Since(start),
	}
	w.logger.InfoContext(ctx, "workload finished",
		"calls", report.Calls, "failures", report.Failures, "distinct", report.Distinct,
		"elapsed", report.Elapsed)
	return report, nil
}

// step performs one random acquisition and records its result.
func (w *Workload) step(ctx context.Context, rng *rand.Rand) error {
	num := rng.IntN(w.cfg.Keys) + 1
	den := rng.IntN(4) + 1
	fail := rng.Float64() < w.cfg.FailRate

	switch rng.IntN(3) {
	case 0:
		if fail {
			den = 0
		}
		f, err := fraction.New(ctx, w.reg, num, den)
		if err != nil {
			return err
		}
		return w.record(identity{kind: "fraction", num: f.Num(), den: f.Den()}, f)

	case 1:
		if fail {
			// Fails after the base step committed.
			num = -num
		}
		m, err := fraction.NewMixed(ctx, w.reg, num, den)
		if err != nil {
			return err
		}
		return w.record(identity{kind: "mixed", num: m.Num(), den: m.Den()}, m)

	default:
		if fail {
			den = 0
		}
		name := fmt.Sprintf("n%d", rng.IntN(4))
		n, err := fraction.NewNamed(ctx, w.reg, num, den, name)
		if err != nil {
			return err
		}
		if err := w.record(identity{kind: "fraction", num: n.Num(), den: n.Den()}, n.Fraction); err != nil {
			return err
		}
		return w.record(identity{kind: "named", num: n.Num(), den: n.Den(), name: n.Name()}, n)
	}
}

func (w *Workload) record(id identity, instance any) error {
	prev, loaded := w.seen.LoadOrStore(id, instance)
	if loaded && prev != instance {
		return fmt.Errorf("%w: %s %d/%d %q", ErrNotUnique, id.kind, id.num, id.den, id.name)
	}
	return nil
}

// Write prints the report as an aligned table.
func (r Report) Write(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "calls\t%d\n", r.Calls)
	fmt.Fprintf(tw, "injected failures\t%d\n", r.Failures)
	fmt.Fprintf(tw, "distinct values\t%d\n", r.Distinct)
	fmt.Fprintf(tw, "live instances\t%d\n", r.Live)
	fmt.Fprintf(tw, "claims in progress\t%d\n", r.Pending)
	fmt.Fprintf(tw, "elapsed\t%s\n", r.Elapsed.Round(time.Microsecond))
	return tw.Flush()
}
