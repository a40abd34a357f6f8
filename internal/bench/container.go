package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/dig"

	"github.com/junioryono/flyweight"
)

// Output is where a run writes its report and diagnostics.
type Output struct {
	Out io.Writer
	Err io.Writer
}

// Tracing is the tracer provider for a run and its shutdown hook.
type Tracing struct {
	Provider trace.TracerProvider
	Shutdown func(context.Context) error
}

// NewContainer wires the components of a run.
func NewContainer(cfg Config, out Output) (*dig.Container, error) {
	c := dig.New()

	providers := []any{
		func() Config { return cfg },
		func() Output { return out },
		NewLogger,
		NewMetricsRegistry,
		NewTracing,
		NewRegistry,
		NewWorkload,
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, fmt.Errorf("providing %T: %w", p, err)
		}
	}
	return c, nil
}

// NewLogger builds the run's structured logger.
func NewLogger(cfg Config, out Output) *slog.Logger {
	return slog.New(slog.NewTextHandler(out.Err, &slog.HandlerOptions{Level: cfg.level()}))
}

// NewMetricsRegistry returns a fresh prometheus registry, so repeated runs in
// one process do not collide.
func NewMetricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// NewTracing exports spans to the diagnostic writer when tracing is enabled.
func NewTracing(cfg Config, out Output) (*Tracing, error) {
	if !cfg.Trace {
		return &Tracing{
			Provider: noop.NewTracerProvider(),
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(out.Err))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return &Tracing{Provider: tp, Shutdown: tp.Shutdown}, nil
}

// NewRegistry builds the flyweight registry under test.
func NewRegistry(cfg Config, logger *slog.Logger, reg *prometheus.Registry, tr *Tracing) (*flyweight.Registry, error) {
	opts := []flyweight.Option{
		flyweight.WithName("bench"),
		flyweight.WithLogger(logger),
		flyweight.WithTracer(tr.Provider.Tracer("github.com/junioryono/flyweight/internal/bench")),
	}
	if cfg.Metrics {
		opts = append(opts, flyweight.WithMetrics(reg))
	}
	return flyweight.New(opts...)
}

// Run executes one benchmark run and writes its report to out.Out.
func Run(ctx context.Context, cfg Config, out Output) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c, err := NewContainer(cfg, out)
	if err != nil {
		return err
	}

	return c.Invoke(func(w *Workload, fw *flyweight.Registry, reg *prometheus.Registry, tr *Tracing, logger *slog.Logger) (err error) {
		defer func() {
			if cerr := fw.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if serr := tr.Shutdown(context.Background()); serr != nil {
				logger.Warn("trace shutdown failed", "reason", serr)
			}
		}()

		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}

		report, err := w.Run(ctx)
		if err != nil {
			return err
		}
		if err := report.Write(out.Out); err != nil {
			return err
		}

		if !cfg.Metrics {
			return nil
		}
		return writeMetrics(out.Out, reg)
	})
}

func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
