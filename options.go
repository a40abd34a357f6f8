package flyweight

import (
	"log/slog"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// DefaultName is the registry name used when none is configured.
const DefaultName = "default"

// Option configures a [Registry].
type Option interface {
	apply(*options)
}

// options holds registry configuration.
type options struct {
	name       string
	logger     *slog.Logger
	registerer prometheus.Registerer
	tracer     trace.Tracer

	// OnAcquired is called after an acquisition resolves its role.
	onAcquired func(t reflect.Type, key any, role Role, waited time.Duration)

	// OnRollback is called after a claim is rolled back.
	onRollback func(t reflect.Type, key any, cause error)
}

// optionFunc adapts a function to Option.
type optionFunc func(*options)

func (f optionFunc) apply(opts *options) {
	f(opts)
}

func newOptions(opts []Option) options {
	o := options{name: DefaultName}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = tracer
	}
	return o
}

// WithName names the registry. The name labels log records and metrics.
func WithName(name string) Option {
	return optionFunc(func(opts *options) {
		if name != "" {
			opts.name = name
		}
	})
}

// WithLogger sets the logger used for debug and warning records.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(opts *options) {
		opts.logger = logger
	})
}

// WithMetrics registers the registry's collectors with reg.
// Registries are not instrumented unless this option is given.
func WithMetrics(reg prometheus.Registerer) Option {
	return optionFunc(func(opts *options) {
		opts.registerer = reg
	})
}

// WithTracer overrides the tracer used for waits and disposal.
func WithTracer(t trace.Tracer) Option {
	return optionFunc(func(opts *options) {
		opts.tracer = t
	})
}

// OnAcquired sets a callback invoked after every acquisition resolves its role.
// The duration is the time spent waiting on concurrent claims.
func OnAcquired(fn func(t reflect.Type, key any, role Role, waited time.Duration)) Option {
	return optionFunc(func(opts *options) {
		opts.onAcquired = fn
	})
}

// OnRollback sets a callback invoked after a claim is rolled back.
// cause is the construction failure, or a ProtocolViolationError.
func OnRollback(fn func(t reflect.Type, key any, cause error)) Option {
	return optionFunc(func(opts *options) {
		opts.onRollback = fn
	})
}
