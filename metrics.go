package flyweight

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const pkgname = `github.com/junioryono/flyweight`

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer(pkgname)
}

// metrics holds the per-registry collectors. A nil *metrics records nothing.
type metrics struct {
	acquisitions *prometheus.CounterVec
	waits        prometheus.Counter
	rollbacks    *prometheus.CounterVec
	entries      prometheus.Gauge
	inProgress   prometheus.Gauge
}

func newMetrics(name string, reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"registry": name}
	m := &metrics{
		acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "flyweight",
				Subsystem:   "registry",
				Name:        "acquisitions_total",
				Help:        "Total number of acquisitions, by resolved role.",
				ConstLabels: labels,
			},
			[]string{"role"},
		),
		waits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "flyweight",
				Subsystem:   "registry",
				Name:        "waits_total",
				Help:        "Total number of times a caller blocked on a concurrent claim.",
				ConstLabels: labels,
			},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "flyweight",
				Subsystem:   "registry",
				Name:        "rollbacks_total",
				Help:        "Total number of rolled back claims, by kind.",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   "flyweight",
				Subsystem:   "registry",
				Name:        "entries",
				Help:        "Number of live instances held by the registry.",
				ConstLabels: labels,
			},
		),
		inProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   "flyweight",
				Subsystem:   "registry",
				Name:        "claims_in_progress",
				Help:        "Number of claims currently under construction.",
				ConstLabels: labels,
			},
		),
	}

	for _, c := range []prometheus.Collector{m.acquisitions, m.waits, m.rollbacks, m.entries, m.inProgress} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) acquired(role Role) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(role.String()).Inc()
}

func (m *metrics) waited() {
	if m == nil {
		return
	}
	m.waits.Inc()
}

func (m *metrics) rolledBack(kind string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(kind).Inc()
}

func (m *metrics) sizes(entries, inProgress int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(entries))
	m.inProgress.Set(float64(inProgress))
}
