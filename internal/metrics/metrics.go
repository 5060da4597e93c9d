// Package metrics exposes arena and job statistics of the pstree command
// in the Prometheus text format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pstree"

// Arena is the part of a pst.Arena the collector reads.
type Arena interface {
	Len() int
	Cap() int
}

// Metrics holds the registry of one pstree run. Each call to New creates an
// independent registry, so runs never conflict.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	versions   prometheus.Gauge
}

// New returns an empty set of metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Tree operations performed, by kind.",
		}, []string{"op"}),
		versions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "versions",
			Help:      "Versions recorded in version tables.",
		}),
	}
	m.registry.MustRegister(m.operations, m.versions)
	return m
}

// WatchArena reports the node count and capacity of arena, labeled by name.
func (m *Metrics) WatchArena(name string, arena Arena) error {
	labels := prometheus.Labels{"arena": name}
	nodes := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "arena_nodes",
		Help:        "Nodes allocated in the arena.",
		ConstLabels: labels,
	}, func() float64 { return float64(arena.Len()) })
	capacity := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "arena_capacity_nodes",
		Help:        "Node capacity of the arena, 0 if unbounded.",
		ConstLabels: labels,
	}, func() float64 { return float64(arena.Cap()) })
	for _, c := range []prometheus.Collector{nodes, capacity} {
		if err := m.registry.Register(c); err != nil {
			return fmt.Errorf("watch arena %s: %w", name, err)
		}
	}
	return nil
}

// Observe counts one operation of the given kind.
func (m *Metrics) Observe(op string) {
	m.operations.WithLabelValues(op).Inc()
}

// SetVersions records how many versions are held.
func (m *Metrics) SetVersions(n int) {
	m.versions.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path for the node exporter's
// textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
