// Package metrics exports what the benchmark driver observes as prometheus
// collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhuanxuhit/singleton-notes/singleton"
)

const namespace = "singleton"

// Collector groups the driver's metrics. It owns its own prometheus registry
// so several collectors can coexist in one process (and in tests).
type Collector struct {
	registry *prometheus.Registry

	creations  *prometheus.CounterVec
	accesses   *prometheus.CounterVec
	elapsed    *prometheus.GaugeVec
	uniqueRefs *prometheus.GaugeVec
	violations *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		creations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_created_total",
			Help:      "Instances built by the registry, by strategy.",
		}, []string{"strategy"}),
		accesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accesses_total",
			Help:      "Access calls issued by benchmark runs, by strategy.",
		}, []string{"strategy"}),
		elapsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_elapsed_seconds",
			Help:      "Wall time of the last benchmark run, by strategy.",
		}, []string{"strategy"}),
		uniqueRefs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unique_references",
			Help:      "Unique reference count after the last benchmark run, by strategy.",
		}, []string{"strategy"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uniqueness_violations_total",
			Help:      "Runs that observed more than one instance, by strategy.",
		}, []string{"strategy"}),
	}
	c.registry.MustRegister(c.creations, c.accesses, c.elapsed, c.uniqueRefs, c.violations)
	return c
}

// Registry returns the prometheus registry holding c's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CreateHook returns a hook for singleton.WithCreateHook that counts
// creations.
func (c *Collector) CreateHook() func(singleton.Strategy, *singleton.Instance) {
	return func(s singleton.Strategy, _ *singleton.Instance) {
		c.creations.WithLabelValues(s.String()).Inc()
	}
}

// ObserveRun records the outcome of one benchmark run.
func (c *Collector) ObserveRun(s singleton.Strategy, calls int, elapsed time.Duration, uniqueRefs int) {
	label := s.String()
	c.accesses.WithLabelValues(label).Add(float64(calls))
	c.elapsed.WithLabelValues(label).Set(elapsed.Seconds())
	c.uniqueRefs.WithLabelValues(label).Set(float64(uniqueRefs))
	if uniqueRefs != 1 {
		c.violations.WithLabelValues(label).Inc()
	}
}

// WriteTextfile writes the current metric values to path in the text
// exposition format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
