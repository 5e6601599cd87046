// Package metrics records harvest counters in Prometheus form. Batch runs
// export them with WriteToTextfile for the node exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithRegistry sets the Prometheus registry metrics are registered on and gathered from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// WithConstLabels adds labels attached to every metric, e.g. the city.
func WithConstLabels(labels map[string]string) Option {
	return func(r *Recorder) {
		if labels != nil {
			r.constLabels = labels
		}
	}
}
