// Package metrics counts mutation outcomes on a private Prometheus registry
// and writes it in the text exposition format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Tiliavir/ttr/internal/coordinator"
)

const namespace = "ttr"

// Recorder implements coordinator.Observer.
type Recorder struct {
	registry *prometheus.Registry

	// mutationsTotal counts confirmed and rolled back mutations.
	// Labels:
	//   - method: PUT, POST, DELETE, UNDO_DELETE
	//   - outcome: ok, rolled_back
	mutationsTotal *prometheus.CounterVec
	rollbacksTotal prometheus.Counter
	undoExpired    prometheus.Counter
	loadsTotal     *prometheus.CounterVec
}

// New returns a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		mutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Record mutations by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		rollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Optimistic updates reverted after a failed request.",
		}),
		undoExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undo_expired_total",
			Help:      "Undo offers discarded after the undo window.",
		}),
		loadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loads_total",
				Help:      "Record list fetches by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe updates the counters for ev.
func (r *Recorder) Observe(ev coordinator.Event) {
	switch ev.Kind {
	case coordinator.EventSucceeded:
		r.mutationsTotal.WithLabelValues(string(ev.Method), "ok").Inc()
	case coordinator.EventRolledBack:
		r.mutationsTotal.WithLabelValues(string(ev.Method), "rolled_back").Inc()
		r.rollbacksTotal.Inc()
	case coordinator.EventUndoExpired:
		r.undoExpired.Inc()
	case coordinator.EventLoaded:
		r.loadsTotal.WithLabelValues("ok").Inc()
	case coordinator.EventLoadFailed:
		r.loadsTotal.WithLabelValues("failed").Inc()
	}
}

// WriteTextfile writes the registry to path for the node exporter textfile
// collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
