// Package metrics exports relation mutation outcomes as Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/relsync/internal/relation"
)

// Recorder counts terminal mutations by op, phase and error code.
// Mutations without an error code are labelled code="none".
// It implements relation.Recorder and is safe for concurrent use.
type Recorder struct {
	mutations *prometheus.CounterVec
	detached  prometheus.Counter
}

// NewRecorder creates a Recorder and registers its collectors with reg.
// A nil reg skips registration, which tests use to inspect counters
// directly.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relsync",
			Name:      "mutations_total",
			Help:      "Terminal relation mutations by op, phase and error code.",
		}, []string{"op", "phase", "code"}),
		detached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relsync",
			Name:      "moves_detached_total",
			Help:      "Moves that left the item without a container.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{r.mutations, r.detached} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Record implements relation.Recorder.
func (r *Recorder) Record(m relation.Mutation) {
	code := string(m.Code)
	if code == "" {
		code = "none"
	}
	r.mutations.WithLabelValues(string(m.Op), string(m.Phase), code).Inc()
	if m.Op == relation.OpMove && m.Detail == relation.MoveDetached.String() {
		r.detached.Inc()
	}
}

// Mutations returns the underlying counter vector.
func (r *Recorder) Mutations() *prometheus.CounterVec {
	return r.mutations
}

// Detached returns the detached-move counter.
func (r *Recorder) Detached() prometheus.Counter {
	return r.detached
}
