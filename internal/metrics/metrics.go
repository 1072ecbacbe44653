// Package metrics exposes Prometheus counters for dispatched requests and
// ingestion drops.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns the counters. A nil *Recorder is valid and records nothing.
type Recorder struct {
	requests *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	blocks   prometheus.Counter
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxii",
			Name:      "requests_total",
			Help:      "Dispatched requests by message kind and status.",
		}, []string{"kind", "status"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxii",
			Name:      "inbox_blocks_dropped_total",
			Help:      "Inbox content blocks dropped during fan-out, by reason.",
		}, []string{"reason"}),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taxii",
			Name:      "inbox_blocks_stored_total",
			Help:      "Inbox content blocks persisted.",
		}),
	}
	for _, c := range []prometheus.Collector{r.requests, r.dropped, r.blocks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Request counts one dispatched request.
func (r *Recorder) Request(kind, status string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(kind, status).Inc()
}

// BlockDropped counts one dropped inbox block.
func (r *Recorder) BlockDropped(reason string) {
	if r == nil {
		return
	}
	r.dropped.WithLabelValues(reason).Inc()
}

// BlockStored counts one persisted inbox block.
func (r *Recorder) BlockStored() {
	if r == nil {
		return
	}
	r.blocks.Inc()
}
