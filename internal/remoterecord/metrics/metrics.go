// Package metrics counts remote calls and reconciliation outcomes with
// Prometheus.
//
// The counters make the batch property observable: a collection that hydrates
// N records through a bulk call shows one bulk call and zero retrieves, while
// the per-record fallback shows N retrieves.
//
//	collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
//	typ, err := reference.Declare(reg, "TodoReference", reference.WithMetrics(collector))
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "remoterecord"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Reconciliation result labels
const (
	ResultMatched        = "matched"
	ResultCreated        = "created"
	ResultUnmatchedLocal = "unmatched_local"
	ResultSkipped        = "skipped"
)

// Collector holds the counters for one registry
type Collector struct {
	retrieves     *prometheus.CounterVec
	bulkCalls     *prometheus.CounterVec
	assigns       *prometheus.CounterVec
	reconciled    *prometheus.CounterVec
	fallbackFetch *prometheus.CounterVec
}

// NewCollector creates the counters and registers them with reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		retrieves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieve_total",
				Help:      "Single-record retrieve calls by handler type and outcome",
			},
			[]string{"handler", "outcome"},
		),
		bulkCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bulk_calls_total",
				Help:      "Bulk list/find calls by handler type, operation and outcome",
			},
			[]string{"handler", "operation", "outcome"},
		),
		assigns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assigned_payloads_total",
				Help:      "Payloads assigned to handlers without a retrieve call",
			},
			[]string{"handler"},
		),
		reconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciled_records_total",
				Help:      "Records seen by reconciliation, by result",
			},
			[]string{"handler", "result"},
		),
		fallbackFetch: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_fetch_total",
				Help:      "Per-record fetches made because the handler type has no bulk retrieval",
			},
			[]string{"handler"},
		),
	}

	for _, col := range []prometheus.Collector{c.retrieves, c.bulkCalls, c.assigns, c.reconciled, c.fallbackFetch} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Retrieve counts one retrieve call
func (c *Collector) Retrieve(handler string, err error) {
	if c == nil {
		return
	}
	c.retrieves.WithLabelValues(handler, outcome(err)).Inc()
}

// BulkCall counts one list or find call
func (c *Collector) BulkCall(handler, operation string, err error) {
	if c == nil {
		return
	}
	c.bulkCalls.WithLabelValues(handler, operation, outcome(err)).Inc()
}

// Assign counts a payload assigned without retrieval
func (c *Collector) Assign(handler string) {
	if c == nil {
		return
	}
	c.assigns.WithLabelValues(handler).Inc()
}

// Reconciled adds n records under a reconciliation result label
func (c *Collector) Reconciled(handler, result string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.reconciled.WithLabelValues(handler, result).Add(float64(n))
}

// FallbackFetch counts one per-record fetch made by the fallback path
func (c *Collector) FallbackFetch(handler string) {
	if c == nil {
		return
	}
	c.fallbackFetch.WithLabelValues(handler).Inc()
}

// RetrieveCounter exposes the retrieve counter for assertions
func (c *Collector) RetrieveCounter(handler, outcome string) prometheus.Counter {
	return c.retrieves.WithLabelValues(handler, outcome)
}

// BulkCounter exposes the bulk call counter for assertions
func (c *Collector) BulkCounter(handler, operation, outcome string) prometheus.Counter {
	return c.bulkCalls.WithLabelValues(handler, operation, outcome)
}

// ReconciledCounter exposes the reconciliation counter for assertions
func (c *Collector) ReconciledCounter(handler, result string) prometheus.Counter {
	return c.reconciled.WithLabelValues(handler, result)
}

// FallbackCounter exposes the fallback fetch counter for assertions
func (c *Collector) FallbackCounter(handler string) prometheus.Counter {
	return c.fallbackFetch.WithLabelValues(handler)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
