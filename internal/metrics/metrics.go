// Package metrics exposes the Prometheus collectors of the storefront.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Step outcomes recorded by the workflow runner.
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
	OutcomeCompensated = "compensated"
)

// Metrics holds the storefront collectors.
type Metrics struct {
	stepDuration *prometheus.HistogramVec
	stepOutcomes *prometheus.CounterVec

	finalizeCompleted prometheus.Counter
	finalizeFailed    prometheus.Counter
	finalizeInFlight  prometheus.Gauge

	oversoldUnits   prometheus.Counter
	counterFallback *prometheus.CounterVec
	invoiceFailures prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// New registers the collectors on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on registerer, reusing collectors that already exist.
func NewWithRegisterer(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_workflow_step_duration_seconds",
			Help:    "Duration of workflow steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"workflow", "step"}),
		stepOutcomes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_workflow_steps_total",
			Help: "Workflow steps by outcome",
		}, []string{"workflow", "step", "outcome"}),
		finalizeCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_finalize_completed_total",
			Help: "Checkout sessions finalized into orders",
		}),
		finalizeFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_finalize_failed_total",
			Help: "Finalize attempts aborted by a mandatory step",
		}),
		finalizeInFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_finalize_in_flight",
			Help: "Finalize workflows currently running",
		}),
		oversoldUnits: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_oversold_units_total",
			Help: "Units sold beyond available stock, clamped at zero",
		}),
		counterFallback: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_counter_fallback_total",
			Help: "Reference numbers minted from the clock because the counter store failed",
		}, []string{"sequence"}),
		invoiceFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_invoice_failures_total",
			Help: "Invoice generation failures",
		}),
		cacheHits: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_cache_hits_total",
			Help: "Cart reads served from the cache",
		}),
		cacheMisses: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_cache_misses_total",
			Help: "Cart reads that fell through to the store",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordStep records one workflow step execution.
func (m *Metrics) RecordStep(workflow, step, outcome string, duration time.Duration) {
	m.stepDuration.WithLabelValues(workflow, step).Observe(duration.Seconds())
	m.stepOutcomes.WithLabelValues(workflow, step, outcome).Inc()
}

// FinalizeStarted marks a finalize workflow as running.
func (m *Metrics) FinalizeStarted() {
	m.finalizeInFlight.Inc()
}

// FinalizeFinished records the end of a finalize workflow.
func (m *Metrics) FinalizeFinished(err error) {
	m.finalizeInFlight.Dec()
	if err != nil {
		m.finalizeFailed.Inc()
		return
	}
	m.finalizeCompleted.Inc()
}

// RecordOversold counts units sold beyond stock.
func (m *Metrics) RecordOversold(units int) {
	if units > 0 {
		m.oversoldUnits.Add(float64(units))
	}
}

// RecordCounterFallback counts a clock-derived reference for sequence.
func (m *Metrics) RecordCounterFallback(sequence string) {
	m.counterFallback.WithLabelValues(sequence).Inc()
}

// RecordInvoiceFailure counts a failed invoice generation.
func (m *Metrics) RecordInvoiceFailure() {
	m.invoiceFailures.Inc()
}

// RecordCacheHit counts a cart cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Inc()
}

// RecordCacheMiss counts a cart cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Inc()
}
