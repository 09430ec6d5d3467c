// Package metrics records run metrics in a private Prometheus registry.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ogc"

// Recorder owns the collectors of one run.
type Recorder struct {
	registry *prometheus.Registry

	nodesCreated        *prometheus.CounterVec
	nodesDestroyed      *prometheus.CounterVec
	scriptSteps         *prometheus.CounterVec
	reconcileTotal      *prometheus.CounterVec
	reconcileDuration   *prometheus.HistogramVec
	providerCalls       *prometheus.CounterVec
	providerCallLatency *prometheus.HistogramVec
	nodesDesired        *prometheus.GaugeVec
	nodesDeployed       *prometheus.GaugeVec
}

// New returns a Recorder with its collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		nodesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nodes",
				Name:      "created_total",
				Help:      "Node creations by layout, provider and result",
			},
			[]string{"layout", "provider", "result"},
		),
		nodesDestroyed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nodes",
				Name:      "destroyed_total",
				Help:      "Node teardowns by layout and result",
			},
			[]string{"layout", "result"},
		),
		scriptSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "deploy",
				Name:      "steps_total",
				Help:      "Executed script steps by layout and result",
			},
			[]string{"layout", "result"},
		),
		reconcileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "total",
				Help:      "Reconciliation passes by layout, action and result",
			},
			[]string{"layout", "action", "result"},
		),
		reconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "duration_seconds",
				Help:      "Duration of a reconciliation pass in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"layout"},
		),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "calls_total",
				Help:      "Provider calls by provider, operation and result",
			},
			[]string{"provider", "operation", "result"},
		),
		providerCallLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "call_latency_seconds",
				Help:      "Latency of provider calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
			},
			[]string{"provider", "operation"},
		),
		nodesDesired: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "layout",
				Name:      "nodes_desired",
				Help:      "Desired scale per layout",
			},
			[]string{"layout"},
		),
		nodesDeployed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "layout",
				Name:      "nodes_deployed",
				Help:      "Nodes recorded in the inventory per layout",
			},
			[]string{"layout"},
		),
	}
	r.registry.MustRegister(
		r.nodesCreated,
		r.nodesDestroyed,
		r.scriptSteps,
		r.reconcileTotal,
		r.reconcileDuration,
		r.providerCalls,
		r.providerCallLatency,
		r.nodesDesired,
		r.nodesDeployed,
	)
	return r
}

// Registry exposes the registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes the current values in the text exposition format,
// for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// NodeCreated records a create attempt.
func (r *Recorder) NodeCreated(layout, provider string, ok bool) {
	if r == nil {
		return
	}
	r.nodesCreated.WithLabelValues(layout, provider, result(ok)).Inc()
}

// NodeDestroyed records a teardown. absent marks nodes the provider no
// longer knew about.
func (r *Recorder) NodeDestroyed(layout string, ok, absent bool) {
	if r == nil {
		return
	}
	res := result(ok)
	if ok && absent {
		res = "absent"
	}
	r.nodesDestroyed.WithLabelValues(layout, res).Inc()
}

// ScriptStep records one executed step.
func (r *Recorder) ScriptStep(layout string, ok bool) {
	if r == nil {
		return
	}
	r.scriptSteps.WithLabelValues(layout, result(ok)).Inc()
}

// Reconcile records a finished pass.
func (r *Recorder) Reconcile(layout, action string, ok bool, seconds float64) {
	if r == nil {
		return
	}
	if action == "" {
		action = "none"
	}
	r.reconcileTotal.WithLabelValues(layout, action, result(ok)).Inc()
	r.reconcileDuration.WithLabelValues(layout).Observe(seconds)
}

// ProviderCall records one adapter call.
func (r *Recorder) ProviderCall(provider, operation string, ok bool, seconds float64) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(provider, operation, result(ok)).Inc()
	r.providerCallLatency.WithLabelValues(provider, operation).Observe(seconds)
}

// LayoutCounts sets the desired and deployed gauges of a layout.
func (r *Recorder) LayoutCounts(layout string, desired, deployed int) {
	if r == nil {
		return
	}
	r.nodesDesired.WithLabelValues(layout).Set(float64(desired))
	r.nodesDeployed.WithLabelValues(layout).Set(float64(deployed))
}
