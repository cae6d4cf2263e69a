// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the Prometheus collectors netstated's apply
// engine and DHCP manager update as they run. The Plugin collectors are
// defined here as well; the plugin supervisor does not update them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine holds the apply-engine metrics: how often applies run, whether
// they succeed, how long they take and how many verify retries they burn.
type Engine struct {
	AppliesTotal       *prometheus.CounterVec
	ApplyDuration      prometheus.Histogram
	VerifyRetriesTotal prometheus.Counter
	RollbacksTotal     prometheus.Counter
}

// NewEngine constructs the apply-engine metrics; Register adds them to the
// default registry.
func NewEngine() *Engine {
	return &Engine{
		AppliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netstated_applies_total",
			Help: "Total number of ApplyNetworkState operations by outcome.",
		}, []string{"outcome"}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "netstated_apply_duration_seconds",
			Help:    "Duration of ApplyNetworkState operations.",
			Buckets: prometheus.DefBuckets,
		}),
		VerifyRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netstated_verify_retries_total",
			Help: "Total number of verify-loop retries consumed across all applies.",
		}),
		RollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netstated_rollbacks_total",
			Help: "Total number of times rollback was invoked after a failed apply.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (e *Engine) Describe(ch chan<- *prometheus.Desc) {
	e.AppliesTotal.Describe(ch)
	e.ApplyDuration.Describe(ch)
	e.VerifyRetriesTotal.Describe(ch)
	e.RollbacksTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (e *Engine) Collect(ch chan<- prometheus.Metric) {
	e.AppliesTotal.Collect(ch)
	e.ApplyDuration.Collect(ch)
	e.VerifyRetriesTotal.Collect(ch)
	e.RollbacksTotal.Collect(ch)
}

// Register registers e with the default Prometheus registry.
func (e *Engine) Register() {
	prometheus.MustRegister(e)
}

// ObserveApply records the outcome and wall-clock duration of one apply.
func (e *Engine) ObserveApply(outcome string, d time.Duration) {
	e.AppliesTotal.WithLabelValues(outcome).Inc()
	e.ApplyDuration.Observe(d.Seconds())
}

// Plugin holds per-plugin round-trip latency metrics.
type Plugin struct {
	QueryLatency *prometheus.HistogramVec
	ApplyLatency *prometheus.HistogramVec
	Failures     *prometheus.CounterVec
}

// NewPlugin constructs the plugin-supervisor metrics.
func NewPlugin() *Plugin {
	return &Plugin{
		QueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netstated_plugin_query_duration_seconds",
			Help:    "Duration of QueryNetworkState round-trips per plugin.",
			Buckets: prometheus.DefBuckets,
		}, []string{"plugin"}),
		ApplyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netstated_plugin_apply_duration_seconds",
			Help:    "Duration of ApplyNetworkState round-trips per plugin.",
			Buckets: prometheus.DefBuckets,
		}, []string{"plugin"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netstated_plugin_failures_total",
			Help: "Total number of plugin query/apply failures by plugin and operation.",
		}, []string{"plugin", "op"}),
	}
}

// Describe implements prometheus.Collector.
func (p *Plugin) Describe(ch chan<- *prometheus.Desc) {
	p.QueryLatency.Describe(ch)
	p.ApplyLatency.Describe(ch)
	p.Failures.Describe(ch)
}

// Collect implements prometheus.Collector.
func (p *Plugin) Collect(ch chan<- prometheus.Metric) {
	p.QueryLatency.Collect(ch)
	p.ApplyLatency.Collect(ch)
	p.Failures.Collect(ch)
}

// Register registers p with the default Prometheus registry.
func (p *Plugin) Register() {
	prometheus.MustRegister(p)
}

// DHCP holds per-interface DHCPv4 lease-state metrics.
type DHCP struct {
	LeaseState *prometheus.GaugeVec
	Renewals   *prometheus.CounterVec
}

// NewDHCP constructs the DHCP-manager metrics.
func NewDHCP() *DHCP {
	return &DHCP{
		LeaseState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netstated_dhcp_lease_state",
			Help: "Current DHCPv4 worker state by interface (1 for the active state, 0 otherwise).",
		}, []string{"iface", "state"}),
		Renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netstated_dhcp_lease_events_total",
			Help: "Total number of DHCPv4 lease events by interface and event.",
		}, []string{"iface", "event"}),
	}
}

// Describe implements prometheus.Collector.
func (d *DHCP) Describe(ch chan<- *prometheus.Desc) {
	d.LeaseState.Describe(ch)
	d.Renewals.Describe(ch)
}

// Collect implements prometheus.Collector.
func (d *DHCP) Collect(ch chan<- prometheus.Metric) {
	d.LeaseState.Collect(ch)
	d.Renewals.Collect(ch)
}

// Register registers d with the default Prometheus registry.
func (d *DHCP) Register() {
	prometheus.MustRegister(d)
}

// SetState zeroes every known state gauge for iface then sets state to 1,
// so stale states don't linger in the exported series.
func (d *DHCP) SetState(iface string, states []string, state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1.0
		}
		d.LeaseState.WithLabelValues(iface, s).Set(v)
	}
}
