// Package metrics defines Prometheus metrics for vaultkeeper, covering
// reveals, checkouts, access requests, one-time links, alerts and the audit
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Reveals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeeper_reveals_total",
		Help: "Reveal attempts by outcome and access basis",
	}, []string{"outcome", "basis"})
	Checkouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeeper_checkouts_total",
		Help: "Checkout lock operations by action and outcome",
	}, []string{"action", "outcome"})
	JITDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeeper_jit_decisions_total",
		Help: "JIT request lifecycle transitions",
	}, []string{"status"})
	BreakGlassEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeeper_breakglass_events_total",
		Help: "Break-glass requests, approvals and revocations",
	}, []string{"event"})
	LinkEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeeper_links_total",
		Help: "One-time link mints, resolutions and purges",
	}, []string{"event"})
	// Alerts counts delivery outcomes after retries.
	Alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeeper_alerts_total",
		Help: "Alert deliveries by priority and result",
	}, []string{"priority", "result"})
	AuditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vaultkeeper_audit_write_failures_total",
		Help: "Operations rejected because the audit entry could not be written",
	})
	AuditForwardFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vaultkeeper_audit_forward_failures_total",
		Help: "Audit entries that could not be forwarded to the external topic",
	})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeeper_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
	SweepRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeeper_sweep_runs_total",
		Help: "Sweeper passes by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(Reveals)
	prometheus.MustRegister(Checkouts)
	prometheus.MustRegister(JITDecisions)
	prometheus.MustRegister(BreakGlassEvents)
	prometheus.MustRegister(LinkEvents)
	prometheus.MustRegister(Alerts)
	prometheus.MustRegister(AuditWriteFailures)
	prometheus.MustRegister(AuditForwardFailures)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(SweepRuns)
}

// Handler returns an http.Handler exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
