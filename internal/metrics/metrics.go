// Package metrics collects Prometheus metrics for identity, bootstrap and purchase activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "playerhub"

// Result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder is the metrics interface used by services and middleware
type Recorder interface {
	SignIn(provider string, result string)
	LinkConflict(provider string)
	Bootstrapped(isNewPlayer bool)
	SeedFailed()
	Purchase(purchaseID string, result string)
	HTTPRequest(method string, route string, status int, duration time.Duration)
}

// Collector is the Prometheus implementation of Recorder
type Collector struct {
	signIns       *prometheus.CounterVec
	linkConflicts *prometheus.CounterVec
	bootstraps    *prometheus.CounterVec
	seedFailures  prometheus.Counter
	purchases     *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// Ensure Collector implements Recorder
var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_ins_total",
			Help:      "Sign-in attempts by provider and result.",
		}, []string{"provider", "result"}),
		linkConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_conflicts_total",
			Help:      "Link attempts rejected because the identity belongs to another player.",
		}, []string{"provider"}),
		bootstraps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstraps_total",
			Help:      "Player sign-in bootstraps by outcome.",
		}, []string{"outcome"}),
		seedFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "starter_seed_failures_total",
			Help:      "Starter inventory grants that failed and will be retried.",
		}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Virtual purchases by purchase id and result.",
		}, []string{"purchase_id", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.signIns,
		c.linkConflicts,
		c.bootstraps,
		c.seedFailures,
		c.purchases,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

func (c *Collector) SignIn(provider string, result string) {
	c.signIns.WithLabelValues(provider, result).Inc()
}

func (c *Collector) LinkConflict(provider string) {
	c.linkConflicts.WithLabelValues(provider).Inc()
}

func (c *Collector) Bootstrapped(isNewPlayer bool) {
	outcome := "returning"
	if isNewPlayer {
		outcome = "new"
	}
	c.bootstraps.WithLabelValues(outcome).Inc()
}

func (c *Collector) SeedFailed() {
	c.seedFailures.Inc()
}

func (c *Collector) Purchase(purchaseID string, result string) {
	c.purchases.WithLabelValues(purchaseID, result).Inc()
}

func (c *Collector) HTTPRequest(method string, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the metrics registered in gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards all metrics
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) SignIn(string, string)                          {}
func (Nop) LinkConflict(string)                            {}
func (Nop) Bootstrapped(bool)                              {}
func (Nop) SeedFailed()                                    {}
func (Nop) Purchase(string, string)                        {}
func (Nop) HTTPRequest(string, string, int, time.Duration) {}
