// Package metrics exposes Prometheus counters for authentication, registration
// and marketplace activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is what usecases and middleware record into.
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordRegistration(outcome string)
	RecordProfileWriteRetry()
	RecordListingCreated(grade string)
	RecordSessionRefresh(success bool)
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

type Collector struct {
	logins         *prometheus.CounterVec
	registrations  *prometheus.CounterVec
	profileRetries prometheus.Counter
	listings       *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribid_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribid_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		profileRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agribid_profile_write_retries_total",
			Help: "Profile writes retried after a failure",
		}),
		listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribid_listings_created_total",
			Help: "Listings created by quality grade",
		}, []string{"grade"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribid_session_refresh_total",
			Help: "Session token refreshes by result",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribid_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agribid_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.profileRetries,
		c.listings,
		c.refreshes,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordProfileWriteRetry() {
	c.profileRetries.Inc()
}

func (c *Collector) RecordListingCreated(grade string) {
	c.listings.WithLabelValues(grade).Inc()
}

func (c *Collector) RecordSessionRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.refreshes.WithLabelValues(result).Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Nop discards everything. Used when metrics are not wired, e.g. in the CLI.
type Nop struct{}

func (Nop) RecordLogin(string)                                   {}
func (Nop) RecordRegistration(string)                            {}
func (Nop) RecordProfileWriteRetry()                             {}
func (Nop) RecordListingCreated(string)                          {}
func (Nop) RecordSessionRefresh(bool)                            {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
