package httpx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
)

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sequence",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"})

		r.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sequence",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"})

		r.rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sequence",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"})

		r.gateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sequence",
			Subsystem: "api",
			Name:      "gate_decisions_total",
			Help:      "Access gate outcomes on protected routes",
		}, []string{"state"})

		r.webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sequence",
			Subsystem: "api",
			Name:      "webhook_events_total",
			Help:      "Billing webhook deliveries by event type and outcome",
		}, []string{"type", "outcome"})

		r.provisionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sequence",
			Subsystem: "api",
			Name:      "tenant_provision_total",
			Help:      "Tenant provisioning outcomes during login",
		}, []string{"outcome"})

		collectors := []prometheus.Collector{r.requestTotal, r.requestLatency, r.rateLimitHits, r.gateDecisions, r.webhookEvents, r.provisionTotal}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch v := are.ExistingCollector.(type) {
					case *prometheus.CounterVec:
						switch collector {
						case r.requestTotal:
							r.requestTotal = v
						case r.rateLimitHits:
							r.rateLimitHits = v
						case r.gateDecisions:
							r.gateDecisions = v
						case r.webhookEvents:
							r.webhookEvents = v
						case r.provisionTotal:
							r.provisionTotal = v
						}
					case *prometheus.HistogramVec:
						r.requestLatency = v
					}
				}
			}
		}
		r.metricsInitialized = true
	})
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (r *Router) recordGateDecision(state string) {
	if !r.metricsInitialized {
		return
	}
	r.gateDecisions.With(prometheus.Labels{"state": state}).Inc()
}

func (r *Router) recordWebhookEvent(eventType, outcome string) {
	if !r.metricsInitialized {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	r.webhookEvents.With(prometheus.Labels{"type": eventType, "outcome": outcome}).Inc()
}

func (r *Router) recordProvisionOutcome(outcome string) {
	if !r.metricsInitialized {
		return
	}
	r.provisionTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
}
