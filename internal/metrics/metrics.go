package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})
	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pubsub_active_subscribers",
		Help: "Subscribers currently registered on any topic",
	})
	Published = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pubsub_published_total",
		Help: "Events published to the fan-out channel",
	})
	Delivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pubsub_delivered_total",
		Help: "Events handed to a subscriber",
	})
	GraphQLRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "graphql_requests_total",
		Help: "GraphQL operations by transport and outcome",
	}, []string{"transport", "outcome"})
	GraphQLDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graphql_request_duration_seconds",
		Help:    "GraphQL execution latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"transport"})
	DomainEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_events_total",
		Help: "Domain events emitted to external sinks",
	}, []string{"sink", "outcome"})
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			Connections,
			Subscribers,
			Published,
			Delivered,
			GraphQLRequests,
			GraphQLDuration,
			DomainEvents,
		)
	})
}

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
