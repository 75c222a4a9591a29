// Package telemetry holds the prometheus metrics of a nodekit process.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons used to label DroppedTotal.
const (
	ReasonUnknownType    = "unknown_type"
	ReasonResolvedReply  = "resolved_reply"
	ReasonHandlerError   = "handler_error"
	ReasonHandlerPanic   = "handler_panic"
	ReasonSendError      = "send_error"
	ReasonRetryGaveUp    = "retry_gave_up"
	ReasonRetryCancelled = "retry_cancelled"
)

var (
	Registry = prometheus.NewRegistry()

	ReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodekit",
			Name:      "envelopes_received_total",
			Help:      "Envelopes taken off the ingestion queue, by body type.",
		},
		[]string{"type"},
	)

	SentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodekit",
			Name:      "envelopes_sent_total",
			Help:      "Envelopes written to the transport, by body type.",
		},
		[]string{"type"},
	)

	DroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodekit",
			Name:      "envelopes_dropped_total",
			Help:      "Envelopes that produced no handler reply, by reason.",
		},
		[]string{"reason"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nodekit",
			Name:      "handler_duration_seconds",
			Help:      "Time spent in protocol handlers.",
			// 100us .. ~1.6s
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"type"},
	)

	ResendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nodekit",
			Name:      "resends_total",
			Help:      "Requests resent because no reply arrived in time.",
		},
	)

	PendingCallbacks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nodekit",
			Name:      "pending_callbacks",
			Help:      "Requests waiting for a reply.",
		},
	)

	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nodekit",
			Name:      "in_flight_dispatches",
			Help:      "Envelopes currently being dispatched.",
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nodekit",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "nodekit",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		ReceivedTotal,
		SentTotal,
		DroppedTotal,
		HandlerDuration,
		ResendsTotal,
		PendingCallbacks,
		InFlight,
		buildInfo,
		uptime,
	)
}

// MetricsHandler exposes the registry in the prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// ObserveHandler records the duration of a handler call started at start.
func ObserveHandler(typ string, start time.Time) {
	HandlerDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
}
