// Package metrics holds the Prometheus instruments of the application.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paymanager"

const (
	ResultSuccess  = "success"
	ResultInvalid  = "invalid"
	ResultConflict = "conflict"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics groups every instrument. A nil *Metrics records nothing.
type Metrics struct {
	PaymentOperations   *prometheus.CounterVec
	SnapshotSkipped     prometheus.Counter
	EventsPublished     *prometheus.CounterVec
	MirrorWrites        *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PaymentOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_operations_total",
			Help:      "Payment operations by operation and result",
		}, []string{"operation", "result"}),
		SnapshotSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_skipped_total",
			Help:      "Stored payments skipped because they could not be decoded",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Payment events published by type and result",
		}, []string{"type", "result"}),
		MirrorWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_writes_total",
			Help:      "Snapshot mirror writes by trigger and result",
		}, []string{"trigger", "result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) RecordOperation(op, result string) {
	if m == nil {
		return
	}
	m.PaymentOperations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) RecordSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SnapshotSkipped.Add(float64(n))
}

func (m *Metrics) RecordEvent(eventType string, err error) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType, resultOf(err)).Inc()
}

func (m *Metrics) RecordMirrorWrite(trigger string, err error) {
	if m == nil {
		return
	}
	m.MirrorWrites.WithLabelValues(trigger, resultOf(err)).Inc()
}

func (m *Metrics) RecordHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
