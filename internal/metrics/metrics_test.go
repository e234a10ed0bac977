package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordOperation("create", ResultSuccess)
	m.RecordOperation("create", ResultSuccess)
	m.RecordOperation("create", ResultConflict)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PaymentOperations.WithLabelValues("create", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentOperations.WithLabelValues("create", ResultConflict)))

	m.RecordSkipped(3)
	m.RecordSkipped(0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SnapshotSkipped))

	m.RecordEvent("created", errors.New("down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("created", ResultError)))

	m.RecordMirrorWrite("event", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MirrorWrites.WithLabelValues("event", ResultSuccess)))

	m.RecordHTTP("GET", "/api/payments", 200, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/payments", "200")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordOperation("create", ResultSuccess)
	m.RecordSkipped(1)
	m.RecordEvent("created", nil)
	m.RecordMirrorWrite("event", nil)
	m.RecordHTTP("GET", "/", 200, time.Millisecond)
}
