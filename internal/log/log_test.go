package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Component: ComponentPayments, Output: &buf}), &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerAddsComponent(t *testing.T) {
	l, buf := bufferLogger(slog.LevelInfo)
	l.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "component=payments")
	assert.Contains(t, buf.String(), "k=v")

	buf.Reset()
	l.WithComponent(ComponentHTTP).Warn("careful")
	assert.Contains(t, buf.String(), "component=http")

	buf.Reset()
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestMiddlewareInjectsRequestLogger(t *testing.T) {
	l, buf := bufferLogger(slog.LevelInfo)
	h := Middleware(l, func(*http.Request) string { return "req-1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, buf.String(), "request_id=req-1")
}

func TestFromContextFallback(t *testing.T) {
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestStructuredLogger(t *testing.T) {
	l, buf := bufferLogger(slog.LevelDebug)
	sl := NewStructuredLogger(l)
	ctx := context.Background()

	sl.LogPayment(ctx, OpCreate, "id-1", "Rent", 1999, "future")
	assert.Contains(t, buf.String(), "payment_name=Rent")
	assert.Contains(t, buf.String(), "amount_cents=1999")

	buf.Reset()
	sl.LogSnapshot(ctx, OpList, 3, 1)
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	sl.LogError(ctx, "store failed", errors.New("disk full"), ErrorTypeDatabase, OpCreate, nil)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), `error="disk full"`)

	buf.Reset()
	r := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
	sl.LogHTTPEnd(ctx, r, "/api/payments", http.StatusNotFound, 3, "127.0.0.1")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "status_code=404")
}
