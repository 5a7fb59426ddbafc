package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"tgblog/internal/metrics"
	"tgblog/internal/tracing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger, &buf
}

func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestObservability_LogsAndMetrics(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "ok", status: http.StatusOK, wantLevel: "info"},
		{name: "not found", status: http.StatusNotFound, wantLevel: "warning"},
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := testLogger()
			reg := metrics.NewRegistry()

			var seenRequestID string
			handler := Observability(logger, reg, DefaultOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenRequestID = tracing.GetRequestID(r.Context())
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
			req.RemoteAddr = "192.0.2.10:5555"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, seenRequestID)
			assert.Equal(t, seenRequestID, rec.Header().Get(RequestIDHeader))

			entries := logEntries(t, buf)
			require.Len(t, entries, 1)
			e := entries[0]
			assert.Equal(t, tt.wantLevel, e["level"])
			assert.Equal(t, "HTTP request completed", e["msg"])
			assert.Equal(t, "/api/posts", e["path"])
			assert.Equal(t, "GET", e["method"])
			assert.Equal(t, float64(tt.status), e["status_code"])
			assert.Equal(t, float64(4), e["size"])
			assert.Equal(t, "192.0.2.10", e["remote_ip"])
			assert.Equal(t, seenRequestID, e["request_id"])

			assert.Equal(t, 1.0, reg.Counter(metrics.HTTPRequests, map[string]string{
				"method":      "GET",
				"status_code": strconv.Itoa(tt.status),
			}))
		})
	}
}

func TestObservability_KeepsIncomingRequestID(t *testing.T) {
	logger, _ := testLogger()
	handler := Observability(logger, metrics.NewRegistry(), DefaultOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc-123", tracing.GetRequestID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestObservability_QuietPaths(t *testing.T) {
	logger, buf := testLogger()
	reg := metrics.NewRegistry()
	handler := Observability(logger, reg, DefaultOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Empty(t, buf.String())
	assert.Equal(t, 1.0, reg.Counter(metrics.HTTPRequests, map[string]string{
		"method":      "GET",
		"status_code": "200",
	}))
}

func TestObservability_TrustProxy(t *testing.T) {
	logger, buf := testLogger()
	handler := Observability(logger, metrics.NewRegistry(), Options{TrustProxy: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "203.0.113.7", entries[0]["remote_ip"])
}

func TestObservability_Span(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	logger, buf := testLogger()
	handler := Observability(logger, metrics.NewRegistry(), DefaultOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts/1", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "http_request", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())

	entries := logEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), entries[0]["trace_id"])
}

func TestRecover(t *testing.T) {
	logger, buf := testLogger()
	handler := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "Handler panicked")
	assert.Contains(t, buf.String(), "boom")
}

func TestResponseWrapper_SingleWriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWrapper{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusTeapot)
	_, _ = rw.Write([]byte("abc"))

	assert.Equal(t, http.StatusCreated, rw.statusCode)
	assert.Equal(t, int64(3), rw.responseSize)
	assert.Equal(t, rec, rw.Unwrap())
}
