// Package middleware wraps the preview server's handlers with request ids,
// tracing, metrics and access logging.
package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"tgblog/internal/constants"
	"tgblog/internal/httputil"
	"tgblog/internal/metrics"
	"tgblog/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Options configures Observability.
type Options struct {
	// TrustProxy makes the client address come from forwarding headers.
	TrustProxy bool
	// QuietPaths are served without access log entries.
	QuietPaths []string
}

// DefaultOptions keeps health checks out of the access log.
func DefaultOptions() Options {
	return Options{QuietPaths: []string{"/health"}}
}

// Observability adds a request id, a span, metrics and an access log entry
// to every request.
func Observability(logger *logrus.Logger, reg *metrics.Registry, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = tracing.NewRequestID()
			}

			ctx, span := tracing.StartSpan(r.Context(), "http_request")
			defer span.End()
			ctx = tracing.WithRequestID(ctx, requestID)
			ctx = tracing.WithStartTime(ctx, time.Now())
			r = r.WithContext(ctx)

			clientIP := httputil.ClientIP(r, opts.TrustProxy)
			tracing.AddSpanAttributes(ctx,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("client.address", clientIP),
				attribute.String("tgblog.request_id", requestID),
			)

			w.Header().Set(RequestIDHeader, requestID)
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			duration := tracing.Duration(ctx)
			status := strconv.Itoa(wrapper.statusCode)

			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.size", wrapper.responseSize),
			)
			if wrapper.statusCode >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}

			reg.IncrementCounter(metrics.HTTPRequests, map[string]string{
				"method":      r.Method,
				"status_code": status,
			}, "HTTP requests by status code")
			reg.RecordTimer(metrics.HTTPDuration, duration, map[string]string{
				"method": r.Method,
			})

			if slices.Contains(opts.QuietPaths, r.URL.Path) && wrapper.statusCode < 400 {
				return
			}

			logLevel := logrus.InfoLevel
			if wrapper.statusCode >= 400 && wrapper.statusCode < 500 {
				logLevel = logrus.WarnLevel
			} else if wrapper.statusCode >= 500 {
				logLevel = logrus.ErrorLevel
			}

			logger.WithFields(logrus.Fields{
				constants.LogFieldRequestID:  requestID,
				constants.LogFieldTraceID:    traceID(span),
				constants.LogFieldMethod:     r.Method,
				constants.LogFieldPath:       r.URL.Path,
				constants.LogFieldStatusCode: wrapper.statusCode,
				constants.LogFieldDuration:   duration.Milliseconds(),
				constants.LogFieldRemoteIP:   clientIP,
				constants.LogFieldSize:       wrapper.responseSize,
			}).Log(logLevel, "HTTP request completed")
		})
	}
}

// Recover turns a panicking handler into a 500 response.
func Recover(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithFields(logrus.Fields{
						constants.LogFieldRequestID: tracing.GetRequestID(r.Context()),
						constants.LogFieldPath:      r.URL.Path,
						"panic":                     rec,
					}).Error("Handler panicked")
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func traceID(span oteltrace.Span) string {
	sc := span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// responseWrapper captures response metrics
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
	wroteHeader  bool
}

func (rw *responseWrapper) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWrapper) Write(data []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(data)
	rw.responseSize += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWrapper) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
