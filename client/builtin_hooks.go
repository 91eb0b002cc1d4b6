package client

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
// LoggingHook - Logs remote calls
// ============================================================================

// LoggingHook logs remote calls with configurable detail levels.
type LoggingHook struct {
	logger       Logger
	logCalls     bool // Log call start
	logResults   bool // Log results
	logDurations bool // Log call times
}

// NewLoggingHook creates a new logging hook with the given logger.
func NewLoggingHook(logger Logger, logCalls, logResults, logDurations bool) *LoggingHook {
	return &LoggingHook{
		logger:       logger,
		logCalls:     logCalls,
		logResults:   logResults,
		logDurations: logDurations,
	}
}

func (h *LoggingHook) Name() string {
	return "logging"
}

func (h *LoggingHook) Before(ctx context.Context, hookCtx *HookContext) error {
	if h.logCalls {
		h.logger.Debug("calling remote service",
			String("operation", hookCtx.Operation),
			String("configuration", hookCtx.Configuration),
			String("trace_id", hookCtx.TraceID))
	}
	return nil
}

func (h *LoggingHook) After(ctx context.Context, hookCtx *HookContext) error {
	fields := []Field{
		String("operation", hookCtx.Operation),
		String("trace_id", hookCtx.TraceID),
	}

	if h.logDurations {
		fields = append(fields, Duration("duration", hookCtx.Duration))
	}

	if hookCtx.Error != nil {
		fields = append(fields, Error("error", hookCtx.Error))
		h.logger.Error("remote call failed", fields...)
	} else {
		if h.logResults && hookCtx.Result != nil {
			fields = append(fields, String("result", fmt.Sprintf("%v", hookCtx.Result)))
		}
		h.logger.Debug("remote call completed", fields...)
	}

	return nil
}

// ============================================================================
// MetricsHook - Prometheus metrics for remote calls
// ============================================================================

// MetricsHook counts remote calls and observes their latency. It is a
// prometheus.Collector; register it with a registry to export the series.
type MetricsHook struct {
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsHook creates a new metrics hook.
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "remotedb",
				Subsystem: "client",
				Name:      "calls_total",
				Help:      "Remote service calls by operation.",
			}, []string{"operation"}),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "remotedb",
				Subsystem: "client",
				Name:      "call_errors_total",
				Help:      "Failed remote service calls by operation.",
			}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "remotedb",
				Subsystem: "client",
				Name:      "call_duration_seconds",
				Help:      "Remote service call latency.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
			}, []string{"operation"}),
	}
}

func (h *MetricsHook) Name() string {
	return "metrics"
}

func (h *MetricsHook) Before(ctx context.Context, hookCtx *HookContext) error {
	return nil
}

func (h *MetricsHook) After(ctx context.Context, hookCtx *HookContext) error {
	h.calls.WithLabelValues(hookCtx.Operation).Inc()
	h.duration.WithLabelValues(hookCtx.Operation).Observe(hookCtx.Duration.Seconds())
	if hookCtx.Error != nil {
		h.errors.WithLabelValues(hookCtx.Operation).Inc()
	}
	return nil
}

// Calls returns the call counter for operation.
func (h *MetricsHook) Calls(operation string) prometheus.Counter {
	return h.calls.WithLabelValues(operation)
}

// Errors returns the error counter for operation.
func (h *MetricsHook) Errors(operation string) prometheus.Counter {
	return h.errors.WithLabelValues(operation)
}

// Describe implements prometheus.Collector.
func (h *MetricsHook) Describe(ch chan<- *prometheus.Desc) {
	h.calls.Describe(ch)
	h.errors.Describe(ch)
	h.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (h *MetricsHook) Collect(ch chan<- prometheus.Metric) {
	h.calls.Collect(ch)
	h.errors.Collect(ch)
	h.duration.Collect(ch)
}
