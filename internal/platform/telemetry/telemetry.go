// Package telemetry collects in-process metrics for the flattening service
// and serves them in Prometheus exposition format. Request traffic is
// recorded by an Echo middleware; the pipeline and flattening layers report
// their own domain counters through the provider.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// TelemetryConfig holds the identity and switches for the provider.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	MetricsEnabled *bool
}

func (c *TelemetryConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "fhirtab-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

func (c *TelemetryConfig) metricsOn() bool {
	return c.MetricsEnabled == nil || *c.MetricsEnabled
}

// BoolPtr returns a pointer to b, for the optional config switches.
func BoolPtr(b bool) *bool {
	return &b
}

// Histogram bucket bounds: request durations in seconds, body sizes in
// bytes.
var (
	durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	sizeBuckets     = []float64{256, 1 << 10, 16 << 10, 256 << 10, 1 << 20, 16 << 20}
)

// Internal metric names. Labeled counters append their label values with
// counterKey.
const (
	metricFlattenRequests = "flatten.requests"
	metricFlattenRows     = "flatten.rows"
	gaugeActiveRequests   = "http.active_requests"
	gaugeSandboxRows      = "sandbox.dataset_rows"
)

// TelemetryProvider owns every metric instrument in the process.
type TelemetryProvider struct {
	cfg TelemetryConfig

	httpDurations  *histogramVec // keyed method|route|status
	requestSizes   *histogram
	responseSizes  *histogram
	stageDurations *histogramVec // keyed by pipeline stage
	counters       *counterSet
	gauges         *counterSet
}

func NewTelemetryProvider(cfg TelemetryConfig) *TelemetryProvider {
	cfg.applyDefaults()
	return &TelemetryProvider{
		cfg:            cfg,
		httpDurations:  newHistogramVec(durationBuckets),
		requestSizes:   newHistogram(sizeBuckets),
		responseSizes:  newHistogram(sizeBuckets),
		stageDurations: newHistogramVec(durationBuckets),
		counters:       newCounterSet(),
		gauges:         newCounterSet(),
	}
}

// Shutdown exists so callers can treat the provider like any component with
// a lifecycle. Metrics live in memory only, so there is nothing to flush.
func (tp *TelemetryProvider) Shutdown(context.Context) error {
	return nil
}

// FlattenRequestCounter counts one flatten request per resource type and
// outcome ("ok" or "error").
func (tp *TelemetryProvider) FlattenRequestCounter(resourceType, outcome string) {
	tp.counters.add(counterKey(metricFlattenRequests, resourceType, outcome), 1)
}

// FlattenRowsCounter counts rows produced by flattening, per resource type.
func (tp *TelemetryProvider) FlattenRowsCounter(resourceType string, rows int64) {
	tp.counters.add(counterKey(metricFlattenRows, resourceType), rows)
}

// ObserveStage records one pipeline stage execution time in seconds.
func (tp *TelemetryProvider) ObserveStage(stage string, seconds float64) {
	tp.stageDurations.with(stage).observe(seconds)
}

// SetDatasetRows records the size of the last generated sandbox dataset.
func (tp *TelemetryProvider) SetDatasetRows(n int64) {
	tp.gauges.set(gaugeSandboxRows, n)
}

// GetCounter returns a counter value by name and label values.
func (tp *TelemetryProvider) GetCounter(name string, labels ...string) int64 {
	return tp.counters.get(counterKey(name, labels...))
}

// GetGauge returns a gauge value by name.
func (tp *TelemetryProvider) GetGauge(name string) int64 {
	return tp.gauges.get(name)
}

// RequestCount returns the number of requests recorded for one
// method/route/status combination.
func (tp *TelemetryProvider) RequestCount(method, route, status string) int64 {
	h := tp.httpDurations.peek(requestKey(method, route, status))
	if h == nil {
		return 0
	}
	_, total, _ := h.snapshot()
	return total
}

// StageCount returns the number of recorded executions for a pipeline stage.
func (tp *TelemetryProvider) StageCount(stage string) int64 {
	h := tp.stageDurations.peek(stage)
	if h == nil {
		return 0
	}
	_, total, _ := h.snapshot()
	return total
}

// StageSum returns the total recorded seconds for a pipeline stage.
func (tp *TelemetryProvider) StageSum(stage string) float64 {
	h := tp.stageDurations.peek(stage)
	if h == nil {
		return 0
	}
	_, _, sum := h.snapshot()
	return sum
}

func requestKey(method, route, status string) string {
	return method + "|" + route + "|" + status
}

// MetricsMiddleware records duration, body sizes, and the in-flight request
// gauge for every request.
func (tp *TelemetryProvider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !tp.cfg.metricsOn() {
			return next
		}
		return func(c echo.Context) error {
			start := time.Now()
			tp.gauges.add(gaugeActiveRequests, 1)
			defer tp.gauges.add(gaugeActiveRequests, -1)

			if size := c.Request().ContentLength; size > 0 {
				tp.requestSizes.observe(float64(size))
			}

			err := next(c)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			key := requestKey(c.Request().Method, route, strconv.Itoa(status))
			tp.httpDurations.with(key).observe(time.Since(start).Seconds())
			if size := c.Response().Size; size > 0 {
				tp.responseSizes.observe(float64(size))
			}
			return err
		}
	}
}

// PrometheusHandler serves every instrument in exposition format, plus a
// build info gauge carrying the service identity.
func (tp *TelemetryProvider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		writeHeader(&b, "fhirtab_build_info", "gauge", "Service identity; value is always 1.")
		fmt.Fprintf(&b, "fhirtab_build_info{service=%q,version=%q,environment=%q} 1\n\n",
			tp.cfg.ServiceName, tp.cfg.ServiceVersion, tp.cfg.Environment)

		writeHeader(&b, "fhirtab_http_request_duration_seconds", "histogram", "Duration of HTTP requests in seconds.")
		for _, key := range tp.httpDurations.labels() {
			parts := strings.SplitN(key, "|", 3)
			labels := fmt.Sprintf("method=%q,route=%q,status=%q", parts[0], parts[1], parts[2])
			writeHistogram(&b, "fhirtab_http_request_duration_seconds", labels, tp.httpDurations.with(key))
		}
		b.WriteByte('\n')

		writeHeader(&b, "fhirtab_http_active_requests", "gauge", "In-flight HTTP requests.")
		fmt.Fprintf(&b, "fhirtab_http_active_requests %d\n\n", tp.gauges.get(gaugeActiveRequests))

		writeHeader(&b, "fhirtab_http_request_size_bytes", "histogram", "Size of HTTP request bodies in bytes.")
		writeHistogram(&b, "fhirtab_http_request_size_bytes", "", tp.requestSizes)
		b.WriteByte('\n')

		writeHeader(&b, "fhirtab_http_response_size_bytes", "histogram", "Size of HTTP response bodies in bytes.")
		writeHistogram(&b, "fhirtab_http_response_size_bytes", "", tp.responseSizes)
		b.WriteByte('\n')

		writeHeader(&b, "fhirtab_pipeline_stage_seconds", "histogram", "Duration of pipeline stages in seconds.")
		for _, stage := range tp.stageDurations.labels() {
			writeHistogram(&b, "fhirtab_pipeline_stage_seconds", fmt.Sprintf("stage=%q", stage), tp.stageDurations.with(stage))
		}
		b.WriteByte('\n')

		counters := tp.counters.snapshot()

		writeHeader(&b, "fhirtab_flatten_requests_total", "counter", "Flatten requests by resource type and outcome.")
		for _, key := range sortedKeys(counters) {
			parts := strings.SplitN(key, "|", 3)
			if parts[0] != metricFlattenRequests || len(parts) != 3 {
				continue
			}
			fmt.Fprintf(&b, "fhirtab_flatten_requests_total{resource_type=%q,outcome=%q} %d\n", parts[1], parts[2], counters[key])
		}
		b.WriteByte('\n')

		writeHeader(&b, "fhirtab_flatten_rows_total", "counter", "Rows produced by flattening, by resource type.")
		for _, key := range sortedKeys(counters) {
			parts := strings.SplitN(key, "|", 2)
			if parts[0] != metricFlattenRows || len(parts) != 2 {
				continue
			}
			fmt.Fprintf(&b, "fhirtab_flatten_rows_total{resource_type=%q} %d\n", parts[1], counters[key])
		}
		b.WriteByte('\n')

		writeHeader(&b, "fhirtab_sandbox_dataset_rows", "gauge", "Rows in the last generated sandbox dataset.")
		fmt.Fprintf(&b, "fhirtab_sandbox_dataset_rows %d\n", tp.gauges.get(gaugeSandboxRows))

		return c.String(http.StatusOK, b.String())
	}
}
