// Package telemetry exposes Prometheus metrics for the paste service: HTTP
// request metrics recorded by an Echo middleware, clipboard paste outcomes
// recorded by the medication sheet service, and a /metrics handler backed
// by a private registry.
package telemetry

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TelemetryConfig holds all configuration for the telemetry provider.
type TelemetryConfig struct {
	Namespace      string `json:"namespace"`
	ServiceVersion string `json:"service_version"`
	Environment    string `json:"environment"`
	MetricsEnabled *bool  `json:"metrics_enabled"` // nil = use default (true)
	RuntimeMetrics bool   `json:"runtime_metrics"`
}

// metricsOn returns whether metrics are enabled (defaults to true).
func (c *TelemetryConfig) metricsOn() bool {
	if c.MetricsEnabled == nil {
		return true
	}
	return *c.MetricsEnabled
}

func (c *TelemetryConfig) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "medpaste"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// BoolPtr is a helper to create a *bool for TelemetryConfig fields.
func BoolPtr(b bool) *bool {
	return &b
}

var (
	durationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	entryBuckets    = []float64{0, 1, 2, 5, 10, 20, 50, 100}
)

// TelemetryProvider owns the registry and every collector the service
// records into. A nil provider is valid and records nothing.
type TelemetryProvider struct {
	cfg      TelemetryConfig
	registry *prometheus.Registry

	httpDuration   *prometheus.HistogramVec
	httpActive     prometheus.Gauge
	pasteTotal     *prometheus.CounterVec
	pasteEntries   *prometheus.HistogramVec
	rowsDropped    *prometheus.CounterVec
	sheetSaveTotal *prometheus.CounterVec
}

// NewTelemetryProvider creates the provider and registers its collectors on
// a fresh registry, so several providers can coexist in tests.
func NewTelemetryProvider(cfg TelemetryConfig) *TelemetryProvider {
	cfg.applyDefaults()
	ns := cfg.Namespace

	tp := &TelemetryProvider{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   durationBuckets,
		}, []string{"method", "route", "status"}),
		httpActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "http_active_requests",
			Help:      "Requests currently being served.",
		}),
		pasteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "paste_total",
			Help:      "Clipboard pastes handled, by field kind and resulting action.",
		}, []string{"kind", "action"}),
		pasteEntries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "paste_entries",
			Help:      "Medication entries extracted per paste.",
			Buckets:   entryBuckets,
		}, []string{"kind"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rows_dropped_total",
			Help:      "Pasted rows skipped by the extractors, by reason.",
		}, []string{"kind", "reason"}),
		sheetSaveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "sheet_save_total",
			Help:      "Medication sheet writes, by outcome.",
		}, []string{"outcome"}),
	}

	tp.registry.MustRegister(
		tp.httpDuration,
		tp.httpActive,
		tp.pasteTotal,
		tp.pasteEntries,
		tp.rowsDropped,
		tp.sheetSaveTotal,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "build_info",
			Help:        "Constant 1, labelled with the running version.",
			ConstLabels: prometheus.Labels{"version": cfg.ServiceVersion, "environment": cfg.Environment},
		}, func() float64 { return 1 }),
	)
	if cfg.RuntimeMetrics {
		tp.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: ns}),
		)
	}
	return tp
}

// Registry returns the provider's registry.
func (tp *TelemetryProvider) Registry() *prometheus.Registry {
	return tp.registry
}

func (tp *TelemetryProvider) enabled() bool {
	return tp != nil && tp.cfg.metricsOn()
}

// PasteOutcome is one paste as seen by the metrics layer.
type PasteOutcome struct {
	Kind    string
	Action  string
	Entries int
	Dropped map[string]int
}

// RecordPaste counts a paste and the rows its extractor skipped.
func (tp *TelemetryProvider) RecordPaste(o PasteOutcome) {
	if !tp.enabled() {
		return
	}
	tp.pasteTotal.WithLabelValues(o.Kind, o.Action).Inc()
	tp.pasteEntries.WithLabelValues(o.Kind).Observe(float64(o.Entries))

	reasons := make([]string, 0, len(o.Dropped))
	for r := range o.Dropped {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		if n := o.Dropped[r]; n > 0 {
			tp.rowsDropped.WithLabelValues(o.Kind, r).Add(float64(n))
		}
	}
}

// RecordSheetSave counts a sheet write; err decides the outcome label.
func (tp *TelemetryProvider) RecordSheetSave(err error) {
	if !tp.enabled() {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	tp.sheetSaveTotal.WithLabelValues(outcome).Inc()
}

// MetricsMiddleware returns an Echo middleware that records HTTP server metrics.
func (tp *TelemetryProvider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !tp.enabled() {
				return next(c)
			}

			tp.httpActive.Inc()
			defer tp.httpActive.Dec()
			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
				route := c.Path()
				if route == "" {
					route = "unmatched"
				}
				tp.httpDuration.WithLabelValues(c.Request().Method, route, statusLabel(c)).Observe(v)
			}))

			err := next(c)
			if err != nil {
				// Write the error now so the recorded status is final. Echo
				// skips committed responses, so outer middleware still sees
				// err without a second write.
				c.Error(err)
			}
			timer.ObserveDuration()
			return err
		}
	}
}

func statusLabel(c echo.Context) string {
	return fmt.Sprintf("%d", c.Response().Status)
}

// PrometheusHandler returns an Echo handler that serves the registry in
// Prometheus text exposition format.
func (tp *TelemetryProvider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(tp.Handler())
}

// Handler returns the plain net/http exposition handler.
func (tp *TelemetryProvider) Handler() http.Handler {
	return promhttp.HandlerFor(tp.registry, promhttp.HandlerOpts{})
}
