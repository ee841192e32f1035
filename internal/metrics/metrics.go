// Package metrics exposes pipeline and HTTP measurements to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Contact completeness labels for rows_cleaned_total.
const (
	contactFull  = "full"
	contactShort = "short"
	contactEmpty = "empty"
)

// Metrics implements session.Recorder.
//
// Metrics registered:
//   - {ns}_{sub}_files_read_total{result}       - files decoded by result (ok/skipped/failed)
//   - {ns}_{sub}_rows_merged_total              - rows produced by merges
//   - {ns}_{sub}_rows_cleaned_total{contact}    - cleaned rows by contact completeness
//   - {ns}_{sub}_clean_duration_seconds         - clean + encode time
//   - {ns}_{sub}_export_bytes                   - size of produced workbooks
//   - {ns}_http_requests_total{code,method}     - HTTP requests served
//   - {ns}_http_request_duration_seconds{code,method}
type Metrics struct {
	filesRead     *prometheus.CounterVec
	rowsMerged    prometheus.Counter
	rowsCleaned   *prometheus.CounterVec
	cleanDuration prometheus.Histogram
	exportBytes   prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	reg prometheus.Registerer
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return fmt.Errorf("register collector: %w", err)
	}
	return nil
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, namespace, subsystem string) (*Metrics, error) {
	if reg == nil {
		return nil, errors.New("prometheus registerer is nil")
	}

	m := &Metrics{
		filesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "files_read_total", Help: "Uploaded files decoded, by result",
		}, []string{"result"}),

		rowsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "rows_merged_total", Help: "Rows produced by merging uploads",
		}),

		rowsCleaned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "rows_cleaned_total", Help: "Cleaned rows by contact completeness",
		}, []string{"contact"}),

		cleanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "clean_duration_seconds",
			Help:    "Time spent cleaning and encoding a merged table",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		exportBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "export_bytes",
			Help:    "Size of produced workbooks",
			Buckets: prometheus.ExponentialBuckets(4096, 4, 8),
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http",
			Name: "requests_total", Help: "HTTP requests served",
		}, []string{"code", "method"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http",
			Name:    "request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"code", "method"}),

		reg: reg,
	}

	for _, c := range []prometheus.Collector{
		m.filesRead, m.rowsMerged, m.rowsCleaned, m.cleanDuration, m.exportBytes,
		m.httpRequests, m.httpDuration,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// FileRead counts one decoded upload.
func (m *Metrics) FileRead(result string) {
	m.filesRead.WithLabelValues(result).Inc()
}

// Merged counts merged rows.
func (m *Metrics) Merged(rows int) {
	m.rowsMerged.Add(float64(rows))
}

// Cleaned records one cleaning run.
func (m *Metrics) Cleaned(stats core.CleanStats, elapsed time.Duration) {
	m.rowsCleaned.WithLabelValues(contactFull).Add(float64(stats.Full))
	m.rowsCleaned.WithLabelValues(contactShort).Add(float64(stats.Short))
	m.rowsCleaned.WithLabelValues(contactEmpty).Add(float64(stats.Empty))
	m.cleanDuration.Observe(elapsed.Seconds())
}

// Exported records the size of a produced workbook.
func (m *Metrics) Exported(size int) {
	m.exportBytes.Observe(float64(size))
}

// TrackGauge registers a gauge read from fn at scrape time, e.g. the number
// of live sessions or busy upload slots.
func (m *Metrics) TrackGauge(namespace, name, help string, fn func() float64) error {
	return registerCollector(m.reg, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Instrument wraps next with request count and latency collection.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(m.httpDuration,
		promhttp.InstrumentHandlerCounter(m.httpRequests, next))
}

// NewRegistry returns a registry with the standard Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	_ = registerCollector(reg, collectors.NewGoCollector())
	_ = registerCollector(reg, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
