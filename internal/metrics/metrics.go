// SPDX-License-Identifier: MIT
// Package metrics exposes processor activity as Prometheus metrics.
package metrics

import (
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pcgmon/internal/log"
	"pcgmon/internal/processor"
)

const namespace = "pcgmon"

// Metrics collects processor events. It implements processor.Observer and
// prometheus.Collector, and is registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted *prometheus.CounterVec
	sessionsEnded   *prometheus.CounterVec
	sessionActive   *prometheus.GaugeVec
	batchesTotal    *prometheus.CounterVec
	samplesTotal    *prometheus.CounterVec
	batchSize       *prometheus.HistogramVec
	bufferSamples   prometheus.Gauge
	peaks           prometheus.Gauge
	bpm             prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Processing sessions started.",
		}, []string{"mode"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Processing sessions ended, by outcome.",
		}, []string{"mode", "status"}), // status: ok, error
		sessionActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_active",
			Help:      "1 while a session of the given mode is running.",
		}, []string{"mode"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_processed_total",
			Help:      "Batches run through peak detection.",
		}, []string{"mode"}),
		samplesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_processed_total",
			Help:      "Samples run through peak detection.",
		}, []string{"mode"}),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_samples",
			Help:      "Samples per processed batch.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 12), // 64 to 131072
		}, []string{"mode"}),
		bufferSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_samples",
			Help:      "Samples accumulated in the current session.",
		}),
		peaks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peaks",
			Help:      "Peaks detected in the current session.",
		}),
		bpm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heart_rate_bpm",
			Help:      "Latest heart-rate estimate in beats per minute.",
		}),
	}

	if err := m.registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sessionsStarted, m.sessionsEnded, m.sessionActive,
		m.batchesTotal, m.samplesTotal, m.batchSize,
		m.bufferSamples, m.peaks, m.bpm,
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) SessionStarted(mode string) {
	m.sessionsStarted.WithLabelValues(mode).Inc()
	m.sessionActive.WithLabelValues(mode).Set(1)
	m.bufferSamples.Set(0)
	m.peaks.Set(0)
	m.bpm.Set(0)
}

func (m *Metrics) BatchProcessed(mode string, batchSamples, totalSamples, totalPeaks int, bpm float64) {
	m.batchesTotal.WithLabelValues(mode).Inc()
	m.samplesTotal.WithLabelValues(mode).Add(float64(batchSamples))
	m.batchSize.WithLabelValues(mode).Observe(float64(batchSamples))
	m.bufferSamples.Set(float64(totalSamples))
	m.peaks.Set(float64(totalPeaks))
	m.bpm.Set(bpm)
}

func (m *Metrics) SessionEnded(mode string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.sessionsEnded.WithLabelValues(mode, status).Inc()
	m.sessionActive.WithLabelValues(mode).Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(log.Writer(), "metrics handler: ", 0),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RegisterHandlers registers /metrics on mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}

// Serve binds addr and serves /metrics in the background. The returned
// server is shut down by the caller.
func (m *Metrics) Serve(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	m.RegisterHandlers(mux)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Infof("Metrics: serving http://%s/metrics", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics: server error: %v", err)
		}
	}()
	return srv, nil
}

var _ processor.Observer = (*Metrics)(nil)
