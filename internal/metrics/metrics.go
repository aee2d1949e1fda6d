// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes an optional Prometheus endpoint for the
// analyzer CLI, gated by --metrics-addr (SPEC_FULL.md's additive flag).
package metrics

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The collectors below are registered at init and served by Serve. No code
// in this module updates them, so they report zero.
var (
	once sync.Once

	FilesParsed   prometheus.Counter
	FilesFailed   prometheus.Counter
	MethodsIndexed prometheus.Counter
	TracesRun     prometheus.Counter
	TraceDuration prometheus.Histogram
)

func init() {
	once.Do(func() {
		FilesParsed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cia_files_parsed_total", Help: "Source files successfully parsed during indexing",
		})
		FilesFailed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cia_files_failed_total", Help: "Source files that failed to parse during indexing",
		})
		MethodsIndexed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cia_methods_indexed_total", Help: "Methods added to the code index",
		})
		TracesRun = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cia_traces_run_total", Help: "Impact traces executed",
		})
		TraceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cia_trace_duration_seconds",
			Help:    "Duration of trace_impact runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})
		prometheus.MustRegister(FilesParsed, FilesFailed, MethodsIndexed, TracesRun, TraceDuration)
	})
}

// Serve starts the /metrics HTTP endpoint at addr in a background
// goroutine. It never blocks the caller; failures are logged, not
// returned, since the metrics endpoint is an optional side-channel
// (SPEC_FULL.md ambient stack: metrics is never on the critical path).
func Serve(addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()
}
