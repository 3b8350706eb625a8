// Package metrics records run outcomes in a private Prometheus registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"DealsScanner/internal/domain"
)

const namespace = "dealsscanner"

// Recorder owns the registry and every collector the bot exports.
type Recorder struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	candidates     *prometheus.CounterVec
	ledgerEntries  prometheus.Gauge
	lastRun        prometheus.Gauge
	lastRunSeconds prometheus.Gauge
	throttled      *prometheus.CounterVec
}

// NewRecorder registers collectors in a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Identifiers seen at each pipeline stage.",
		}, []string{"stage"}),
		ledgerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_entries",
			Help:      "Identifiers currently suppressed by the ledger.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		lastRunSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttled_total",
			Help:      "Rate limit responses by upstream.",
		}, []string{"upstream"}),
	}

	r.registry.MustRegister(r.runs, r.candidates, r.ledgerEntries, r.lastRun, r.lastRunSeconds, r.throttled)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRun folds a finished run into the collectors.
func (r *Recorder) ObserveRun(summary domain.RunSummary, runErr error) {
	outcome := "success"
	switch {
	case runErr != nil:
		outcome = "error"
	case summary.Failed > 0:
		outcome = "partial"
	}
	r.runs.WithLabelValues(outcome).Inc()

	stages := []struct {
		name  string
		count int
	}{
		{"discovered", summary.Discovered},
		{"filtered", summary.Filtered},
		{"truncated", summary.Truncated},
		{"requested", summary.Requested},
		{"enriched", summary.Enriched},
		{"discarded", summary.Discarded},
		{"sent", summary.Sent},
		{"failed", summary.Failed},
	}
	for _, s := range stages {
		r.candidates.WithLabelValues(s.name).Add(float64(s.count))
	}

	r.ledgerEntries.Set(float64(summary.LedgerSize))
	if !summary.FinishedAt.IsZero() {
		r.lastRun.Set(float64(summary.FinishedAt.Unix()))
	}
	r.lastRunSeconds.Set(summary.Duration().Seconds())
}

// Throttled counts one rate limit signal from upstream ("catalog" or "telegram").
func (r *Recorder) Throttled(upstream string) {
	r.throttled.WithLabelValues(upstream).Inc()
}

// WriteTextfile dumps the registry for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
