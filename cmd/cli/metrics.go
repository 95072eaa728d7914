package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
)

const metricsShutdownTimeout = 2 * time.Second

// maybeServeMetrics starts a Prometheus /metrics listener when enabled in
// the configuration. The returned function shuts it down.
func maybeServeMetrics(cfg *config.Config) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		metrics.GetGlobalMetrics().GetRegistry(),
		promhttp.HandlerOpts{},
	))
	server := &http.Server{
		Addr:              cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn("metrics listener stopped", "addr", cfg.Metrics.ListenAddr, "error", err)
		}
	}()
	logging.Debug("serving metrics", "addr", cfg.Metrics.ListenAddr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
