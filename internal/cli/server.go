package cli

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reglet-dev/dlhost/domain/entities"
)

const maxGoroutines = 1000

// stater reports the host state for the readiness check.
type stater interface {
	State() entities.State
}

// newObservabilityHandler serves /metrics from reg and the /live and /ready
// health checks. Ready means a plugin is loaded.
func newObservabilityHandler(reg *prometheus.Registry, h stater) http.Handler {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(maxGoroutines))
	health.AddReadinessCheck("plugin-loaded", func() error {
		if st := h.State(); st != entities.StateLoaded {
			return fmt.Errorf("plugin slot is %s", st)
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/live", health)
	mux.Handle("/ready", health)
	return mux
}

// newRegistry registers the host collector next to the Go and process
// collectors.
func newRegistry(c prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serveObservability listens on addr until ctx is done. The returned
// function stops the server.
func serveObservability(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			logger.Error("Host: metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("Host: serving metrics and health checks", "addr", ln.Addr().String())

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return stop, nil
}
