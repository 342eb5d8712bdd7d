package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/reglet-dev/dlhost/application/config"
	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/ports"
	"github.com/reglet-dev/dlhost/host"
	"github.com/reglet-dev/dlhost/infrastructure/metrics"
	"github.com/reglet-dev/dlhost/infrastructure/telemetry"
	"go.opentelemetry.io/otel"
)

const instrumentationName = "github.com/reglet-dev/dlhost"

// app carries what every command shares: the loaded configuration and the
// logger built from it.
type app struct {
	cfg    *entities.HostConfig
	logger *slog.Logger
	level  *slog.LevelVar
	out    io.Writer
	errOut io.Writer

	// hostOptions are applied after the options built from cfg. Tests use
	// them to swap in a fake loader.
	hostOptions []host.Option
}

// runtime is a host wired to its metrics.
type runtime struct {
	host      *host.Host
	collector *metrics.Collector
}

// newRuntime builds a host from the configuration with the prometheus
// collector, the OpenTelemetry meter recorder and exchange spans installed.
// The recorders hold no resources, so they are built before the loader.
func (a *app) newRuntime(ctx context.Context) (*runtime, error) {
	meterRec, err := telemetry.NewMeterRecorder(otel.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	collector := metrics.NewCollector()

	opts := append([]host.Option{
		host.WithRecorder(ports.MultiRecorder{collector, meterRec}),
		host.WithMiddleware(telemetry.Middleware(otel.Tracer(instrumentationName))),
	}, a.hostOptions...)

	h, err := config.NewHost(ctx, a.cfg, a.logger, opts...)
	if err != nil {
		return nil, err
	}
	return &runtime{host: h, collector: collector}, nil
}

// serve starts the metrics and health endpoint when an address is
// configured. The returned function is never nil.
func (a *app) serve(ctx context.Context, rt *runtime) (func(), error) {
	if a.cfg.Metrics.Addr == "" {
		return func() {}, nil
	}
	handler := newObservabilityHandler(newRegistry(rt.collector), rt.host)
	return serveObservability(ctx, a.cfg.Metrics.Addr, handler, a.logger)
}
