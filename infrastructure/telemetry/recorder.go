package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/domain/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterRecorder implements ports.Recorder with OpenTelemetry instruments.
type MeterRecorder struct {
	loads      metric.Int64Counter
	unloads    metric.Int64Counter
	exchanges  metric.Int64Counter
	latency    metric.Float64Histogram
	generation atomic.Int64
	loaded     atomic.Int64
}

var _ ports.Recorder = (*MeterRecorder)(nil)

// NewMeterRecorder creates the instruments on meter.
func NewMeterRecorder(meter metric.Meter) (*MeterRecorder, error) {
	r := &MeterRecorder{}
	var err error

	if r.loads, err = meter.Int64Counter("dlhost.loads",
		metric.WithDescription("Plugin load attempts by backend and outcome.")); err != nil {
		return nil, err
	}
	if r.unloads, err = meter.Int64Counter("dlhost.unloads",
		metric.WithDescription("Plugins unloaded.")); err != nil {
		return nil, err
	}
	if r.exchanges, err = meter.Int64Counter("dlhost.exchanges",
		metric.WithDescription("Buffer exchanges by mode and outcome.")); err != nil {
		return nil, err
	}
	if r.latency, err = meter.Float64Histogram("dlhost.exchange.duration",
		metric.WithDescription("Duration of the foreign exchange call."),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if _, err = meter.Int64ObservableGauge("dlhost.generation",
		metric.WithDescription("Current generation of the plugin slot."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(r.generation.Load())
			return nil
		})); err != nil {
		return nil, err
	}
	if _, err = meter.Int64ObservableGauge("dlhost.plugin.loaded",
		metric.WithDescription("1 while a plugin is loaded."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(r.loaded.Load())
			return nil
		})); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordLoad implements ports.Recorder.
func (r *MeterRecorder) RecordLoad(backend string, generation uint64, err error) {
	r.loads.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome(err)),
	))
	if err == nil {
		r.generation.Store(int64(generation)) //nolint:gosec // G115: generations stay far below 2^63
		r.loaded.Store(1)
	}
}

// RecordUnload implements ports.Recorder.
func (r *MeterRecorder) RecordUnload(generation uint64) {
	r.unloads.Add(context.Background(), 1)
	r.generation.Store(int64(generation)) //nolint:gosec // G115: generations stay far below 2^63
	r.loaded.Store(0)
}

// RecordExchange implements ports.Recorder.
func (r *MeterRecorder) RecordExchange(override bool, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode(override)),
		attribute.String("outcome", outcome(err)),
	)
	r.exchanges.Add(context.Background(), 1, attrs)
	if elapsed > 0 {
		r.latency.Record(context.Background(), elapsed.Seconds(), metric.WithAttributes(attribute.String("mode", mode(override))))
	}
}

func mode(override bool) string {
	if override {
		return "override"
	}
	return "probe"
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(errors.KindOf(err))
}
