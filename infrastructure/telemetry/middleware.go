// Package telemetry instruments the plugin host with OpenTelemetry: spans
// around exchanges and metric instruments fed by the host recorder.
package telemetry

import (
	"context"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/host"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanName is the name of the span started for every exchange.
const SpanName = "dlhost.exchange"

// Middleware starts one span per exchange. Declined exchanges are recorded
// as events, not errors.
func Middleware(tracer trace.Tracer) host.Middleware {
	return func(next host.ExchangeHandler) host.ExchangeHandler {
		return func(ctx context.Context, sym host.ResolvedSymbol, buf *entities.ExchangeBuffer) (entities.ExchangeResult, error) {
			ctx, span := tracer.Start(ctx, SpanName,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("dlhost.symbol", sym.Name()),
					attribute.Int64("dlhost.generation", int64(sym.Generation())), //nolint:gosec // G115: generations stay far below 2^63
					attribute.Bool("dlhost.override", buf.Override()),
					attribute.Int("dlhost.capacity", buf.Capacity()),
				),
			)
			defer span.End()

			res, err := next(ctx, sym, buf)
			span.SetAttributes(attribute.Int("dlhost.count", res.Count))
			if res.Exact {
				span.SetAttributes(attribute.Bool("dlhost.exact", true))
			}

			switch kind := errors.KindOf(err); kind {
			case errors.KindNone:
				span.SetStatus(codes.Ok, "")
			case errors.KindExchangeDeclined:
				span.AddEvent("declined")
			default:
				span.RecordError(err)
				span.SetStatus(codes.Error, string(kind))
			}
			return res, err
		}
	}
}
