package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/domain/ports"
)

// ExchangeHandler performs one exchange through a resolved symbol.
type ExchangeHandler func(ctx context.Context, sym ResolvedSymbol, buf *entities.ExchangeBuffer) (entities.ExchangeResult, error)

// Middleware wraps an ExchangeHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
//
// Example usage:
//
//	timing := func(next host.ExchangeHandler) host.ExchangeHandler {
//	    return func(ctx context.Context, sym host.ResolvedSymbol, buf *entities.ExchangeBuffer) (entities.ExchangeResult, error) {
//	        res, err := next(ctx, sym, buf)
//	        fmt.Println(sym.Name(), res.Duration)
//	        return res, err
//	    }
//	}
type Middleware func(next ExchangeHandler) ExchangeHandler

// chain wraps h so that mw[0] is the outermost layer.
func chain(h ExchangeHandler, mw ...Middleware) ExchangeHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// PanicRecoveryMiddleware converts a Go panic raised below it (for example
// by a backend) into an error. Faults inside native code cannot be recovered.
func PanicRecoveryMiddleware() Middleware {
	return func(next ExchangeHandler) ExchangeHandler {
		return func(ctx context.Context, sym ResolvedSymbol, buf *entities.ExchangeBuffer) (res entities.ExchangeResult, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("exchange through %s panicked: %v", sym.name, r)
				}
			}()
			return next(ctx, sym, buf)
		}
	}
}

// LoggingMiddleware logs every exchange at debug level and protocol
// violations at warn level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ExchangeHandler) ExchangeHandler {
		return func(ctx context.Context, sym ResolvedSymbol, buf *entities.ExchangeBuffer) (entities.ExchangeResult, error) {
			res, err := next(ctx, sym, buf)
			attrs := []any{
				"symbol", sym.name,
				"generation", sym.generation,
				"override", res.Override,
				"capacity", res.Capacity,
				"reported", res.Reported,
				"duration", res.Duration,
			}
			switch errors.KindOf(err) {
			case errors.KindNone:
				logger.DebugContext(ctx, "Host: exchange completed", append(attrs, "count", res.Count, "exact", res.Exact)...)
			case errors.KindExchangeDeclined:
				logger.DebugContext(ctx, "Host: exchange declined", attrs...)
			case errors.KindProtocolViolation:
				logger.WarnContext(ctx, "Host: plugin violated the exchange protocol", append(attrs, "error", err)...)
			default:
				logger.ErrorContext(ctx, "Host: exchange failed", append(attrs, "error", err)...)
			}
			return res, err
		}
	}
}

// RecorderMiddleware reports every exchange to rec.
func RecorderMiddleware(rec ports.Recorder) Middleware {
	return func(next ExchangeHandler) ExchangeHandler {
		return func(ctx context.Context, sym ResolvedSymbol, buf *entities.ExchangeBuffer) (entities.ExchangeResult, error) {
			res, err := next(ctx, sym, buf)
			rec.RecordExchange(buf.Override(), res.Duration, err)
			return res, err
		}
	}
}
