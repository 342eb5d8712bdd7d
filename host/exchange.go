package host

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"time"

	"github.com/reglet-dev/dlhost/domain/entities"
	"github.com/reglet-dev/dlhost/domain/errors"
)

// invokeExchange is the innermost exchange handler: it makes the foreign
// call and interprets the returned count.
//
// In override mode the plugin writes into the caller's region directly. In
// probe mode it gets a shadow copy, so the caller's bytes survive a plugin
// that ignores the read-only contract.
func invokeExchange(ctx context.Context, sym ResolvedSymbol, buf *entities.ExchangeBuffer) (entities.ExchangeResult, error) {
	region := buf.Region()
	capacity := len(region)
	override := buf.Override()

	target := region
	if !override {
		target = slices.Clone(region)
	}

	var pinner runtime.Pinner
	pinner.Pin(&target[0])
	defer pinner.Unpin()

	start := time.Now()
	reported, err := sym.exchange.Exchange(ctx, target, override)
	elapsed := time.Since(start)

	res := entities.ExchangeResult{
		Reported: reported,
		Capacity: capacity,
		Duration: elapsed,
		Override: override,
	}
	if err != nil {
		return res, fmt.Errorf("call %s: %w", sym.name, err)
	}

	if reported == 0 {
		return res, &errors.ExchangeDeclinedError{Symbol: sym.name, Capacity: capacity, Override: override}
	}

	if !override {
		res.Count = int(min(reported, uint64(math.MaxInt)))
		if !bytes.Equal(target, region) {
			return res, &errors.ProtocolViolationError{
				Result:   res,
				Symbol:   sym.name,
				Reason:   errors.ViolationProbeMutated,
				Reported: reported,
				Capacity: capacity,
			}
		}
		return res, nil
	}

	if reported > uint64(capacity) {
		res.Count = capacity
		res.Clamped = true
		res.Contents = region[:capacity]
		_ = buf.SetUsed(capacity)
		return res, &errors.ProtocolViolationError{
			Result:   res,
			Symbol:   sym.name,
			Reason:   errors.ViolationOverCapacity,
			Reported: reported,
			Capacity: capacity,
		}
	}

	res.Count = int(reported)
	res.Exact = res.Count == capacity
	res.Contents = region[:res.Count]
	_ = buf.SetUsed(res.Count)
	return res, nil
}

// copyOut makes the copy-out call. It mirrors the recovery and logging the
// exchange middleware gives exchange calls.
func (h *Host) copyOut(ctx context.Context, sym ResolvedSymbol, input []byte) (reply []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("copy out through %s panicked: %v", sym.name, r)
		}
	}()

	start := time.Now()
	reply, size, err := sym.copyOut.CopyOut(ctx, input, h.maxCapacity)
	attrs := []any{
		"symbol", sym.name,
		"generation", sym.generation,
		"input", len(input),
		"reported", size,
		"duration", time.Since(start),
	}

	switch {
	case err != nil:
		err = fmt.Errorf("call %s: %w", sym.name, err)
		h.logger.ErrorContext(ctx, "Host: copy out failed", append(attrs, "error", err)...)
		return nil, err
	case size > uint64(h.maxCapacity):
		err = &errors.ProtocolViolationError{
			Symbol:   sym.name,
			Reason:   errors.ViolationReplyTooLarge,
			Reported: size,
			Capacity: h.maxCapacity,
		}
		h.logger.WarnContext(ctx, "Host: plugin violated the exchange protocol", append(attrs, "error", err)...)
		return nil, err
	case reply == nil:
		h.logger.DebugContext(ctx, "Host: copy out declined", attrs...)
		return nil, &errors.ExchangeDeclinedError{Symbol: sym.name, Capacity: len(input)}
	}
	h.logger.DebugContext(ctx, "Host: copy out completed", attrs...)
	return reply, nil
}
