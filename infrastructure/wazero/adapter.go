package wazero

import (
	"context"
	"encoding/json"
	"log/slog"

	hostlog "github.com/reglet-dev/dlhost/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// DefaultHostModule is the import module name plugins use for host functions.
const DefaultHostModule = "dlhost"

// DefaultMaxLogSize limits how many bytes of a single guest log message are read.
const DefaultMaxLogSize = 64 * 1024

// registerHostModule instantiates the host module exporting log_message.
func registerHostModule(ctx context.Context, rt wazero.Runtime, cfg loaderConfig) error {
	builder := rt.NewHostModuleBuilder(cfg.hostModule)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			handleLogMessage(ctx, mod, stack, cfg.logger, cfg.maxLogSize)
		}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export("log_message")

	_, err := builder.Instantiate(ctx)
	return err
}

// handleLogMessage reads a packed ptr+len payload from guest memory and logs it.
// The payload is a hostlog.LogMessageWire; anything else is logged raw.
func handleLogMessage(ctx context.Context, mod api.Module, stack []uint64, logger *slog.Logger, maxSize uint32) {
	ptr, length := unpackPtrLen(stack[0])
	image := imageName(ctx, mod)

	if length > maxSize {
		logger.WarnContext(ctx, "wasm: plugin log message too large", "image", image, "size", length, "max", maxSize)
		length = maxSize
	}
	payload, ok := mod.Memory().Read(ptr, length)
	if !ok {
		logger.WarnContext(ctx, "wasm: plugin log message out of bounds", "image", image, "ptr", ptr, "len", length)
		return
	}

	var msg hostlog.LogMessageWire
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Message == "" {
		logger.InfoContext(ctx, "wasm: plugin log (raw)", "image", image, "payload", string(payload))
		return
	}
	attrs := append([]slog.Attr{slog.String("image", image), slog.String("msg", msg.Message)}, msg.SlogAttrs()...)
	logger.LogAttrs(ctx, msg.SlogLevel(), "wasm: plugin log", attrs...)
}

// packPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen unpacks a pointer and length from a packed i64.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length
}
