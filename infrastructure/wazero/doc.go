// Package wazero loads WebAssembly plugin images with the wazero runtime.
//
// A wasm plugin mirrors the native exchange contract in 32-bit guest memory:
//
//   - allocate(size i32) -> ptr i32 reserves a region in guest memory
//   - deallocate(ptr i32, size i32) releases it (optional)
//   - exchange_inplace(ptr i32, capacity i32, override i32) -> count i32
//   - hello() -> i64 returns a packed ptr+len string (optional)
//
// The loader copies the caller's region into guest memory before the call.
// In override mode it copies back only the first min(count, capacity) bytes,
// so a plugin can never write past its declared count. In probe mode the
// whole region is copied back so the host can detect writes.
//
// # Basic Usage
//
//	loader, err := wazero.NewLoader(ctx)
//	if err != nil {
//	    return err
//	}
//	h, err := host.New(host.WithLoader(loader))
//
// # Host Functions
//
// Plugins may import log_message(packed i64) from the "dlhost" module. The
// payload is either a JSON object {"level": "...", "message": "..."} or raw
// text, and is forwarded to the loader's logger.
//
// WASI preview 1 is instantiated by default so plugins built with standard
// toolchains load without extra configuration.
package wazero
