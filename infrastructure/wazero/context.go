package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var imagePathKey = &contextKey{name: "image_path"}

// withImagePath adds the image path to the context so host functions can
// attribute guest calls.
func withImagePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, imagePathKey, path)
}

// ImagePathFromContext retrieves the image path set for a guest call.
func ImagePathFromContext(ctx context.Context) (string, bool) {
	path, ok := ctx.Value(imagePathKey).(string)
	return path, ok
}

// imageName extracts the image path from context, falling back to the module name.
func imageName(ctx context.Context, mod api.Module) string {
	if path, ok := ImagePathFromContext(ctx); ok {
		return path
	}
	return mod.Name()
}
