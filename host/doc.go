// Package host is the dynamic plugin host.
//
// A Host owns a single plugin slot. Load opens a plugin image through a
// ports.ImageLoader, resolves its entry points into a generation-tagged
// symbol table and installs it in the slot. Exchange hands a caller-owned,
// fixed-capacity buffer to the plugin's exchange entry point and interprets
// the returned count. Unload releases the image and invalidates every symbol
// resolved from it.
//
// All operations are serialized by one lock. An exchange holds the lock for
// the whole foreign call, so an image can never be released underneath a
// running plugin.
package host
