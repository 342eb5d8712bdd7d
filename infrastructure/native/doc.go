// Package native loads plugin images with the platform's dynamic loader:
// dlopen on unix systems (through purego, without cgo) and LoadLibrary on
// Windows.
//
// A native plugin exports
//
//	size_t exchange_inplace(void *data, size_t capacity, int override);
//	const char *hello(void); // optional
//
// and may also export the copy-out form, where the plugin allocates the
// reply and the host calls release once after copying it:
//
//	struct ret_data { void *data; size_t data_size; void (*release)(void *); };
//	struct ret_data exchange(void *data, size_t size); // optional, amd64 only
//
// Native code runs in the host process. A crash inside the plugin takes
// the host down with it.
package native
