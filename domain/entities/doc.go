// Package entities provides the core domain types of the plugin host.
// They carry no behavior that touches foreign code; the host package owns
// every value that refers to a loaded image.
package entities
