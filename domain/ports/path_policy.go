package ports

// PathPolicy decides whether an image path may be loaded.
type PathPolicy interface {
	// Resolve reports whether path may be opened. The returned path is
	// the one the decision was made on; loaders must open that one, not
	// the original.
	Resolve(path string) (string, bool)
}
