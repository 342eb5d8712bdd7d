package ports

// DenialHandler is called when a policy check denies a request.
// Implementations can log, collect metrics, or take other actions.
type DenialHandler interface {
	// OnDenial is called when a request is denied.
	// kind: "path"
	// request: the denied value (for "path", the resolved image path)
	// reason: human-readable denial reason
	OnDenial(kind string, request string, reason string)
}
