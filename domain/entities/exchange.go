package entities

import "time"

// ExchangeResult is the host's interpretation of a successful exchange call.
type ExchangeResult struct {
	// Contents aliases the first Count bytes of the caller's region.
	// It is nil in probe mode (Override == false).
	Contents []byte `json:"-"`

	// Reported is the raw count returned by the plugin, before clamping.
	Reported uint64 `json:"reported"`

	// Count is the number of bytes written (override mode, clamped to
	// capacity) or the number of bytes the plugin needs (probe mode).
	Count int `json:"count"`

	// Capacity is the capacity of the buffer used for the call.
	Capacity int `json:"capacity"`

	// Duration is the wall time spent inside the plugin.
	Duration time.Duration `json:"duration"`

	// Override echoes the permission flag the call was made with.
	Override bool `json:"override"`

	// Exact is set when an override call reported exactly Capacity bytes.
	// Such a result is indistinguishable from a truncated write; plugins that
	// care must signal truncation out of band.
	Exact bool `json:"exact,omitempty"`

	// Clamped is set when the plugin reported more than Capacity bytes in
	// override mode and the host limited the result to Capacity.
	Clamped bool `json:"clamped,omitempty"`
}

// Fits reports whether a probe result fits into the capacity it was probed with.
func (r ExchangeResult) Fits() bool {
	return r.Count <= r.Capacity
}

// ExchangeReply is what the host returns to its external collaborator for a
// capacity-only exchange request.
type ExchangeReply struct {
	// Contents is a copy of the written bytes. It is present only when the
	// call used override mode and succeeded.
	Contents []byte `json:"contents,omitempty"`

	// WrittenOrNeeded is the written count in override mode or the needed
	// size in probe mode.
	WrittenOrNeeded int `json:"written_or_needed"`
}
