package ports

import "time"

// Recorder observes lifecycle and exchange outcomes. The host calls it while
// holding its slot lock, so implementations must not call back into the host.
type Recorder interface {
	RecordLoad(backend string, generation uint64, err error)
	RecordUnload(generation uint64)
	RecordExchange(override bool, elapsed time.Duration, err error)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordLoad(string, uint64, error)          {}
func (NopRecorder) RecordUnload(uint64)                       {}
func (NopRecorder) RecordExchange(bool, time.Duration, error) {}

// MultiRecorder fans every observation out to each recorder in order.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordLoad(backend string, generation uint64, err error) {
	for _, r := range m {
		r.RecordLoad(backend, generation, err)
	}
}

func (m MultiRecorder) RecordUnload(generation uint64) {
	for _, r := range m {
		r.RecordUnload(generation)
	}
}

func (m MultiRecorder) RecordExchange(override bool, elapsed time.Duration, err error) {
	for _, r := range m {
		r.RecordExchange(override, elapsed, err)
	}
}
