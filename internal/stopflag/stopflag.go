// Package stopflag provides the single process-wide atomic cancellation
// flag set by the orchestrator's signal handler and polled by every
// phase supervisor (§9: "replace the module-level boolean with a single
// atomic flag owned by the orchestrator and passed by reference into
// each supervisor").
package stopflag

import "sync/atomic"

// Flag is a cancellation flag safe for concurrent use by the three
// parallel-stage track supervisors and the sequential-stage runner.
type Flag struct {
	v atomic.Bool
}

// Set records that a stop has been requested.
func (f *Flag) Set() {
	f.v.Store(true)
}

// IsSet reports whether a stop has been requested.
func (f *Flag) IsSet() bool {
	return f.v.Load()
}
