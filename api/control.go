// File: api/control.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime configuration, statistics and debug contract.

package api

// Control exposes configuration, live metrics and debug probes.
type Control interface {
	// GetConfig returns a snapshot of all configuration settings.
	GetConfig() map[string]any

	// SetConfig atomically merges configuration settings, dispatching
	// reload listeners.
	SetConfig(cfg map[string]any) error

	// Stats returns current aggregated runtime metrics.
	Stats() map[string]any

	// OnReload registers a callback for configuration updates.
	OnReload(fn func())

	// RegisterDebugProbe registers a named probe included in stats
	// snapshots.
	RegisterDebugProbe(name string, fn func() any)
}
