// File: control/surface.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Surface glues the config store and metrics registry into the
// api.Control contract.

package control

import (
	"github.com/momentics/hioload-reactor/api"
)

// Surface implements api.Control.
type Surface struct {
	config  *ConfigStore
	metrics *MetricsRegistry
	apply   func(cfg map[string]any) error
}

var _ api.Control = (*Surface)(nil)

// NewSurface creates a control surface seeded with the initial
// configuration. apply, when non-nil, is invoked with each SetConfig
// merge before listeners run.
func NewSurface(initial map[string]any, apply func(cfg map[string]any) error) *Surface {
	return &Surface{
		config:  NewConfigStore(initial),
		metrics: NewMetricsRegistry(),
		apply:   apply,
	}
}

// Metrics returns the underlying registry for provider registration.
func (s *Surface) Metrics() *MetricsRegistry { return s.metrics }

// GetConfig returns a snapshot of all configuration settings.
func (s *Surface) GetConfig() map[string]any { return s.config.GetSnapshot() }

// SetConfig merges settings, applies them and dispatches listeners.
func (s *Surface) SetConfig(cfg map[string]any) error {
	if s.apply != nil {
		if err := s.apply(cfg); err != nil {
			return err
		}
	}
	s.config.SetConfig(cfg)
	return nil
}

// Stats returns the current metrics snapshot.
func (s *Surface) Stats() map[string]any { return s.metrics.GetSnapshot() }

// OnReload registers a configuration listener.
func (s *Surface) OnReload(fn func()) { s.config.OnReload(fn) }

// RegisterDebugProbe registers a named probe included in stats.
func (s *Surface) RegisterDebugProbe(name string, fn func() any) {
	s.metrics.RegisterDebugProbe(name, fn)
}
