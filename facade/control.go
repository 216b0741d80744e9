// File: facade/control.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime control surface over the reactor pool.

package facade

import (
	"fmt"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/control"
)

// Control builds the runtime control surface for this interface. Only
// the threadLoadFactor setting is applied live. SetConfig on any other
// key is accepted and stored in the reported snapshot, but does not
// change the interface.
func (i *Interface) Control() api.Control {
	s := control.NewSurface(map[string]any{
		"metricName":           i.cfg.MetricName,
		"minThreads":           i.cfg.MinThreads,
		"maxThreads":           i.cfg.MaxThreads,
		"maxEventsPerWait":     i.cfg.MaxEventsPerWait,
		"maxTimersPerWait":     i.cfg.MaxTimersPerWait,
		"maxCyclesPerWait":     i.cfg.MaxCyclesPerWait,
		"autoAttach":           i.cfg.AutoAttach,
		"autoDetach":           i.cfg.AutoDetach,
		"oneShot":              i.cfg.resolvedOneShot(),
		"trigger":              i.cfg.Trigger.String(),
		"threadLoadFactor":     i.cfg.ThreadLoadFactor,
		"dynamicLoadBalancing": i.cfg.DynamicLoadBalancing,
		"maxConnections":       i.cfg.MaxConnections,
	}, i.applyConfig)

	s.Metrics().AddProvider(func(out map[string]any) {
		reactors := i.Reactors()
		out["numThreads"] = i.NumThreads()
		out["numReactors"] = len(reactors)
		for idx, r := range reactors {
			st := r.Stats()
			out[statsKey(idx, "load")] = r.Load()
			out[statsKey(idx, "sockets")] = r.NumSockets()
			out[statsKey(idx, "polls")] = st.Polls
			out[statsKey(idx, "events")] = st.Events
			out[statsKey(idx, "timeouts")] = st.Timeouts
			out[statsKey(idx, "pollErrors")] = st.PollErrors
			out[statsKey(idx, "detaches")] = st.Detaches
		}
	})
	return s
}

// applyConfig merges live-updatable settings.
func (i *Interface) applyConfig(cfg map[string]any) error {
	if v, ok := cfg["threadLoadFactor"]; ok {
		n, ok := v.(int)
		if !ok || n <= 0 {
			return api.NewError(api.ErrCodeInvalid, "threadLoadFactor must be a positive integer")
		}
		i.mu.Lock()
		i.cfg.ThreadLoadFactor = n
		i.mu.Unlock()
	}
	return nil
}

// statsKey names a per-reactor counter.
func statsKey(index int, name string) string {
	return fmt.Sprintf("reactor-%d.%s", index, name)
}
