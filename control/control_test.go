// File: control/control_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigStoreSnapshotAndMerge(t *testing.T) {
	cs := NewConfigStore(map[string]any{"a": 1})
	snap := cs.GetSnapshot()
	require.Equal(t, 1, snap["a"])

	// Snapshots are copies.
	snap["a"] = 99
	require.Equal(t, 1, cs.GetSnapshot()["a"])

	reloads := 0
	cs.OnReload(func() { reloads++ })
	cs.SetConfig(map[string]any{"a": 2, "b": "x"})
	require.Equal(t, 2, cs.GetSnapshot()["a"])
	require.Equal(t, "x", cs.GetSnapshot()["b"])
	require.Equal(t, 1, reloads)
}

func TestMetricsRegistry(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set("static", 7)
	mr.AddProvider(func(out map[string]any) { out["live"] = 42 })
	mr.RegisterDebugProbe("probe", func() any { return "ok" })

	snap := mr.GetSnapshot()
	require.Equal(t, 7, snap["static"])
	require.Equal(t, 42, snap["live"])
	require.Equal(t, "ok", snap["probe"])
}

func TestSurfaceApplyReceivesMergedConfig(t *testing.T) {
	applied := map[string]any{}
	s := NewSurface(map[string]any{"knob": 1}, func(cfg map[string]any) error {
		for k, v := range cfg {
			applied[k] = v
		}
		return nil
	})

	require.NoError(t, s.SetConfig(map[string]any{"knob": 5}))
	require.Equal(t, 5, applied["knob"])
	require.Equal(t, 5, s.GetConfig()["knob"])
}
