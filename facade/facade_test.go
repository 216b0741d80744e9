// File: facade/facade_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/fake"
)

// fakeDeviceConfig returns a config driven by fake polling devices so
// the pool runs without OS support.
func fakeDeviceConfig() *Config {
	cfg := DefaultConfig()
	cfg.DeviceFactory = func() (api.PollDevice, error) { return fake.NewDevice(), nil }
	return cfg
}

func startInterface(t *testing.T, cfg *Config) *Interface {
	t.Helper()
	i, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, i.Start())
	t.Cleanup(func() {
		i.Shutdown()
		i.Linger()
	})
	return i
}

func TestConfigSanitization(t *testing.T) {
	cfg := fakeDeviceConfig()
	cfg.MinThreads = 0
	cfg.MaxThreads = 0
	i, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, 1, i.Config().MinThreads)
	require.Equal(t, 1, i.Config().MaxThreads)
	require.NotEmpty(t, i.Config().MetricName)
	require.Equal(t, DefaultThreadLoadFactor, i.Config().ThreadLoadFactor)

	bad := fakeDeviceConfig()
	bad.MaxConnections = -1
	_, err = New(bad)
	require.Equal(t, api.ErrCodeInvalid, api.CodeOf(err))
}

func TestOneShotPolicyResolution(t *testing.T) {
	cfg := fakeDeviceConfig()
	cfg.MinThreads = 1
	cfg.MaxThreads = 1
	require.False(t, cfg.resolvedOneShot(), "single thread defaults one-shot off")

	cfg.MaxThreads = 4
	require.True(t, cfg.resolvedOneShot(), "multiple threads default one-shot on")

	cfg.OneShot = OneShotDisabled
	require.False(t, cfg.resolvedOneShot())
	cfg.OneShot = OneShotEnabled
	cfg.MaxThreads = 1
	require.True(t, cfg.resolvedOneShot())
}

func TestStartSpawnsMinThreadsAndIsNotReentrant(t *testing.T) {
	cfg := fakeDeviceConfig()
	cfg.MinThreads = 2
	cfg.MaxThreads = 4
	i := startInterface(t, cfg)

	require.Equal(t, 2, i.NumThreads())
	require.Equal(t, 2, i.NumReactors())

	err := i.Start()
	require.Equal(t, api.ErrCodeInvalid, api.CodeOf(err))
}

func TestShutdownLingerRestart(t *testing.T) {
	cfg := fakeDeviceConfig()
	i, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, i.Start())

	i.Shutdown()
	i.Linger()
	require.Equal(t, 0, i.NumThreads())

	// The interface is restartable after linger.
	require.NoError(t, i.Start())
	i.Shutdown()
	i.Linger()
}

type failingResolver struct {
	startErr error
	stopped  bool
}

func (r *failingResolver) Start() error { return r.startErr }
func (r *failingResolver) Stop() error  { r.stopped = true; return nil }

func TestResolverLifecycle(t *testing.T) {
	res := &failingResolver{}
	cfg := fakeDeviceConfig()
	cfg.Resolver = res
	i := startInterface(t, cfg)
	i.Shutdown()
	require.True(t, res.stopped)

	bad := fakeDeviceConfig()
	bad.Resolver = &failingResolver{startErr: api.NewError(api.ErrCodeInternal, "no resolver")}
	j, err := New(bad)
	require.NoError(t, err)
	require.Error(t, j.Start())
	require.Equal(t, 0, j.NumThreads())
}

func TestAcquireByThreadHandleIsStable(t *testing.T) {
	// Property 7: a known thread handle always routes to the same
	// reactor.
	cfg := fakeDeviceConfig()
	cfg.MinThreads = 3
	cfg.MaxThreads = 3
	i := startInterface(t, cfg)

	handle, ok := i.ThreadHandleAt(1)
	require.True(t, ok)

	first, err := i.AcquireReactor(LoadBalancingOptions{ThreadHandle: &handle})
	require.NoError(t, err)
	for n := 0; n < 10; n++ {
		r, err := i.AcquireReactor(LoadBalancingOptions{ThreadHandle: &handle})
		require.NoError(t, err)
		require.Same(t, first, r)
	}
}

func TestAcquireByThreadIndexWrapsModulo(t *testing.T) {
	cfg := fakeDeviceConfig()
	cfg.MinThreads = 2
	cfg.MaxThreads = 2
	i := startInterface(t, cfg)

	idx := 0
	r0, err := i.AcquireReactor(LoadBalancingOptions{ThreadIndex: &idx})
	require.NoError(t, err)
	wrapped := 2
	r2, err := i.AcquireReactor(LoadBalancingOptions{ThreadIndex: &wrapped})
	require.NoError(t, err)
	require.Same(t, r0, r2)
}

func TestLeastLoadRoutingExpandsPool(t *testing.T) {
	// Scenario S4 shape: the pool expands while acquires push the
	// minimum load to the threshold, then routes to existing reactors.
	cfg := fakeDeviceConfig()
	cfg.MinThreads = 1
	cfg.MaxThreads = 4
	cfg.ThreadLoadFactor = 1
	i := startInterface(t, cfg)

	for n := 0; n < 5; n++ {
		_, err := i.AcquireReactor(LoadBalancingOptions{Weight: 1})
		require.NoError(t, err)
	}

	require.Equal(t, 4, i.NumThreads(), "pool expands to maxThreads")
	total := 0
	for _, r := range i.Reactors() {
		total += r.Load()
	}
	require.Equal(t, 5, total, "every acquire contributed its weight")
}

func TestLeastLoadPrefersIdleReactor(t *testing.T) {
	cfg := fakeDeviceConfig()
	cfg.MinThreads = 2
	cfg.MaxThreads = 2
	cfg.ThreadLoadFactor = 100
	i := startInterface(t, cfg)

	r1, err := i.AcquireReactor(LoadBalancingOptions{Weight: 3})
	require.NoError(t, err)
	r2, err := i.AcquireReactor(LoadBalancingOptions{Weight: 1})
	require.NoError(t, err)
	require.NotSame(t, r1, r2)

	// Weight zero routes to the least-loaded without contributing.
	r3, err := i.AcquireReactor(LoadBalancingOptions{Weight: 0})
	require.NoError(t, err)
	require.Same(t, r2, r3)
	require.Equal(t, 1, r3.Load())

	i.ReleaseReactor(r1, 3)
	require.Equal(t, 0, r1.Load())
}

func TestAcquireBeforeStartFails(t *testing.T) {
	i, err := New(fakeDeviceConfig())
	require.NoError(t, err)
	_, err = i.AcquireReactor(LoadBalancingOptions{})
	require.Equal(t, api.ErrCodeInvalid, api.CodeOf(err))
}

func TestExecuteRunsOnWorker(t *testing.T) {
	cfg := fakeDeviceConfig()
	i := startInterface(t, cfg)

	done := make(chan struct{})
	i.Execute(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred function never ran")
	}
}

func TestDynamicExecuteOrdering(t *testing.T) {
	// Scenario S6: executes submitted in order from one thread run in
	// that order on the shared parent chronology.
	cfg := fakeDeviceConfig()
	cfg.DynamicLoadBalancing = true
	cfg.MinThreads = 1
	cfg.MaxThreads = 2
	i := startInterface(t, cfg)
	require.NotNil(t, i.ParentChronology())

	var mu sync.Mutex
	var order []int
	const n = 20
	done := make(chan struct{})
	for k := 0; k < n; k++ {
		k := k
		i.Execute(func() {
			mu.Lock()
			order = append(order, k)
			if len(order) == n {
				close(done)
			}
			mu.Unlock()
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dynamic executes did not drain")
	}
	mu.Lock()
	defer mu.Unlock()
	for k := 0; k < n; k++ {
		require.Equal(t, k, order[k])
	}
}

func TestDynamicModeSharesOneReactor(t *testing.T) {
	cfg := fakeDeviceConfig()
	cfg.DynamicLoadBalancing = true
	cfg.MinThreads = 2
	cfg.MaxThreads = 2
	i := startInterface(t, cfg)

	require.Equal(t, 2, i.NumThreads())
	require.Equal(t, 1, i.NumReactors())

	h0, ok := i.ThreadHandleAt(0)
	require.True(t, ok)
	h1, ok := i.ThreadHandleAt(1)
	require.True(t, ok)
	r0, err := i.AcquireReactor(LoadBalancingOptions{ThreadHandle: &h0})
	require.NoError(t, err)
	r1, err := i.AcquireReactor(LoadBalancingOptions{ThreadHandle: &h1})
	require.NoError(t, err)
	require.Same(t, r0, r1)
}

func TestInterfaceTimerFires(t *testing.T) {
	cfg := fakeDeviceConfig()
	i := startInterface(t, cfg)

	fired := make(chan api.TimerEvent, 1)
	opts := api.TimerOptions{OneShot: true, Drift: true, WantDeadline: true}
	tm, err := i.CreateTimer(opts, func(_ api.Timer, ev api.TimerEvent) {
		fired <- ev
	})
	require.NoError(t, err)
	require.NoError(t, tm.Schedule(time.Now().Add(20*time.Millisecond), 0))

	select {
	case ev := <-fired:
		require.Equal(t, api.TimerEventDeadline, ev.Kind)
		require.GreaterOrEqual(t, ev.Drift, time.Duration(0))
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestStrandOverInterface(t *testing.T) {
	cfg := fakeDeviceConfig()
	cfg.MinThreads = 2
	cfg.MaxThreads = 2
	i := startInterface(t, cfg)

	strand := i.CreateStrand()
	var mu sync.Mutex
	var order []int
	const n = 50
	done := make(chan struct{})
	for k := 0; k < n; k++ {
		k := k
		strand.Execute(func() {
			mu.Lock()
			order = append(order, k)
			if len(order) == n {
				close(done)
			}
			mu.Unlock()
		})
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("strand did not drain")
	}
	mu.Lock()
	defer mu.Unlock()
	for k := 0; k < n; k++ {
		require.Equal(t, k, order[k])
	}
}

func TestRateLimiter(t *testing.T) {
	i, err := New(fakeDeviceConfig())
	require.NoError(t, err)

	lim := i.CreateRateLimiter(2)
	require.NoError(t, lim.Acquire())
	require.NoError(t, lim.Acquire())
	err = lim.Acquire()
	require.Equal(t, api.ErrCodeLimit, api.CodeOf(err))
	lim.Release()
	require.NoError(t, lim.Acquire())

	unlimited := i.CreateRateLimiter(0)
	for n := 0; n < 100; n++ {
		require.NoError(t, unlimited.Acquire())
	}
}

func TestControlSurface(t *testing.T) {
	cfg := fakeDeviceConfig()
	i := startInterface(t, cfg)

	ctl := i.Control()
	snap := ctl.GetConfig()
	require.Equal(t, i.Config().MetricName, snap["metricName"])

	reloaded := false
	ctl.OnReload(func() { reloaded = true })
	require.NoError(t, ctl.SetConfig(map[string]any{"threadLoadFactor": 7}))
	require.True(t, reloaded)
	require.Error(t, ctl.SetConfig(map[string]any{"threadLoadFactor": 0}))

	ctl.RegisterDebugProbe("answer", func() any { return 42 })
	stats := ctl.Stats()
	require.Equal(t, 1, stats["numReactors"])
	require.Equal(t, 42, stats["answer"])
}
