// File: facade/facade.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The Interface orchestrates the reactor pool: worker thread
// lifecycle with a start barrier, routing by thread affinity, thread
// index or least load, pool expansion under load, and the factories
// application code consumes.

package facade

import (
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/chronology"
	"github.com/momentics/hioload-reactor/internal/concurrency"
	"github.com/momentics/hioload-reactor/reactor"
	"github.com/momentics/hioload-reactor/transport"
)

// LoadBalancingOptions steer AcquireReactor.
type LoadBalancingOptions struct {
	// ThreadHandle routes to the reactor run by that worker thread.
	ThreadHandle *uint64
	// ThreadIndex routes to reactors[index mod numReactors].
	ThreadIndex *int
	// Weight is added to the chosen reactor's load; zero routes
	// without contributing to balancing.
	Weight int
}

// workerThread is one spawned worker identity.
type workerThread struct {
	handle  uint64
	index   int
	metric  string
	rea     *reactor.Reactor
	started chan struct{}
}

// Interface owns the reactor pool and its worker threads.
type Interface struct {
	cfg Config
	log *zap.Logger

	// mu is the configuration mutex: routing takes the read side,
	// autoscaling and lifecycle take the write side.
	mu       sync.RWMutex
	reactors []*reactor.Reactor
	threads  []*workerThread
	byHandle map[uint64]*reactor.Reactor
	started  bool

	// shared and parent are set under dynamic load balancing: one
	// reactor run by every worker, with a shared parent chronology
	// when more than one thread is allowed.
	shared *reactor.Reactor
	parent *chronology.Chronology

	limiter   *Limiter
	wg        sync.WaitGroup
	handleSeq atomic.Uint64
}

var _ api.Executor = (*Interface)(nil)

// New creates an interface from cfg. The configuration is sanitized;
// invalid combinations fail synchronously.
func New(cfg *Config) (*Interface, error) {
	c := *cfg
	if err := c.sanitize(); err != nil {
		return nil, err
	}
	i := &Interface{
		cfg:      c,
		log:      c.Logger.With(zap.String("metricName", c.MetricName)),
		byHandle: make(map[uint64]*reactor.Reactor),
		limiter:  NewLimiter(c.MaxConnections),
	}
	if c.DynamicLoadBalancing && c.MaxThreads > 1 {
		i.parent = chronology.New(nil, i.log)
	}
	return i, nil
}

// Config returns the sanitized configuration.
func (i *Interface) Config() Config { return i.cfg }

// Start initializes the resolver if configured and spawns MinThreads
// workers, returning once every worker has reached its poll loop.
func (i *Interface) Start() error {
	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return api.NewError(api.ErrCodeInvalid, "interface already started")
	}

	if i.cfg.Resolver != nil {
		if err := i.cfg.Resolver.Start(); err != nil {
			i.mu.Unlock()
			return err
		}
	}

	var spawned []*workerThread
	var startErr error
	for t := 0; t < i.cfg.MinThreads; t++ {
		wt, err := i.addThreadLocked()
		if err != nil {
			startErr = err
			break
		}
		spawned = append(spawned, wt)
	}
	if startErr == nil {
		i.started = true
	}
	i.mu.Unlock()

	if startErr != nil {
		// Roll back partial state: stop the resolver and the
		// already-started workers, then join the workers.
		i.Shutdown()
		i.Linger()
		return startErr
	}

	for _, wt := range spawned {
		<-wt.started
	}
	i.log.Debug("interface started", zap.Int("threads", len(spawned)))
	return nil
}

// addThreadLocked grows the pool by one worker. Caller holds the
// write side of the configuration mutex.
func (i *Interface) addThreadLocked() (*workerThread, error) {
	index := len(i.threads)
	if index >= i.cfg.MaxThreads {
		return nil, api.NewErrorf(api.ErrCodeLimit, "thread pool exhausted at %d", index)
	}
	metric := fmt.Sprintf("%s-thread-%d", i.cfg.MetricName, index)

	var rea *reactor.Reactor
	if i.cfg.DynamicLoadBalancing {
		if i.shared == nil {
			device, err := i.cfg.DeviceFactory()
			if err != nil {
				return nil, err
			}
			i.shared = reactor.New(i.cfg.reactorConfig(i.cfg.MetricName), device, i.parent, i.cfg.Logger)
			i.reactors = append(i.reactors, i.shared)
			if i.parent != nil {
				// Work arriving on the shared parent must wake a
				// poller of the shared reactor.
				shared := i.shared
				i.parent.SetWake(func() { _ = shared.InterruptOne() })
			}
		}
		rea = i.shared
	} else {
		device, err := i.cfg.DeviceFactory()
		if err != nil {
			return nil, err
		}
		rea = reactor.New(i.cfg.reactorConfig(metric), device, nil, i.cfg.Logger)
		i.reactors = append(i.reactors, rea)
	}

	wt := &workerThread{
		handle:  i.handleSeq.Add(1),
		index:   index,
		metric:  metric,
		rea:     rea,
		started: make(chan struct{}),
	}
	i.threads = append(i.threads, wt)
	i.byHandle[wt.handle] = rea

	i.wg.Add(1)
	go i.runWorker(wt)

	i.log.Debug("expanding worker pool",
		zap.Int("threads", len(i.threads)), zap.Int("maxThreads", i.cfg.MaxThreads))
	return wt, nil
}

// runWorker is the body of one worker thread.
func (i *Interface) runWorker(wt *workerThread) {
	defer i.wg.Done()

	if i.cfg.CPUAffinity {
		if err := concurrency.PinCurrentThread(wt.index); err != nil {
			i.log.Warn("thread pinning failed", zap.Int("thread", wt.index), zap.Error(err))
		}
		defer func() { _ = concurrency.UnpinCurrentThread() }()
	}

	w := wt.rea.RegisterWaiter(reactor.WaiterOptions{
		ThreadHandle: wt.handle,
		ThreadIndex:  wt.index,
		MetricName:   wt.metric,
	})
	close(wt.started)
	wt.rea.Run(w)
	wt.rea.DeregisterWaiter(w)
}

// Shutdown stops the resolver and every reactor. Workers exit their
// loops cooperatively; use Linger to join them.
func (i *Interface) Shutdown() {
	if i.cfg.Resolver != nil {
		if err := i.cfg.Resolver.Stop(); err != nil {
			i.log.Warn("resolver stop failed", zap.Error(err))
		}
	}
	i.mu.RLock()
	reactors := append([]*reactor.Reactor(nil), i.reactors...)
	i.mu.RUnlock()
	for _, r := range reactors {
		r.Stop()
	}
}

// Linger joins all workers and resets the pool so the interface can be
// started again.
func (i *Interface) Linger() {
	i.wg.Wait()
	i.mu.Lock()
	for _, r := range i.reactors {
		// Start builds fresh reactors, so the polling devices go with
		// the old ones.
		if err := r.Close(); err != nil {
			i.log.Debug("reactor close failed", zap.Error(err))
		}
	}
	i.threads = nil
	i.reactors = nil
	i.shared = nil
	i.byHandle = make(map[uint64]*reactor.Reactor)
	i.started = false
	i.mu.Unlock()
}

// CloseAll cascades to every reactor, detaching and closing all
// registered sockets.
func (i *Interface) CloseAll() error {
	i.mu.RLock()
	reactors := append([]*reactor.Reactor(nil), i.reactors...)
	i.mu.RUnlock()
	var errs error
	for _, r := range reactors {
		errs = multierr.Append(errs, r.CloseAll())
	}
	return errs
}

// InterruptOne wakes one blocked worker on each reactor.
func (i *Interface) InterruptOne() {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, r := range i.reactors {
		_ = r.InterruptOne()
	}
}

// InterruptAll wakes every blocked worker.
func (i *Interface) InterruptAll() {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, r := range i.reactors {
		_ = r.InterruptAll()
	}
}

// AcquireReactor routes to a reactor: by thread handle when known, by
// thread index next, otherwise to the least-loaded reactor, expanding
// the pool when that reactor's load has reached the thread load
// factor.
func (i *Interface) AcquireReactor(options LoadBalancingOptions) (*reactor.Reactor, error) {
	if options.ThreadHandle != nil {
		i.mu.RLock()
		r, ok := i.byHandle[*options.ThreadHandle]
		i.mu.RUnlock()
		if ok {
			r.IncrementLoad(options.Weight)
			return r, nil
		}
	}

	if options.ThreadIndex != nil {
		i.mu.RLock()
		defer i.mu.RUnlock()
		if len(i.reactors) == 0 {
			return nil, api.NewError(api.ErrCodeInvalid, "interface has no reactors")
		}
		r := i.reactors[*options.ThreadIndex%len(i.reactors)]
		r.IncrementLoad(options.Weight)
		return r, nil
	}

	for {
		i.mu.RLock()
		if len(i.reactors) == 0 {
			i.mu.RUnlock()
			return nil, api.NewError(api.ErrCodeInvalid, "interface has no reactors")
		}
		best := i.reactors[0]
		for _, r := range i.reactors[1:] {
			if r.Load() < best.Load() {
				best = r
			}
		}
		numThreads := len(i.threads)
		factor := i.cfg.ThreadLoadFactor
		i.mu.RUnlock()

		if best.Load() >= factor && numThreads < i.cfg.MaxThreads {
			i.mu.Lock()
			if len(i.threads) < i.cfg.MaxThreads {
				wt, err := i.addThreadLocked()
				if err != nil {
					i.mu.Unlock()
					return nil, err
				}
				i.mu.Unlock()
				<-wt.started
			} else {
				i.mu.Unlock()
			}
			continue
		}

		best.IncrementLoad(options.Weight)
		return best, nil
	}
}

// ReleaseReactor returns a previously acquired routing weight.
func (i *Interface) ReleaseReactor(r *reactor.Reactor, weight int) {
	r.DecrementLoad(weight)
}

// Expand grows the pool by one worker thread.
func (i *Interface) Expand() error {
	i.mu.Lock()
	wt, err := i.addThreadLocked()
	i.mu.Unlock()
	if err != nil {
		return err
	}
	<-wt.started
	return nil
}

// executeTarget picks the chronology for deferred work: the shared
// parent under dynamic balancing, else the least-loaded reactor's.
func (i *Interface) executeTarget() (api.Chronology, error) {
	if i.parent != nil {
		return i.parent, nil
	}
	r, err := i.AcquireReactor(LoadBalancingOptions{Weight: 0})
	if err != nil {
		return nil, err
	}
	return r.Chronology(), nil
}

// Execute runs fn on some worker thread. Functions submitted in order
// from one thread run in that order.
func (i *Interface) Execute(fn func()) {
	chron, err := i.executeTarget()
	if err != nil {
		i.log.Warn("execute dropped", zap.Error(err))
		return
	}
	chron.Execute(fn)
}

// MoveAndExecute splices seq then appends fn on some worker thread.
func (i *Interface) MoveAndExecute(seq *[]func(), fn func()) {
	chron, err := i.executeTarget()
	if err != nil {
		i.log.Warn("execute dropped", zap.Error(err))
		return
	}
	chron.MoveAndExecute(seq, fn)
}

// CreateTimer creates a timer on the shared parent chronology under
// dynamic balancing, or on the least-loaded reactor's chronology.
func (i *Interface) CreateTimer(options api.TimerOptions, callback api.TimerCallback) (api.Timer, error) {
	chron, err := i.executeTarget()
	if err != nil {
		return nil, err
	}
	return chron.CreateTimer(options, callback), nil
}

// CreateStrand creates a serial executor over this interface.
func (i *Interface) CreateStrand() api.Strand {
	return concurrency.NewStrand(i)
}

// CreateStrandOn creates a serial executor over a specific reactor.
func (i *Interface) CreateStrandOn(r *reactor.Reactor) api.Strand {
	return concurrency.NewStrand(r)
}

// CreateRateLimiter creates an admission limiter of the given
// capacity, independent of the interface-wide connection limiter.
func (i *Interface) CreateRateLimiter(capacity int64) *Limiter {
	return NewLimiter(capacity)
}

// Limiter returns the interface-wide connection limiter.
func (i *Interface) Limiter() *Limiter { return i.limiter }

// CreateDatagramSocket opens a datagram socket, routes it to a reactor
// and attaches it. The caller owns the socket and its entry.
func (i *Interface) CreateDatagramSocket(sample netip.AddrPort, options LoadBalancingOptions) (*transport.DatagramSocket, *reactor.Entry, error) {
	if err := i.limiter.Acquire(); err != nil {
		return nil, nil, err
	}
	s, err := transport.NewDatagramSocket(sample)
	if err != nil {
		i.limiter.Release()
		return nil, nil, err
	}
	entry, err := i.attach(s, options)
	if err != nil {
		_ = s.Close()
		i.limiter.Release()
		return nil, nil, err
	}
	return s, entry, nil
}

// CreateStreamSocket opens a stream socket, routes it to a reactor and
// attaches it. Release the interface limiter when disposing of it.
func (i *Interface) CreateStreamSocket(sample netip.AddrPort, options LoadBalancingOptions) (*transport.StreamSocket, *reactor.Entry, error) {
	if err := i.limiter.Acquire(); err != nil {
		return nil, nil, err
	}
	s, err := transport.NewStreamSocket(sample)
	if err != nil {
		i.limiter.Release()
		return nil, nil, err
	}
	entry, err := i.attach(s, options)
	if err != nil {
		_ = s.Close()
		i.limiter.Release()
		return nil, nil, err
	}
	return s, entry, nil
}

// CreateListenerSocket opens a listener socket, routes it to a reactor
// and attaches it.
func (i *Interface) CreateListenerSocket(sample netip.AddrPort, options LoadBalancingOptions) (*transport.ListenerSocket, *reactor.Entry, error) {
	s, err := transport.NewListenerSocket(sample)
	if err != nil {
		return nil, nil, err
	}
	entry, err := i.attach(s, options)
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return s, entry, nil
}

func (i *Interface) attach(s api.Socket, options LoadBalancingOptions) (*reactor.Entry, error) {
	r, err := i.AcquireReactor(options)
	if err != nil {
		return nil, err
	}
	entry, err := r.AttachSocket(s)
	if err != nil {
		i.ReleaseReactor(r, options.Weight)
		return nil, err
	}
	return entry, nil
}

// NumReactors returns the number of reactors in the pool.
func (i *Interface) NumReactors() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.reactors)
}

// NumThreads returns the number of spawned worker threads.
func (i *Interface) NumThreads() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.threads)
}

// ThreadHandleAt returns the worker handle at index.
func (i *Interface) ThreadHandleAt(index int) (uint64, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if index < 0 || index >= len(i.threads) {
		return 0, false
	}
	return i.threads[index].handle, true
}

// Reactors returns a snapshot of the pool.
func (i *Interface) Reactors() []*reactor.Reactor {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]*reactor.Reactor(nil), i.reactors...)
}

// ParentChronology returns the shared parent chronology, or nil when
// load balancing is static.
func (i *Interface) ParentChronology() api.Chronology {
	if i.parent == nil {
		return nil
	}
	return i.parent
}
