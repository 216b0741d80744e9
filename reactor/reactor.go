// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The Reactor owns a polling device, the interest registry, a
// chronology and a waiter set, and drives the poll -> dispatch -> drain
// loop on behalf of one or more worker threads.

package reactor

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/chronology"
)

// Default poll-loop bounds.
const (
	DefaultMaxEventsPerWait = 128
	DefaultMaxTimersPerWait = 32
	DefaultMaxCyclesPerWait = 2
)

// Config tunes one reactor. The facade resolves thread-count-dependent
// defaults before construction.
type Config struct {
	// MetricName is stamped on logs and stats.
	MetricName string
	// MaxEventsPerWait caps events returned by one device dequeue.
	MaxEventsPerWait int
	// MaxTimersPerWait caps timers fired per announce round.
	MaxTimersPerWait int
	// MaxCyclesPerWait caps chronology announce rounds per poll.
	MaxCyclesPerWait int
	// AutoAttach makes show-calls on unknown handles attach them.
	AutoAttach bool
	// AutoDetach makes a hide-call that clears all interest detach the
	// handle.
	AutoDetach bool
	// OneShot selects the default re-arm policy for attached handles.
	OneShot bool
	// Trigger selects the default trigger mode for attached handles.
	Trigger api.Trigger
}

// sanitize applies defaults to unset knobs.
func (c *Config) sanitize() {
	if c.MetricName == "" {
		c.MetricName = "reactor"
	}
	if c.MaxEventsPerWait <= 0 {
		c.MaxEventsPerWait = DefaultMaxEventsPerWait
	}
	if c.MaxTimersPerWait <= 0 {
		c.MaxTimersPerWait = DefaultMaxTimersPerWait
	}
	if c.MaxCyclesPerWait <= 0 {
		c.MaxCyclesPerWait = DefaultMaxCyclesPerWait
	}
}

// WaiterOptions identify one worker thread entering the poll loop.
type WaiterOptions struct {
	ThreadHandle uint64
	ThreadIndex  int
	MetricName   string
}

// Waiter is the per-thread registration with a reactor. It carries the
// reusable event buffer for that thread's dequeues.
type Waiter struct {
	opts   WaiterOptions
	events []api.PollEvent
}

// Options returns the registration options.
func (w *Waiter) Options() WaiterOptions { return w.opts }

// Stats is a snapshot of one reactor's loop counters.
type Stats struct {
	Polls      uint64
	Events     uint64
	Timeouts   uint64
	PollErrors uint64
	Detaches   uint64
}

// Reactor implements the event loop over a polling device.
type Reactor struct {
	cfg      Config
	log      *zap.Logger
	device   api.PollDevice
	registry *registry
	chron    *chronology.Chronology

	waiterMu sync.Mutex
	waiters  map[*Waiter]struct{}

	load    atomic.Int64
	stopped atomic.Bool

	polls      atomic.Uint64
	events     atomic.Uint64
	timeouts   atomic.Uint64
	pollErrors atomic.Uint64
	detaches   atomic.Uint64
}

// New creates a reactor over device. parent may be nil; when set, the
// reactor's chronology delegates overflow work to it. logger may be
// nil.
func New(cfg Config, device api.PollDevice, parent api.Chronology, logger *zap.Logger) *Reactor {
	cfg.sanitize()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("metricName", cfg.MetricName))
	r := &Reactor{
		cfg:      cfg,
		log:      logger,
		device:   device,
		registry: newRegistry(),
		chron:    chronology.New(parent, logger),
		waiters:  make(map[*Waiter]struct{}),
	}
	// Scheduling work from outside the loop must wake a poller blocked
	// on a stale timeout.
	r.chron.SetWake(func() { _ = device.InterruptOne() })
	return r
}

// Config returns the sanitized configuration.
func (r *Reactor) Config() Config { return r.cfg }

// Chronology returns the reactor's chronology.
func (r *Reactor) Chronology() api.Chronology { return r.chron }

// Device returns the polling device.
func (r *Reactor) Device() api.PollDevice { return r.device }

// defaultShowOptions derives show options from the reactor defaults.
func (r *Reactor) defaultShowOptions() ShowOptions {
	return ShowOptions{Trigger: r.cfg.Trigger, OneShot: r.cfg.OneShot}
}

// AttachSocket attaches a socket, registering its handle with the
// polling device with empty interest and storing the new entry in the
// socket's reactor-context slot.
func (r *Reactor) AttachSocket(s api.Socket) (*Entry, error) {
	e, err := r.attach(s.Handle(), s)
	if err != nil {
		return nil, err
	}
	s.SetReactorContext(e)
	return e, nil
}

// AttachHandle attaches a bare handle for callback-only use.
func (r *Reactor) AttachHandle(h api.Handle) (*Entry, error) {
	return r.attach(h, nil)
}

func (r *Reactor) attach(h api.Handle, s api.Socket) (*Entry, error) {
	if r.stopped.Load() {
		return nil, api.ErrShutdown
	}
	e := &Entry{
		reactor:  r,
		handle:   h,
		interest: api.Interest{Trigger: r.cfg.Trigger, OneShot: r.cfg.OneShot},
		socket:   s,
	}
	if !r.registry.insert(e) {
		return nil, api.NewErrorf(api.ErrCodeInvalid, "handle %d already attached", h)
	}
	if err := r.device.Add(h, e.interest); err != nil {
		r.registry.remove(e)
		return nil, err
	}
	return e, nil
}

// Lookup resolves an attached handle to its entry, or nil.
func (r *Reactor) Lookup(h api.Handle) *Entry { return r.registry.lookup(h) }

// NumSockets returns the number of attached entries.
func (r *Reactor) NumSockets() int { return r.registry.size() }

// resolveShow finds the entry for h, attaching it first under the
// auto-attach policy.
func (r *Reactor) resolveShow(h api.Handle) (*Entry, error) {
	if e := r.registry.lookup(h); e != nil {
		return e, nil
	}
	if !r.cfg.AutoAttach {
		return nil, api.NewErrorf(api.ErrCodeInvalid, "handle %d is not attached", h)
	}
	return r.AttachHandle(h)
}

// ShowReadable sets readable interest on h using the reactor defaults,
// attaching the handle first under the auto-attach policy.
func (r *Reactor) ShowReadable(h api.Handle, callback api.EventCallback) (api.Interest, error) {
	e, err := r.resolveShow(h)
	if err != nil {
		return api.Interest{}, err
	}
	return e.ShowReadable(r.defaultShowOptions(), callback)
}

// ShowWritable sets writable interest on h using the reactor defaults.
func (r *Reactor) ShowWritable(h api.Handle, callback api.EventCallback) (api.Interest, error) {
	e, err := r.resolveShow(h)
	if err != nil {
		return api.Interest{}, err
	}
	return e.ShowWritable(r.defaultShowOptions(), callback)
}

// ShowError sets error interest on h using the reactor defaults.
func (r *Reactor) ShowError(h api.Handle, callback api.EventCallback) (api.Interest, error) {
	e, err := r.resolveShow(h)
	if err != nil {
		return api.Interest{}, err
	}
	return e.ShowError(r.defaultShowOptions(), callback)
}

// HideReadable clears readable interest on h.
func (r *Reactor) HideReadable(h api.Handle) (api.Interest, error) {
	e := r.registry.lookup(h)
	if e == nil {
		return api.Interest{}, api.NewErrorf(api.ErrCodeInvalid, "handle %d is not attached", h)
	}
	return e.HideReadable()
}

// HideWritable clears writable interest on h.
func (r *Reactor) HideWritable(h api.Handle) (api.Interest, error) {
	e := r.registry.lookup(h)
	if e == nil {
		return api.Interest{}, api.NewErrorf(api.ErrCodeInvalid, "handle %d is not attached", h)
	}
	return e.HideWritable()
}

// HideError clears error interest on h.
func (r *Reactor) HideError(h api.Handle) (api.Interest, error) {
	e := r.registry.lookup(h)
	if e == nil {
		return api.Interest{}, api.NewErrorf(api.ErrCodeInvalid, "handle %d is not attached", h)
	}
	return e.HideError()
}

// DetachSocket begins detachment of h. When callback is non-nil it is
// invoked exactly once after the last in-flight event callback for the
// entry has returned; with a non-nil strand the completion is delivered
// through it. A repeated detach returns api.ErrAlreadyDetached. The
// handle itself is never closed by the reactor.
func (r *Reactor) DetachSocket(h api.Handle, callback api.DetachCallback, strand api.Executor) error {
	e := r.registry.lookup(h)
	if e == nil {
		return api.NewErrorf(api.ErrCodeInvalid, "handle %d is not attached", h)
	}
	return r.detachEntry(e, callback, strand)
}

func (r *Reactor) detachEntry(e *Entry, callback api.DetachCallback, strand api.Executor) error {
	if !e.detachState.CompareAndSwap(detachIdle, detachScheduled) {
		return api.ErrAlreadyDetached
	}
	e.mu.Lock()
	e.detachCB = callback
	e.detachOn = strand
	e.mu.Unlock()

	if err := r.device.Remove(e.handle); err != nil {
		r.log.Debug("device remove failed during detach",
			zapHandle(e.handle), zap.Error(err))
	}

	if e.processing.Load() == 0 {
		r.finalizeDetach(e)
	}
	return nil
}

// finalizeDetach retires an entry whose processing counter reached
// zero. The completion callback runs before the entry is cleared so
// that it can still observe the socket.
func (r *Reactor) finalizeDetach(e *Entry) {
	if !e.detachState.CompareAndSwap(detachScheduled, detachDetached) {
		return
	}
	e.mu.Lock()
	callback := e.detachCB
	strand := e.detachOn
	e.detachCB = nil
	e.detachOn = nil
	e.mu.Unlock()

	finish := func() {
		if callback != nil {
			callback()
		}
		e.clear()
		r.registry.remove(e)
		r.detaches.Add(1)
	}

	if strand != nil {
		strand.Execute(finish)
	} else {
		finish()
	}
}

// RegisterWaiter registers one worker thread with the reactor before it
// enters the poll loop.
func (r *Reactor) RegisterWaiter(opts WaiterOptions) *Waiter {
	w := &Waiter{
		opts:   opts,
		events: make([]api.PollEvent, 0, r.cfg.MaxEventsPerWait),
	}
	r.waiterMu.Lock()
	r.waiters[w] = struct{}{}
	r.waiterMu.Unlock()
	return w
}

// DeregisterWaiter removes a worker thread registration.
func (r *Reactor) DeregisterWaiter(w *Waiter) {
	r.waiterMu.Lock()
	delete(r.waiters, w)
	r.waiterMu.Unlock()
}

// NumWaiters returns the number of registered worker threads.
func (r *Reactor) NumWaiters() int {
	r.waiterMu.Lock()
	defer r.waiterMu.Unlock()
	return len(r.waiters)
}

// Poll runs one loop body: compute the timer-bounded timeout, dequeue
// readiness events, dispatch them, then announce due chronology work.
func (r *Reactor) Poll(w *Waiter) error {
	timeout := time.Duration(-1)
	if deadline, ok := r.chron.Earliest(); ok {
		timeout = time.Until(deadline)
		if deadline.IsZero() || timeout < 0 {
			timeout = 0
		}
	}

	events, err := r.device.Dequeue(w.events[:0], timeout)
	r.polls.Add(1)
	if err != nil {
		if api.CodeOf(err) == api.ErrCodeTimeout {
			r.timeouts.Add(1)
		} else {
			r.pollErrors.Add(1)
			r.log.Warn("poll failed", zap.Error(err))
			if api.CodeOf(err) == api.ErrCodeLimit {
				// Resource exhaustion is unrecoverable for the loop.
				r.Stop()
				return err
			}
		}
	} else if len(events) == 0 {
		r.timeouts.Add(1)
	}

	for _, ev := range events {
		r.dispatch(ev)
	}
	r.events.Add(uint64(len(events)))

	// Dynamic mode (several waiters sharing this reactor) bounds each
	// round to one unit of work to keep latency low across threads.
	dynamic := r.NumWaiters() > 1
	for i := 0; i < r.cfg.MaxCyclesPerWait; i++ {
		deadline, ok := r.chron.Earliest()
		if !ok || (!deadline.IsZero() && deadline.After(time.Now())) {
			break
		}
		if dynamic {
			r.chron.Announce(true)
		} else {
			r.chron.AnnounceUpTo(r.cfg.MaxTimersPerWait)
		}
	}

	return nil
}

// dispatch routes one readiness event to the owning entry. Within a
// batch the error kind is announced first; a fatal error suppresses
// the remaining kinds for this event.
func (r *Reactor) dispatch(ev api.PollEvent) {
	e := r.registry.lookup(ev.Handle)
	if e == nil || e.detachState.Load() != detachIdle {
		return
	}

	if ev.IsError() {
		if ev.IsFatalError() {
			e.AnnounceError(ev)
			return
		}
		// An error flag without an error code indicates notifications
		// are available on the socket's queue.
		r.announceNotifications(e)
	}
	if ev.IsReadable() {
		e.AnnounceReadable(ev)
	}
	if ev.IsWritable() {
		e.AnnounceWritable(ev)
	}

	r.rearmOneShot(e)
}

// announceNotifications drains the socket's notification queue and
// announces the batch.
func (r *Reactor) announceNotifications(e *Entry) {
	s := e.Socket()
	if s == nil {
		return
	}
	q := s.NotificationQueue()
	if q == nil {
		return
	}
	e.AnnounceNotifications(q.Drain())
}

// rearmOneShot restores interest after a one-shot delivery when
// want-bits remain set and detach has not started.
func (r *Reactor) rearmOneShot(e *Entry) {
	e.mu.Lock()
	interest := e.interest
	e.mu.Unlock()
	if !interest.OneShot || !interest.WantAny() {
		return
	}
	if e.detachState.Load() != detachIdle {
		return
	}
	if err := r.device.Update(e.handle, interest); err != nil {
		r.log.Debug("one-shot re-arm failed", zapHandle(e.handle), zap.Error(err))
	}
}

// Run drives Poll until the reactor is stopped, then drains deferred
// functions.
func (r *Reactor) Run(w *Waiter) {
	for !r.stopped.Load() {
		_ = r.Poll(w)
	}
	r.chron.Drain()
}

// Stop marks the reactor for termination and wakes every waiter. Each
// waiter exits its loop after completing the current poll cycle.
func (r *Reactor) Stop() {
	if r.stopped.CompareAndSwap(false, true) {
		if err := r.device.InterruptAll(); err != nil {
			r.log.Debug("interrupt on stop failed", zap.Error(err))
		}
	}
}

// Restart clears the termination flag.
func (r *Reactor) Restart() { r.stopped.Store(false) }

// IsStopped reports whether Stop has been called since the last
// Restart.
func (r *Reactor) IsStopped() bool { return r.stopped.Load() }

// InterruptOne wakes one thread blocked in the polling device.
func (r *Reactor) InterruptOne() error { return r.device.InterruptOne() }

// InterruptAll wakes every thread blocked in the polling device.
func (r *Reactor) InterruptAll() error { return r.device.InterruptAll() }

// Execute enqueues fn for execution on a reactor worker thread; the
// chronology wake hook nudges one waiter to pick it up.
func (r *Reactor) Execute(fn func()) {
	r.chron.Execute(fn)
}

// MoveAndExecute splices seq into the deferred queue then appends fn.
func (r *Reactor) MoveAndExecute(seq *[]func(), fn func()) {
	r.chron.MoveAndExecute(seq, fn)
}

// CloseAll detaches every registered entry and asynchronously closes
// the sockets that support closing.
func (r *Reactor) CloseAll() error {
	var errs error
	for _, e := range r.registry.snapshot() {
		s := e.Socket()
		err := r.detachEntry(e, nil, nil)
		if err != nil && err != api.ErrAlreadyDetached {
			errs = multierr.Append(errs, err)
			continue
		}
		if closer, ok := s.(io.Closer); ok {
			r.chron.Execute(func() { _ = closer.Close() })
		}
	}
	return errs
}

// IncrementLoad adds weight to the routing load counter.
func (r *Reactor) IncrementLoad(weight int) {
	if weight > 0 {
		r.load.Add(int64(weight))
	}
}

// DecrementLoad subtracts weight from the routing load counter.
func (r *Reactor) DecrementLoad(weight int) {
	if weight > 0 {
		r.load.Add(-int64(weight))
	}
}

// Load returns the current routing load.
func (r *Reactor) Load() int { return int(r.load.Load()) }

// Stats returns a snapshot of the loop counters.
func (r *Reactor) Stats() Stats {
	return Stats{
		Polls:      r.polls.Load(),
		Events:     r.events.Load(),
		Timeouts:   r.timeouts.Load(),
		PollErrors: r.pollErrors.Load(),
		Detaches:   r.detaches.Load(),
	}
}

// Close stops the reactor and releases the polling device.
func (r *Reactor) Close() error {
	r.Stop()
	return r.device.Close()
}

func zapHandle(h api.Handle) zap.Field { return zap.Uint64("handle", uint64(h)) }

func zapEventKind(kind string) zap.Field { return zap.String("event", kind) }

func zapRecovered(r any) zap.Field { return zap.Any("panic", r) }
