// File: facade/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Interface configuration and sanitization.

package facade

import (
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/reactor"
)

// maxPlatformThreads caps the worker pool regardless of configuration.
const maxPlatformThreads = 1024

// DefaultThreadLoadFactor is the per-reactor load at which the pool
// expands by one thread.
const DefaultThreadLoadFactor = 64

// OneShotPolicy selects the default re-arm behavior for sockets.
type OneShotPolicy int

const (
	// OneShotAuto enables one-shot mode when more than one worker
	// thread is configured.
	OneShotAuto OneShotPolicy = iota
	// OneShotEnabled forces one-shot mode.
	OneShotEnabled
	// OneShotDisabled forces level re-arming off.
	OneShotDisabled
)

// Resolver is an external collaborator started and stopped with the
// interface, typically a DNS resolver.
type Resolver interface {
	Start() error
	Stop() error
}

// Config exposes all configurable interface parameters.
type Config struct {
	// MetricName is stamped on logs and stats. A generated identifier
	// is used when empty.
	MetricName string
	// MinThreads and MaxThreads bound the worker pool.
	MinThreads int
	MaxThreads int
	// MaxEventsPerWait caps events returned per poll.
	MaxEventsPerWait int
	// MaxTimersPerWait caps timers fired per chronology announce round.
	// A poll runs up to MaxCyclesPerWait rounds, so one poll can fire
	// more timers than this cap.
	MaxTimersPerWait int
	// MaxCyclesPerWait caps chronology announce passes per poll.
	MaxCyclesPerWait int
	// AutoAttach and AutoDetach control implicit attach on show and
	// implicit detach on hide-to-zero.
	AutoAttach bool
	AutoDetach bool
	// OneShot selects the default re-arm policy.
	OneShot OneShotPolicy
	// Trigger selects the default trigger mode.
	Trigger api.Trigger
	// ThreadLoadFactor is the reactor load threshold at which the pool
	// expands.
	ThreadLoadFactor int
	// DynamicLoadBalancing shares a single reactor between all worker
	// threads instead of one reactor per thread.
	DynamicLoadBalancing bool
	// CPUAffinity pins each worker thread to a CPU.
	CPUAffinity bool
	// MaxConnections bounds concurrently admitted connections through
	// the limiter; zero means unlimited.
	MaxConnections int64
	// Resolver, when non-nil, is started by Start and stopped by
	// Shutdown.
	Resolver Resolver
	// DeviceFactory constructs the polling device for each reactor.
	// Defaults to the platform device.
	DeviceFactory func() (api.PollDevice, error)
	// Logger receives structured diagnostics. Defaults to a no-op.
	Logger *zap.Logger
}

// DefaultConfig provides a baseline configuration for most use cases.
// Returned fields may be modified before passing to New.
func DefaultConfig() *Config {
	return &Config{
		MinThreads:       1,
		MaxThreads:       runtime.NumCPU(),
		ThreadLoadFactor: DefaultThreadLoadFactor,
		AutoAttach:       true,
		AutoDetach:       true,
	}
}

// sanitize validates and defaults the configuration in place.
func (c *Config) sanitize() error {
	if c.MinThreads < 1 {
		c.MinThreads = 1
	}
	if c.MaxThreads < c.MinThreads {
		c.MaxThreads = c.MinThreads
	}
	if c.MaxThreads > maxPlatformThreads {
		c.MaxThreads = maxPlatformThreads
	}
	if c.MinThreads > c.MaxThreads {
		return api.NewErrorf(api.ErrCodeInvalid,
			"minThreads %d exceeds maxThreads %d", c.MinThreads, c.MaxThreads)
	}
	if c.ThreadLoadFactor <= 0 {
		c.ThreadLoadFactor = DefaultThreadLoadFactor
	}
	if c.MetricName == "" {
		c.MetricName = "interface-" + uuid.NewString()[:8]
	}
	if c.MaxConnections < 0 {
		return api.NewError(api.ErrCodeInvalid, "maxConnections must be nonnegative")
	}
	if c.DeviceFactory == nil {
		c.DeviceFactory = reactor.NewDevice
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

// resolvedOneShot applies the one-shot policy against the sanitized
// thread bounds.
func (c *Config) resolvedOneShot() bool {
	switch c.OneShot {
	case OneShotEnabled:
		return true
	case OneShotDisabled:
		return false
	default:
		return c.MaxThreads > 1
	}
}

// reactorConfig derives the per-reactor configuration.
func (c *Config) reactorConfig(metricName string) reactor.Config {
	return reactor.Config{
		MetricName:       metricName,
		MaxEventsPerWait: c.MaxEventsPerWait,
		MaxTimersPerWait: c.MaxTimersPerWait,
		MaxCyclesPerWait: c.MaxCyclesPerWait,
		AutoAttach:       c.AutoAttach,
		AutoDetach:       c.AutoDetach,
		OneShot:          c.resolvedOneShot(),
		Trigger:          c.Trigger,
	}
}
