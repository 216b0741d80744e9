// File: facade/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package facade exposes the Interface: a load-balanced pool of
// reactors and worker threads with factories for datagram, stream and
// listener sockets, timers, strands and rate limiters. Sockets are
// routed to reactors by thread affinity, thread index or least load,
// expanding the pool up to the configured maximum.
package facade
