// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor provides the readiness-based I/O demultiplexer: a
// per-handle interest registry, a poll -> dispatch -> drain event loop
// driven by one or more worker threads, the reference-counted detach
// protocol, and the platform polling devices (epoll on Linux).
package reactor
