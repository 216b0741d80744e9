// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the contracts shared by every subsystem of
// hioload-reactor: interest flags, the polling-device abstraction, the
// socket abstraction, timer and chronology contracts, executors and
// strands, and the structured error model.
//
// The package is dependency-free by design. Implementations live in the
// reactor, chronology, facade and transport packages.
package api
