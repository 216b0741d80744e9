// File: control/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package control provides the runtime control surface: a dynamic
// configuration store with reload listeners and a metrics registry
// aggregating reactor loop counters.
package control
