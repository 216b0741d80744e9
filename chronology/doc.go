// File: chronology/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package chronology implements the timer and deferred-execution engine
// driven by reactor worker threads: a deadline-ordered index of active
// timers, a FIFO of deferred functions, and optional delegation to a
// shared parent chronology.
package chronology
