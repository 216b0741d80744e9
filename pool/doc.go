// File: pool/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package pool provides lock-free buffering primitives used by the
// reactor core, currently the fixed-capacity ring buffer backing socket
// notification queues.
package pool
