//go:build !linux
// +build !linux

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// No-op pinning for platforms without affinity support.

package concurrency

func platformPinCurrentThread(cpu int) error { return nil }

func platformUnpinCurrentThread() error { return nil }
