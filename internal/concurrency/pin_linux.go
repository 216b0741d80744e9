//go:build linux
// +build linux

// File: internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux CPU affinity via sched_setaffinity(2), no cgo required.

package concurrency

import (
	"golang.org/x/sys/unix"
)

// platformPinCurrentThread binds the current OS thread to cpu.
func platformPinCurrentThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// platformUnpinCurrentThread restores the full CPU mask.
func platformUnpinCurrentThread() error {
	var set unix.CPUSet
	set.Zero()
	for cpu := 0; cpu < len(set)*64; cpu++ {
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(0, &set)
}
