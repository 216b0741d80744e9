// File: internal/concurrency/pin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Optional OS-thread pinning for reactor workers.

package concurrency

import "runtime"

// PinCurrentThread locks the calling goroutine to its OS thread and
// binds that thread to the given logical CPU. A cpu < 0 locks the
// thread without binding it.
func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	if cpu < 0 {
		return nil
	}
	return platformPinCurrentThread(cpu % runtime.NumCPU())
}

// UnpinCurrentThread releases any CPU binding and unlocks the thread.
func UnpinCurrentThread() error {
	err := platformUnpinCurrentThread()
	runtime.UnlockOSThread()
	return err
}
