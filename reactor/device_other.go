//go:build !linux
// +build !linux

// File: reactor/device_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub for platforms without a polling device implementation.

package reactor

import (
	"github.com/momentics/hioload-reactor/api"
)

// NewDevice reports that no polling device exists for this platform.
// Reactors on unsupported platforms can still be driven by a custom
// api.PollDevice, such as the fake package's device.
func NewDevice() (api.PollDevice, error) {
	return nil, api.NewError(api.ErrCodeUnsupported, "no polling device for this platform")
}
