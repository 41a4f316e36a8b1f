//go:build !linux

package hardware

import (
	"context"

	"safewipe_enterprise/internal/device"
	"safewipe_enterprise/internal/nist"
)

type stubDispatcher struct{}

func newPlatformDispatcher() Dispatcher {
	return stubDispatcher{}
}

func (stubDispatcher) Supports(*device.Device, nist.HardwareMethod) bool {
	return false
}

func (stubDispatcher) Execute(_ context.Context, dev *device.Device, method nist.HardwareMethod) (*Outcome, error) {
	return nil, &DispatchError{Method: method, Device: dev.Path, Err: ErrUnsupportedPlatform}
}

func (stubDispatcher) ProbeHiddenAreas(*device.Device) (*HiddenAreas, error) {
	return &HiddenAreas{}, nil
}

func (stubDispatcher) RemoveHiddenAreas(*device.Device) error {
	return nil
}
