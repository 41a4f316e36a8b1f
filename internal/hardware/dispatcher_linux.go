//go:build linux

package hardware

import (
	"context"

	"safewipe_enterprise/internal/device"
	"safewipe_enterprise/internal/logging"
	"safewipe_enterprise/internal/nist"
)

type linuxDispatcher struct {
	logger *logging.EnterpriseLogger
}

func newPlatformDispatcher() Dispatcher {
	return &linuxDispatcher{logger: logging.NewNopLogger()}
}

// NewLinuxDispatcher создаёт диспетчер с заданным логгером
func NewLinuxDispatcher(logger *logging.EnterpriseLogger) Dispatcher {
	return &linuxDispatcher{logger: logger}
}

func (d *linuxDispatcher) Supports(dev *device.Device, method nist.HardwareMethod) bool {
	caps := dev.Capabilities
	switch method {
	case nist.HWAtaSecureErase:
		return caps.SecureErase
	case nist.HWAtaEnhancedErase:
		return caps.EnhancedSecureErase
	case nist.HWNvmeSanitize:
		return caps.NvmeSanitize
	case nist.HWNvmeCryptoErase:
		return caps.CryptoErase && dev.Type == device.TypeNVMe
	default:
		return false
	}
}

func (d *linuxDispatcher) Execute(ctx context.Context, dev *device.Device, method nist.HardwareMethod) (*Outcome, error) {
	if !d.Supports(dev, method) {
		return nil, &DispatchError{Method: method, Device: dev.Path, Err: ErrUnsupported}
	}

	switch method {
	case nist.HWAtaSecureErase:
		return ataSecureErase(ctx, dev.Path, false, d.logger)
	case nist.HWAtaEnhancedErase:
		return ataSecureErase(ctx, dev.Path, true, d.logger)
	case nist.HWNvmeSanitize:
		return nvmeSanitize(ctx, dev.Path, false, d.logger)
	case nist.HWNvmeCryptoErase:
		return nvmeSanitize(ctx, dev.Path, true, d.logger)
	default:
		return nil, &DispatchError{Method: method, Device: dev.Path, Err: ErrUnsupported}
	}
}

func (d *linuxDispatcher) ProbeHiddenAreas(dev *device.Device) (*HiddenAreas, error) {
	// HPA/DCO существуют только на ATA-устройствах
	if dev.Bus != device.InterfaceSATA {
		return &HiddenAreas{}, nil
	}
	return ataProbeHiddenAreas(dev.Path)
}

func (d *linuxDispatcher) RemoveHiddenAreas(dev *device.Device) error {
	if dev.Bus != device.InterfaceSATA {
		return nil
	}
	return ataRemoveHiddenAreas(dev.Path)
}
