// Package hardware выполняет аппаратные команды стирания:
// ATA Secure Erase и NVMe Sanitize / Format NVM.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safewipe_enterprise/internal/device"
	"safewipe_enterprise/internal/nist"
)

var (
	ErrUnsupported         = errors.New("аппаратная команда не поддерживается устройством")
	ErrDeviceBusy          = errors.New("устройство занято")
	ErrSecurityFrozen      = errors.New("контроллер в состоянии security frozen")
	ErrHiddenAreaDetected  = errors.New("обнаружена скрытая область (HPA/DCO), не покрытая стиранием")
	ErrPasswordNotCleared  = errors.New("пароль ATA security не удалось снять после стирания")
	ErrUnsupportedPlatform = errors.New("аппаратные команды недоступны на этой платформе")
)

// DispatchError ошибка выполнения аппаратной команды с контекстом
type DispatchError struct {
	Method nist.HardwareMethod
	Device string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("аппаратная команда %s на %s: %v", e.Method, e.Device, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Outcome результат аппаратного стирания
type Outcome struct {
	Method   nist.HardwareMethod `json:"method"`
	Duration time.Duration       `json:"duration"`
	// Warnings содержит нефатальные отклонения, подлежащие фиксации в аудите
	Warnings []string `json:"warnings,omitempty"`
}

// HiddenAreas отчёт о скрытых областях устройства
type HiddenAreas struct {
	HPAPresent     bool  `json:"hpa_present"`
	DCOPresent     bool  `json:"dco_present"`
	NativeSectors  int64 `json:"native_sectors,omitempty"`
	VisibleSectors int64 `json:"visible_sectors,omitempty"`
}

// Any сообщает, есть ли хоть одна скрытая область
func (h HiddenAreas) Any() bool {
	return h.HPAPresent || h.DCOPresent
}

// Dispatcher выполняет аппаратные команды стирания. Интерфейс позволяет
// подставить заглушку в тесты и в среды без root.
type Dispatcher interface {
	// Supports проверяет применимость метода без побочных эффектов
	Supports(dev *device.Device, method nist.HardwareMethod) bool
	// Execute выполняет аппаратное стирание; блокируется до завершения
	Execute(ctx context.Context, dev *device.Device, method nist.HardwareMethod) (*Outcome, error)
	// ProbeHiddenAreas проверяет наличие HPA/DCO
	ProbeHiddenAreas(dev *device.Device) (*HiddenAreas, error)
	// RemoveHiddenAreas снимает HPA/DCO, открывая полную ёмкость для стирания
	RemoveHiddenAreas(dev *device.Device) error
}

// NewDispatcher возвращает диспетчер для текущей платформы
func NewDispatcher() Dispatcher {
	return newPlatformDispatcher()
}
