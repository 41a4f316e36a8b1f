package device

import (
	"errors"
	"fmt"
)

// Ошибки обнаружения устройств
var (
	ErrDeviceNotFound      = errors.New("устройство не найдено")
	ErrPermissionDenied    = errors.New("нет прав доступа к устройству")
	ErrUnsupportedMedia    = errors.New("неподдерживаемый тип носителя")
	ErrUnsupportedPlatform = errors.New("платформа не поддерживается")
)

// DeviceType тип носителя. Закрытый enum: добавление нового типа
// требует обновления всех switch по DeviceType.
type DeviceType int

const (
	TypeUnknown DeviceType = iota
	TypeHDD
	TypeSSD
	TypeNVMe
	TypeUSB
	TypeSD
)

func (t DeviceType) String() string {
	switch t {
	case TypeHDD:
		return "HDD"
	case TypeSSD:
		return "SSD"
	case TypeNVMe:
		return "NVMe"
	case TypeUSB:
		return "USB"
	case TypeSD:
		return "SD"
	default:
		return "Unknown"
	}
}

// Interface шина подключения устройства
type Interface int

const (
	InterfaceUnknown Interface = iota
	InterfaceSATA
	InterfaceNVMe
	InterfaceUSB
	InterfaceSCSI
)

func (i Interface) String() string {
	switch i {
	case InterfaceSATA:
		return "SATA"
	case InterfaceNVMe:
		return "NVMe"
	case InterfaceUSB:
		return "USB"
	case InterfaceSCSI:
		return "SCSI"
	default:
		return "Unknown"
	}
}

// Capabilities аппаратные возможности санитизации
type Capabilities struct {
	SecureErase         bool `json:"supports_secure_erase"`
	EnhancedSecureErase bool `json:"supports_enhanced_secure_erase"`
	NvmeSanitize        bool `json:"supports_nvme_sanitize"`
	CryptoErase         bool `json:"supports_crypto_erase"`
	Trim                bool `json:"supports_trim"`
}

// HasHardwareErase сообщает, доступна ли хоть одна аппаратная команда стирания
func (c Capabilities) HasHardwareErase() bool {
	return c.SecureErase || c.EnhancedSecureErase || c.NvmeSanitize || c.CryptoErase
}

// Device описывает обнаруженное блочное устройство.
// Неизменяемо после обнаружения; переобнаруживается при каждой подаче задания.
type Device struct {
	Path          string       `json:"path"`
	ID            string       `json:"id"` // стабильный идентификатор (serial или имя)
	Model         string       `json:"model"`
	Serial        string       `json:"serial"`
	Firmware      string       `json:"firmware"`
	SizeBytes     int64        `json:"size_bytes"`
	SectorSize    int          `json:"sector_size"`
	Type          DeviceType   `json:"type"`
	Bus           Interface    `json:"interface"`
	Capabilities  Capabilities `json:"capabilities"`
	Removable     bool         `json:"removable"`
	IsSystemDrive bool         `json:"is_system_drive"`
}

// SizeGB возвращает размер в гигабайтах
func (d *Device) SizeGB() float64 {
	return float64(d.SizeBytes) / (1024 * 1024 * 1024)
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (%s, %s, %.1f GB)", d.Path, d.Model, d.Type, d.SizeGB())
}

// DetectDevices перечисляет локальные блочные устройства
func DetectDevices() ([]Device, error) {
	return detectDevices()
}

// Analyze собирает полную информацию об одном устройстве по пути
func Analyze(path string) (*Device, error) {
	return analyze(path)
}
