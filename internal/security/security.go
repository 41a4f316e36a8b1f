// Package security содержит проверки, выполняемые перед допуском
// задания к устройству.
package security

import (
	"path/filepath"
	"strings"

	"safewipe_enterprise/internal/config"
	"safewipe_enterprise/internal/device"
)

// IsAdmin сообщает, запущен ли процесс с правами администратора
func IsAdmin() bool {
	return isAdmin()
}

// ShouldSkipDevice проверяет устройство против списка исключений
// конфигурации. Сравнение идёт и по полному пути, и по имени.
func ShouldSkipDevice(cfg *config.Config, dev *device.Device) bool {
	name := filepath.Base(dev.Path)
	for _, excluded := range cfg.Security.ExcludedDevices {
		if excluded == "" {
			continue
		}
		if strings.EqualFold(excluded, dev.Path) || strings.EqualFold(excluded, name) {
			return true
		}
		if dev.Serial != "" && strings.EqualFold(excluded, dev.Serial) {
			return true
		}
	}
	return false
}
