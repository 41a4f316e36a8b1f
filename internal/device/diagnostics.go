package device

import (
	"crypto/rand"
	"fmt"
	"os"
	"runtime"
)

// DiagnosticsReport результат самопроверки окружения перед санитизацией
type DiagnosticsReport struct {
	Platform      string   `json:"platform"`
	Privileged    bool     `json:"privileged"`
	SysfsReadable bool     `json:"sysfs_readable"`
	EntropyOK     bool     `json:"entropy_ok"`
	DeviceCount   int      `json:"device_count"`
	Warnings      []string `json:"warnings,omitempty"`
}

// RunDiagnostics проверяет, что окружение пригодно для работы:
// права, доступ к sysfs, источник случайности, обнаружение устройств.
func RunDiagnostics() *DiagnosticsReport {
	report := &DiagnosticsReport{
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		Privileged: isPrivileged(),
	}

	if !report.Privileged {
		report.Warnings = append(report.Warnings,
			"нет прав root: аппаратные команды и запись на устройства недоступны")
	}

	if _, err := os.Stat("/sys/block"); err == nil {
		report.SysfsReadable = true
	} else {
		report.Warnings = append(report.Warnings,
			"каталог /sys/block недоступен: перечисление устройств не будет работать")
	}

	// Самопроверка криптографического ГСЧ
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err == nil && !allZero(buf) {
		report.EntropyOK = true
	} else {
		report.Warnings = append(report.Warnings,
			"источник случайности недоступен: случайные проходы невозможны")
	}

	devices, err := DetectDevices()
	if err != nil {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("ошибка перечисления устройств: %v", err))
	} else {
		report.DeviceCount = len(devices)
	}

	return report
}

// Healthy сообщает, можно ли запускать санитизацию
func (r *DiagnosticsReport) Healthy() bool {
	return r.Privileged && r.SysfsReadable && r.EntropyOK
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
