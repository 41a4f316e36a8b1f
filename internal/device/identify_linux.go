//go:build linux

package device

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	hdioDriveCmd   = 0x031f
	ataIdentifyCmd = 0xEC
)

// identifyData 256 слов ответа IDENTIFY DEVICE
type identifyData [256]uint16

// ataIdentify выполняет ATA IDENTIFY DEVICE через HDIO_DRIVE_CMD.
// Требует прав на открытие устройства.
func ataIdentify(path string) (*identifyData, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть %s: %w", path, err)
	}
	defer f.Close()

	// 4 байта заголовка HDIO + 512 байт данных
	buf := make([]byte, 4+512)
	buf[0] = ataIdentifyCmd
	buf[3] = 1 // один сектор данных

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), hdioDriveCmd, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return nil, fmt.Errorf("IDENTIFY DEVICE не выполнена: %w", errno)
	}

	var id identifyData
	for i := 0; i < 256; i++ {
		id[i] = uint16(buf[4+i*2]) | uint16(buf[4+i*2+1])<<8
	}
	return &id, nil
}

// applyIdentify переносит данные IDENTIFY в описание устройства
func applyIdentify(dev *Device, id *identifyData) {
	if m := identifyString(id, 27, 46); m != "" {
		dev.Model = m
	}
	if s := identifyString(id, 10, 19); s != "" {
		dev.Serial = s
	}
	if fw := identifyString(id, 23, 26); fw != "" {
		dev.Firmware = fw
	}

	// Слово 128: статус безопасности. Бит 0 — security поддерживается,
	// бит 5 — поддержка enhanced erase.
	security := id[128]
	dev.Capabilities.SecureErase = security&0x0001 != 0
	dev.Capabilities.EnhancedSecureErase = security&0x0020 != 0

	// Слово 169 бит 0 — поддержка TRIM
	if id[169]&0x0001 != 0 {
		dev.Capabilities.Trim = true
	}

	// Слово 217: 0x0001 означает не вращающийся носитель
	if id[217] == 0x0001 {
		dev.Type = TypeSSD
	}
}

// identifyString извлекает ASCII-строку из диапазона слов IDENTIFY.
// Байты в каждом слове переставлены местами.
func identifyString(id *identifyData, from, to int) string {
	raw := make([]byte, 0, (to-from+1)*2)
	for i := from; i <= to; i++ {
		raw = append(raw, byte(id[i]>>8), byte(id[i]))
	}
	// Обрезаем пробелы и непечатаемые символы
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b >= 0x20 && b < 0x7F {
			out = append(out, b)
		}
	}
	return trimSpaces(string(out))
}

func trimSpaces(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}
