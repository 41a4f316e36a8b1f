//go:build linux

package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const sysBlock = "/sys/block"

// detectDevices перечисляет /sys/block, пропуская виртуальные устройства
func detectDevices() ([]Device, error) {
	entries, err := os.ReadDir(sysBlock)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать %s: %w", sysBlock, err)
	}

	systemRoot := systemRootDisk()

	var devices []Device
	for _, entry := range entries {
		name := entry.Name()
		if isVirtualDevice(name) {
			continue
		}

		dev, err := analyzeByName(name)
		if err != nil {
			// Недоступное устройство не валит всё перечисление
			continue
		}
		dev.IsSystemDrive = name == systemRoot
		devices = append(devices, *dev)
	}

	return devices, nil
}

func analyze(path string) (*Device, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrDeviceNotFound)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("не удалось открыть %s: %w", path, err)
	}

	name := filepath.Base(path)
	if _, err := os.Stat(filepath.Join(sysBlock, name)); err != nil {
		// Не блочное устройство из /sys/block — обычный файл (образ).
		// Полезно для тестовых прогонов на файлах-образах.
		return analyzeImageFile(path)
	}

	dev, err := analyzeByName(name)
	if err != nil {
		return nil, err
	}
	dev.IsSystemDrive = name == systemRootDisk()
	return dev, nil
}

func analyzeByName(name string) (*Device, error) {
	base := filepath.Join(sysBlock, name)
	dev := &Device{
		Path: "/dev/" + name,
		ID:   name,
	}

	// Размер в sysfs всегда в секторах по 512 байт
	sectors, err := readSysfsInt64(filepath.Join(base, "size"))
	if err != nil {
		return nil, fmt.Errorf("не удалось определить размер %s: %w", name, err)
	}
	dev.SizeBytes = sectors * 512

	if lbs, err := readSysfsInt64(filepath.Join(base, "queue", "logical_block_size")); err == nil {
		dev.SectorSize = int(lbs)
	} else {
		dev.SectorSize = 512
	}

	dev.Removable = readSysfsFlag(filepath.Join(base, "removable"))
	dev.Model = readSysfsString(filepath.Join(base, "device", "model"))
	dev.Serial = readSysfsString(filepath.Join(base, "device", "serial"))
	dev.Firmware = readSysfsString(filepath.Join(base, "device", "firmware_rev"))

	classify(dev, name, base)

	if dev.Serial != "" {
		dev.ID = dev.Serial
	}
	return dev, nil
}

// classify определяет тип носителя. Приоритет: аппаратная идентификация
// (ATA IDENTIFY / имя NVMe) → тип шины из sysfs → эвристика rotational.
func classify(dev *Device, name, base string) {
	switch {
	case strings.HasPrefix(name, "nvme"):
		dev.Type = TypeNVMe
		dev.Bus = InterfaceNVMe
		dev.Capabilities.NvmeSanitize = true
		dev.Capabilities.CryptoErase = true
		dev.Capabilities.Trim = true
		return
	case strings.HasPrefix(name, "mmcblk"):
		dev.Type = TypeSD
		dev.Bus = InterfaceUnknown
		return
	}

	dev.Bus = busFromSysfsPath(base)
	if dev.Bus == InterfaceUSB || (dev.Removable && dev.Bus != InterfaceSATA) {
		dev.Type = TypeUSB
		return
	}

	rotational := readSysfsFlag(filepath.Join(base, "queue", "rotational"))
	if rotational {
		dev.Type = TypeHDD
	} else {
		dev.Type = TypeSSD
	}

	if readSysfsFlag(filepath.Join(base, "queue", "discard_granularity")) {
		dev.Capabilities.Trim = true
	}

	// Для SATA-устройств уточняем возможности через IDENTIFY DEVICE.
	// Требует прав root; без них оставляем эвристическую оценку.
	if id, err := ataIdentify(dev.Path); err == nil {
		applyIdentify(dev, id)
	}
}

// busFromSysfsPath определяет шину по реальному пути устройства в sysfs
func busFromSysfsPath(base string) Interface {
	target, err := filepath.EvalSymlinks(filepath.Join(base, "device"))
	if err != nil {
		return InterfaceUnknown
	}
	switch {
	case strings.Contains(target, "/usb"):
		return InterfaceUSB
	case strings.Contains(target, "/ata"):
		return InterfaceSATA
	case strings.Contains(target, "/nvme"):
		return InterfaceNVMe
	default:
		return InterfaceSCSI
	}
}

func analyzeImageFile(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("не удалось открыть %s: %w", path, err)
	}
	defer f.Close()

	size, err := f.Seek(0, 2)
	if err != nil {
		return nil, fmt.Errorf("не удалось определить размер %s: %w", path, err)
	}

	return &Device{
		Path:       path,
		ID:         filepath.Base(path),
		Model:      "Image File",
		SizeBytes:  size,
		SectorSize: 512,
		Type:       TypeUnknown,
	}, nil
}

// systemRootDisk возвращает имя диска, на котором смонтирован корень
func systemRootDisk() string {
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != "/" {
			continue
		}
		source := fields[0]
		if resolved, err := filepath.EvalSymlinks(source); err == nil {
			source = resolved
		}
		return parentDisk(filepath.Base(source))
	}
	return ""
}

// parentDisk отбрасывает суффикс раздела: sda2 → sda, nvme0n1p2 → nvme0n1
func parentDisk(part string) string {
	if strings.HasPrefix(part, "nvme") || strings.HasPrefix(part, "mmcblk") {
		if idx := strings.LastIndex(part, "p"); idx > 0 {
			if _, err := strconv.Atoi(part[idx+1:]); err == nil {
				return part[:idx]
			}
		}
		return part
	}
	return strings.TrimRight(part, "0123456789")
}

func isVirtualDevice(name string) bool {
	prefixes := []string{"loop", "ram", "zram", "dm-", "sr", "md", "fd"}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readSysfsInt64(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

func readSysfsFlag(path string) bool {
	v, err := readSysfsInt64(path)
	return err == nil && v > 0
}

func isPrivileged() bool {
	return unix.Geteuid() == 0
}
