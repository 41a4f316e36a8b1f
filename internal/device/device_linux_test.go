//go:build linux

package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentDisk(t *testing.T) {
	tests := []struct {
		partition string
		expected  string
	}{
		{"sda2", "sda"},
		{"sda", "sda"},
		{"sdb10", "sdb"},
		{"nvme0n1p2", "nvme0n1"},
		{"nvme0n1", "nvme0n1"},
		{"nvme1n2p10", "nvme1n2"},
		{"mmcblk0p1", "mmcblk0"},
		{"mmcblk0", "mmcblk0"},
	}

	for _, tt := range tests {
		t.Run(tt.partition, func(t *testing.T) {
			assert.Equal(t, tt.expected, parentDisk(tt.partition))
		})
	}
}

func TestIsVirtualDevice(t *testing.T) {
	for _, name := range []string{"loop0", "ram1", "zram0", "dm-3", "sr0", "md127", "fd0"} {
		assert.True(t, isVirtualDevice(name), name)
	}
	for _, name := range []string{"sda", "nvme0n1", "mmcblk0", "vda"} {
		assert.False(t, isVirtualDevice(name), name)
	}
}

func TestIdentifyStringByteSwap(t *testing.T) {
	var id identifyData
	// "TE" -> слово 0x5445, "ST" -> 0x5354, дальше пробелы
	id[27] = 0x5445
	id[28] = 0x5354
	for i := 29; i <= 46; i++ {
		id[i] = 0x2020
	}
	assert.Equal(t, "TEST", identifyString(&id, 27, 46))
}

func TestAnalyzeImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0644))

	dev, err := Analyze(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), dev.SizeBytes)
	assert.Equal(t, TypeUnknown, dev.Type)
	assert.Equal(t, 512, dev.SectorSize)
	assert.False(t, dev.IsSystemDrive)
}

func TestAnalyzeMissingDevice(t *testing.T) {
	_, err := Analyze(filepath.Join(t.TempDir(), "no-such-device"))
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestDeviceTypeStrings(t *testing.T) {
	assert.Equal(t, "HDD", TypeHDD.String())
	assert.Equal(t, "NVMe", TypeNVMe.String())
	assert.Equal(t, "Unknown", TypeUnknown.String())
	assert.Equal(t, "SATA", InterfaceSATA.String())
}

func TestDiagnosticsRuns(t *testing.T) {
	report := RunDiagnostics()
	assert.NotEmpty(t, report.Platform)
	assert.True(t, report.EntropyOK)
}
