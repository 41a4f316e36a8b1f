package nist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safewipe_enterprise/internal/device"
)

func testDevice(t device.DeviceType, caps device.Capabilities) *device.Device {
	return &device.Device{
		Path:         "/dev/sdx",
		Model:        "Test Drive",
		SizeBytes:    1024 * 1024 * 1024,
		SectorSize:   512,
		Type:         t,
		Capabilities: caps,
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
		wantErr  bool
	}{
		{"clear", CategoryClear, false},
		{"purge", CategoryPurge, false},
		{"destroy", CategoryDestroy, false},
		{"", 0, true},
		{"erase", 0, true},
		{"Clear", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cat, err := ParseCategory(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cat)
		})
	}
}

func TestSelectClearSinglePass(t *testing.T) {
	dev := testDevice(device.TypeHDD, device.Capabilities{})

	alg, err := SelectAlgorithm(dev, CategoryClear, false)
	require.NoError(t, err)

	assert.Equal(t, CategoryClear, alg.Category)
	assert.Equal(t, HWNone, alg.Hardware)
	require.Len(t, alg.Passes, 1)
	assert.Equal(t, PatternRandom, alg.Passes[0].Kind)
}

func TestSelectPurgeSoftwareFallback(t *testing.T) {
	// Без аппаратных возможностей Purge — многопроходная перезапись
	dev := testDevice(device.TypeHDD, device.Capabilities{})

	alg, err := SelectAlgorithm(dev, CategoryPurge, false)
	require.NoError(t, err)

	assert.Equal(t, HWNone, alg.Hardware)
	require.Len(t, alg.Passes, 3)
	assert.Equal(t, PatternRandom, alg.Passes[0].Kind)

	b1, ok := alg.Passes[1].FillByte()
	require.True(t, ok)
	assert.Equal(t, byte(0x55), b1)

	b2, ok := alg.Passes[2].FillByte()
	require.True(t, ok)
	assert.Equal(t, byte(0xAA), b2)
}

func TestSelectPurgeStrictSevenPasses(t *testing.T) {
	dev := testDevice(device.TypeHDD, device.Capabilities{})

	alg, err := SelectAlgorithm(dev, CategoryPurge, true)
	require.NoError(t, err)
	require.Len(t, alg.Passes, 7)
	assert.Equal(t, PatternRandom, alg.Passes[0].Kind)
	assert.Equal(t, PatternRandom, alg.Passes[6].Kind)

	expected := []byte{0x55, 0xAA, 0x92, 0x49, 0x24}
	for i, want := range expected {
		got, ok := alg.Passes[i+1].FillByte()
		require.True(t, ok)
		assert.Equal(t, want, got, "проход %d", i+1)
	}
}

func TestSelectPurgeHardwarePreference(t *testing.T) {
	tests := []struct {
		name     string
		devType  device.DeviceType
		caps     device.Capabilities
		expected HardwareMethod
	}{
		{
			name:     "nvme sanitize предпочтительнее crypto erase",
			devType:  device.TypeNVMe,
			caps:     device.Capabilities{NvmeSanitize: true, CryptoErase: true},
			expected: HWNvmeSanitize,
		},
		{
			name:     "nvme только crypto erase",
			devType:  device.TypeNVMe,
			caps:     device.Capabilities{CryptoErase: true},
			expected: HWNvmeCryptoErase,
		},
		{
			name:     "enhanced erase предпочтительнее обычного",
			devType:  device.TypeHDD,
			caps:     device.Capabilities{SecureErase: true, EnhancedSecureErase: true},
			expected: HWAtaEnhancedErase,
		},
		{
			name:     "обычный secure erase",
			devType:  device.TypeSSD,
			caps:     device.Capabilities{SecureErase: true},
			expected: HWAtaSecureErase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testDevice(tt.devType, tt.caps)
			alg, err := SelectAlgorithm(dev, CategoryPurge, false)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, alg.Hardware)
			// Программный резерв сохраняется при любой аппаратной команде
			assert.NotEmpty(t, alg.Passes)
		})
	}
}

func TestSelectDeterministic(t *testing.T) {
	// Один и тот же вход всегда даёт один и тот же алгоритм
	dev := testDevice(device.TypeNVMe, device.Capabilities{NvmeSanitize: true})

	first, err := SelectAlgorithm(dev, CategoryPurge, false)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := SelectAlgorithm(dev, CategoryPurge, false)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSelectDestroyNotExecutable(t *testing.T) {
	for _, devType := range []device.DeviceType{
		device.TypeHDD, device.TypeSSD, device.TypeNVMe, device.TypeUSB, device.TypeSD, device.TypeUnknown,
	} {
		t.Run(devType.String(), func(t *testing.T) {
			dev := testDevice(devType, device.Capabilities{})
			alg, err := SelectAlgorithm(dev, CategoryDestroy, false)
			require.NoError(t, err)

			assert.False(t, alg.IsExecutable())
			assert.Empty(t, alg.Passes)
			assert.NotEmpty(t, alg.DestroyInstructions)
		})
	}
}

func TestDestroyInstructionsFlashNoDegauss(t *testing.T) {
	// Для флеш-памяти размагничивание не рекомендуется
	for _, devType := range []device.DeviceType{device.TypeSSD, device.TypeNVMe, device.TypeUSB, device.TypeSD} {
		dev := testDevice(devType, device.Capabilities{})
		alg, err := SelectAlgorithm(dev, CategoryDestroy, false)
		require.NoError(t, err)
		assert.Contains(t, alg.DestroyInstructions, "неэффективно")
	}
}

func TestAlgorithmByName(t *testing.T) {
	for _, a := range Catalog() {
		found, err := AlgorithmByName(a.Name)
		require.NoError(t, err)
		assert.Equal(t, a.Name, found.Name)
	}

	_, err := AlgorithmByName("nonexistent")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestPassIndexesSequential(t *testing.T) {
	for _, a := range Catalog() {
		for i, p := range a.Passes {
			assert.Equal(t, i, p.Index, "алгоритм %s", a.Name)
		}
	}
}
