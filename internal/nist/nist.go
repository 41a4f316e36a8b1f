// Package nist реализует выбор метода санитизации по NIST SP 800-88 Rev.1.
// Выбор детерминирован: одинаковое устройство и категория всегда дают
// одинаковый алгоритм.
package nist

import (
	"errors"
	"fmt"

	"safewipe_enterprise/internal/device"
)

var (
	ErrUnknownCategory  = errors.New("неизвестная категория санитизации")
	ErrUnknownAlgorithm = errors.New("неизвестный алгоритм")
)

// Category категория санитизации по SP 800-88
type Category int

const (
	CategoryClear Category = iota
	CategoryPurge
	CategoryDestroy
)

func (c Category) String() string {
	switch c {
	case CategoryClear:
		return "clear"
	case CategoryPurge:
		return "purge"
	case CategoryDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// ParseCategory разбирает категорию из строки конфигурации или CLI
func ParseCategory(s string) (Category, error) {
	switch s {
	case "clear":
		return CategoryClear, nil
	case "purge":
		return CategoryPurge, nil
	case "destroy":
		return CategoryDestroy, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownCategory, s)
	}
}

// PatternKind вид паттерна одного прохода
type PatternKind int

const (
	PatternRandom PatternKind = iota
	PatternZeros
	PatternOnes
	PatternByte
)

func (k PatternKind) String() string {
	switch k {
	case PatternRandom:
		return "random"
	case PatternZeros:
		return "zeros"
	case PatternOnes:
		return "ones"
	case PatternByte:
		return "byte"
	default:
		return "unknown"
	}
}

// Pass один проход перезаписи
type Pass struct {
	Index int
	Kind  PatternKind
	Byte  byte // значим только при PatternByte
}

// FillByte возвращает байт заполнения для фиксированных паттернов
func (p Pass) FillByte() (byte, bool) {
	switch p.Kind {
	case PatternZeros:
		return 0x00, true
	case PatternOnes:
		return 0xFF, true
	case PatternByte:
		return p.Byte, true
	default:
		return 0, false
	}
}

// HardwareMethod аппаратная команда стирания
type HardwareMethod int

const (
	HWNone HardwareMethod = iota
	HWAtaSecureErase
	HWAtaEnhancedErase
	HWNvmeSanitize
	HWNvmeCryptoErase
)

func (h HardwareMethod) String() string {
	switch h {
	case HWAtaSecureErase:
		return "ata-secure-erase"
	case HWAtaEnhancedErase:
		return "ata-enhanced-secure-erase"
	case HWNvmeSanitize:
		return "nvme-sanitize"
	case HWNvmeCryptoErase:
		return "nvme-crypto-erase"
	default:
		return "none"
	}
}

// Algorithm полностью описывает выбранный метод санитизации.
// Для Hardware != HWNone программные проходы служат резервом на случай
// отказа аппаратной команды.
type Algorithm struct {
	Name        string
	Category    Category
	Passes      []Pass
	Hardware    HardwareMethod
	Description string
	// DestroyInstructions заполнено только для CategoryDestroy:
	// программа документирует физическое уничтожение, не выполняет его
	DestroyInstructions string
}

// IsExecutable сообщает, может ли алгоритм быть выполнен программой
func (a *Algorithm) IsExecutable() bool {
	return a.Category != CategoryDestroy
}

func passes(kinds ...interface{}) []Pass {
	out := make([]Pass, 0, len(kinds))
	for i, k := range kinds {
		switch v := k.(type) {
		case PatternKind:
			out = append(out, Pass{Index: i, Kind: v})
		case byte:
			out = append(out, Pass{Index: i, Kind: PatternByte, Byte: v})
		case int:
			out = append(out, Pass{Index: i, Kind: PatternByte, Byte: byte(v)})
		}
	}
	return out
}

// Каталог программных алгоритмов
var (
	algClear = Algorithm{
		Name:        "nist-clear",
		Category:    CategoryClear,
		Passes:      passes(PatternRandom),
		Description: "NIST SP 800-88 Clear: один проход криптографически случайными данными",
	}
	algPurge = Algorithm{
		Name:        "nist-purge",
		Category:    CategoryPurge,
		Passes:      passes(PatternRandom, 0x55, 0xAA),
		Description: "NIST SP 800-88 Purge: три прохода (random, 0x55, 0xAA)",
	}
	algPurgeEnhanced = Algorithm{
		Name:        "nist-purge-enhanced",
		Category:    CategoryPurge,
		Passes:      passes(PatternRandom, 0x55, 0xAA, 0x92, 0x49, 0x24, PatternRandom),
		Description: "Усиленный Purge: семь проходов для носителей повышенной чувствительности",
	}
	algDoD = Algorithm{
		Name:        "dod-5220-22-m",
		Category:    CategoryPurge,
		Passes:      passes(PatternZeros, PatternOnes, PatternRandom),
		Description: "DoD 5220.22-M: три прохода (0x00, 0xFF, random)",
	}
)

// Catalog возвращает все программные алгоритмы, доступные по имени
func Catalog() []Algorithm {
	return []Algorithm{algClear, algPurge, algPurgeEnhanced, algDoD}
}

// AlgorithmByName ищет алгоритм в каталоге
func AlgorithmByName(name string) (*Algorithm, error) {
	for _, a := range Catalog() {
		if a.Name == name {
			alg := a
			return &alg, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
}

// SelectAlgorithm выбирает метод для устройства и категории.
// Функция чистая: не трогает устройство и не зависит от внешнего состояния.
// Для Purge предпочитаются аппаратные команды; при их отсутствии —
// многопроходная программная перезапись (семь проходов при strictPurge).
func SelectAlgorithm(dev *device.Device, cat Category, strictPurge bool) (*Algorithm, error) {
	switch cat {
	case CategoryClear:
		alg := algClear
		return &alg, nil

	case CategoryPurge:
		software := algPurge
		if strictPurge {
			software = algPurgeEnhanced
		}

		if hw := hardwareMethod(dev); hw != HWNone {
			alg := software
			alg.Name = hw.String()
			alg.Hardware = hw
			alg.Description = "NIST SP 800-88 Purge: аппаратная команда " + hw.String() +
				", программный резерв " + software.Name
			return &alg, nil
		}
		alg := software
		return &alg, nil

	case CategoryDestroy:
		return &Algorithm{
			Name:                "physical-destroy",
			Category:            CategoryDestroy,
			Description:         "NIST SP 800-88 Destroy: физическое уничтожение носителя",
			DestroyInstructions: destroyInstructions(dev.Type),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, cat)
	}
}

// hardwareMethod выбирает аппаратную команду по возможностям устройства.
// NVMe Sanitize предпочтительнее crypto erase: уничтожает данные,
// а не только ключ.
func hardwareMethod(dev *device.Device) HardwareMethod {
	caps := dev.Capabilities
	switch {
	case caps.NvmeSanitize:
		return HWNvmeSanitize
	case caps.CryptoErase && dev.Type == device.TypeNVMe:
		return HWNvmeCryptoErase
	case caps.EnhancedSecureErase:
		return HWAtaEnhancedErase
	case caps.SecureErase:
		return HWAtaSecureErase
	default:
		return HWNone
	}
}

// destroyInstructions возвращает рекомендации по физическому уничтожению.
// Размагничивание неэффективно для флеш-памяти.
func destroyInstructions(t device.DeviceType) string {
	switch t {
	case device.TypeHDD:
		return "Размагничивание сертифицированным дегауссером, затем измельчение пластин " +
			"до фрагментов не крупнее 2 мм. Зафиксировать серийный номер до уничтожения."
	case device.TypeSSD, device.TypeNVMe:
		return "Измельчение или сжигание всех микросхем памяти. Размагничивание " +
			"неэффективно для флеш-памяти. Контроллер и чипы NAND уничтожаются полностью."
	case device.TypeUSB, device.TypeSD:
		return "Измельчение носителя целиком до фрагментов не крупнее 2 мм. " +
			"Размагничивание неэффективно для флеш-памяти."
	default:
		return "Измельчение носителя до фрагментов не крупнее 2 мм сертифицированным " +
			"оборудованием. При неизвестном типе носителя размагничивание не засчитывается."
	}
}
