//go:build linux

package hardware

import (
	"context"
	"fmt"
	"os"
	"time"

	"safewipe_enterprise/internal/logging"
	"safewipe_enterprise/internal/nist"
)

// Команды ATA security feature set
const (
	ataSecuritySetPassword     = 0xF1
	ataSecurityErasePrepare    = 0xF3
	ataSecurityEraseUnit       = 0xF4
	ataSecurityDisablePassword = 0xF6
	ataIdentifyDevice          = 0xEC
	ataReadNativeMaxExt        = 0x27
	ataSetMaxExt               = 0x37
	ataDeviceConfiguration     = 0xB1

	dcoFeatureRestore  = 0xC0
	dcoFeatureIdentify = 0xC2
)

// Временный пароль на период стирания. Снимается всегда,
// даже при сбое самого стирания.
var erasePassword = []byte("safewipe-temporary")

// ataSecureErase выполняет ATA SECURITY ERASE UNIT.
// Последовательность: SET PASSWORD → ERASE PREPARE → ERASE UNIT →
// DISABLE PASSWORD. Снятие пароля гарантируется defer: диск с
// оставшимся паролем непригоден к дальнейшему использованию.
func ataSecureErase(ctx context.Context, path string, enhanced bool, logger *logging.EnterpriseLogger) (*Outcome, error) {
	started := time.Now()
	method := nist.HWAtaSecureErase
	if enhanced {
		method = nist.HWAtaEnhancedErase
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &DispatchError{Method: method, Device: path, Err: err}
	}
	defer f.Close()
	fd := f.Fd()

	id, err := readIdentify(fd)
	if err != nil {
		return nil, &DispatchError{Method: method, Device: path, Err: err}
	}
	security := id[128]
	if security&0x0001 == 0 {
		return nil, &DispatchError{Method: method, Device: path, Err: ErrUnsupported}
	}
	if security&0x0008 != 0 {
		return nil, &DispatchError{Method: method, Device: path, Err: ErrSecurityFrozen}
	}
	if enhanced && security&0x0020 == 0 {
		return nil, &DispatchError{Method: method, Device: path, Err: fmt.Errorf("enhanced erase: %w", ErrUnsupported)}
	}

	// Оценка длительности из IDENTIFY: слова 89/90, единица — 2 минуты
	timeoutMs := eraseTimeoutMs(id, enhanced)

	logger.Log("INFO", "Установка временного пароля ATA security", "device", path)
	if err := securityCommand(fd, ataSecuritySetPassword, securityPayload(enhanced, false), 0); err != nil {
		return nil, &DispatchError{Method: method, Device: path, Err: fmt.Errorf("SET PASSWORD: %w", err)}
	}

	outcome := &Outcome{Method: method}
	passwordSet := true
	defer func() {
		if !passwordSet {
			return
		}
		if derr := securityCommand(fd, ataSecurityDisablePassword, securityPayload(enhanced, false), 0); derr != nil {
			logger.Log("ERROR", "Не удалось снять пароль ATA security",
				"device", path, "error", derr.Error())
			outcome.Warnings = append(outcome.Warnings, ErrPasswordNotCleared.Error())
		}
	}()

	if _, err := runAta(fd, ataCommand{Command: ataSecurityErasePrepare, Device: 0xA0}, nil, false, 30_000); err != nil {
		return outcome, &DispatchError{Method: method, Device: path, Err: fmt.Errorf("ERASE PREPARE: %w", err)}
	}

	logger.Log("INFO", "Запуск SECURITY ERASE UNIT",
		"device", path, "enhanced", enhanced, "timeout_ms", timeoutMs)

	done := make(chan error, 1)
	go func() {
		done <- securityCommand(fd, ataSecurityEraseUnit, securityPayload(enhanced, enhanced), timeoutMs)
	}()

	select {
	case err := <-done:
		if err != nil {
			return outcome, &DispatchError{Method: method, Device: path, Err: fmt.Errorf("ERASE UNIT: %w", err)}
		}
	case <-ctx.Done():
		// Команду не прервать с хоста; дожидаемся, но сообщаем об отмене
		<-done
		return outcome, ctx.Err()
	}

	if derr := securityCommand(fd, ataSecurityDisablePassword, securityPayload(enhanced, false), 0); derr != nil {
		outcome.Warnings = append(outcome.Warnings, ErrPasswordNotCleared.Error())
		passwordSet = false
		outcome.Duration = time.Since(started)
		return outcome, &DispatchError{Method: method, Device: path, Err: ErrPasswordNotCleared}
	}
	passwordSet = false

	outcome.Duration = time.Since(started)
	return outcome, nil
}

// securityCommand отправляет команду security с 512-байтным блоком данных
func securityCommand(fd uintptr, command uint8, payload []byte, timeoutMs uint32) error {
	if timeoutMs == 0 {
		timeoutMs = 30_000
	}
	_, err := runAta(fd, ataCommand{
		Command: command,
		Count:   1,
		Device:  0xA0,
	}, payload, false, timeoutMs)
	return err
}

// securityPayload формирует 512-байтный блок данных команд security.
// Слово 0: бит 1 — enhanced erase (только для ERASE UNIT),
// слова 1..16 — пароль.
func securityPayload(enhanced, eraseUnit bool) []byte {
	buf := make([]byte, 512)
	if enhanced && eraseUnit {
		buf[0] = 0x02
	}
	copy(buf[2:], erasePassword)
	return buf
}

func readIdentify(fd uintptr) (*[256]uint16, error) {
	data := make([]byte, 512)
	if _, err := runAta(fd, ataCommand{
		Command: ataIdentifyDevice,
		Count:   1,
		Device:  0xA0,
	}, data, true, 10_000); err != nil {
		return nil, fmt.Errorf("IDENTIFY DEVICE: %w", err)
	}
	var id [256]uint16
	for i := 0; i < 256; i++ {
		id[i] = uint16(data[i*2]) | uint16(data[i*2+1])<<8
	}
	return &id, nil
}

// eraseTimeoutMs оценивает время стирания по словам 89/90 IDENTIFY
func eraseTimeoutMs(id *[256]uint16, enhanced bool) uint32 {
	word := id[89]
	if enhanced {
		word = id[90]
	}
	minutes := uint32(word&0x00FF) * 2
	if minutes == 0 || word&0x00FF == 0x00FF {
		minutes = 8 * 60 // значение не сообщено, берём запас
	}
	return (minutes + 30) * 60 * 1000
}

// ataProbeHiddenAreas сравнивает видимую ёмкость с native max
// и проверяет наличие DCO
func ataProbeHiddenAreas(path string) (*HiddenAreas, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fd := f.Fd()

	id, err := readIdentify(fd)
	if err != nil {
		return nil, err
	}
	visible := int64(id[100]) | int64(id[101])<<16 | int64(id[102])<<32 | int64(id[103])<<48

	areas := &HiddenAreas{VisibleSectors: visible}

	// READ NATIVE MAX ADDRESS EXT возвращает LBA в taskfile
	sense, err := runAta(fd, ataCommand{
		Command: ataReadNativeMaxExt,
		Device:  0x40,
		Extend:  true,
	}, nil, false, 10_000)
	if err == nil {
		if tf := ataReturnDescriptor(sense); tf != nil {
			native := int64(tf[7]) | int64(tf[9])<<8 | int64(tf[11])<<16 |
				int64(tf[6])<<24 | int64(tf[8])<<32 | int64(tf[10])<<40
			areas.NativeSectors = native + 1
			areas.HPAPresent = areas.NativeSectors > visible
		}
	}

	// DCO IDENTIFY: сам факт успешного ответа означает активную конфигурацию
	dcoData := make([]byte, 512)
	if _, err := runAta(fd, ataCommand{
		Command:  ataDeviceConfiguration,
		Features: dcoFeatureIdentify,
		Count:    1,
		Device:   0xA0,
	}, dcoData, true, 10_000); err == nil {
		dcoMax := int64(dcoData[6]) | int64(dcoData[7])<<8 | int64(dcoData[8])<<16 |
			int64(dcoData[9])<<24 | int64(dcoData[10])<<32 | int64(dcoData[11])<<40
		if dcoMax > 0 && areas.NativeSectors > 0 && dcoMax+1 > areas.NativeSectors {
			areas.DCOPresent = true
		}
	}

	return areas, nil
}

// ataRemoveHiddenAreas снимает HPA (SET MAX ADDRESS EXT до native max)
// и сбрасывает DCO (DEVICE CONFIGURATION RESTORE)
func ataRemoveHiddenAreas(path string) error {
	areas, err := ataProbeHiddenAreas(path)
	if err != nil {
		return err
	}
	if !areas.Any() {
		return nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	fd := f.Fd()

	if areas.DCOPresent {
		if _, err := runAta(fd, ataCommand{
			Command:  ataDeviceConfiguration,
			Features: dcoFeatureRestore,
			Device:   0xA0,
		}, nil, false, 30_000); err != nil {
			return fmt.Errorf("DCO RESTORE: %w", err)
		}
	}

	if areas.HPAPresent {
		maxLBA := uint64(areas.NativeSectors - 1)
		if _, err := runAta(fd, ataCommand{
			Command: ataSetMaxExt,
			LBA:     maxLBA,
			Device:  0x40,
			Extend:  true,
		}, nil, false, 30_000); err != nil {
			return fmt.Errorf("SET MAX ADDRESS EXT: %w", err)
		}
	}
	return nil
}
