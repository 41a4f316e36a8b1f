//go:build linux

package hardware

import (
	"context"
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"safewipe_enterprise/internal/logging"
	"safewipe_enterprise/internal/nist"
)

const (
	nvmeIoctlAdminCmd = 0xC0484E41 // _IOWR('N', 0x41, struct nvme_admin_cmd)

	nvmeOpFormatNVM = 0x80
	nvmeOpSanitize  = 0x84
	nvmeOpGetLog    = 0x02

	sanitizeActionBlockErase  = 0x02
	sanitizeActionCryptoErase = 0x04

	logPageSanitizeStatus = 0x81
)

// nvmePassthruCmd повторяет struct nvme_admin_cmd из <linux/nvme_ioctl.h>
type nvmePassthruCmd struct {
	opcode      uint8
	flags       uint8
	rsvd1       uint16
	nsid        uint32
	cdw2        uint32
	cdw3        uint32
	metadata    uint64
	addr        uint64
	metadataLen uint32
	dataLen     uint32
	cdw10       uint32
	cdw11       uint32
	cdw12       uint32
	cdw13       uint32
	cdw14       uint32
	cdw15       uint32
	timeoutMs   uint32
	result      uint32
}

func nvmeAdmin(fd uintptr, cmd *nvmePassthruCmd) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, nvmeIoctlAdminCmd, uintptr(unsafe.Pointer(cmd)))
	if errno != 0 {
		return fmt.Errorf("NVMe admin 0x%02X: %w", cmd.opcode, errno)
	}
	return nil
}

// nvmeSanitize запускает Sanitize (block erase) и дожидается завершения
// по журналу состояния. Команда асинхронна: контроллер стирает в фоне.
func nvmeSanitize(ctx context.Context, path string, crypto bool, logger *logging.EnterpriseLogger) (*Outcome, error) {
	started := time.Now()
	method := nist.HWNvmeSanitize
	action := uint32(sanitizeActionBlockErase)
	if crypto {
		method = nist.HWNvmeCryptoErase
		action = sanitizeActionCryptoErase
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &DispatchError{Method: method, Device: path, Err: err}
	}
	defer f.Close()
	fd := f.Fd()

	logger.Log("INFO", "Запуск NVMe Sanitize", "device", path, "action", action)
	cmd := &nvmePassthruCmd{
		opcode:    nvmeOpSanitize,
		cdw10:     action,
		timeoutMs: 60_000,
	}
	if err := nvmeAdmin(fd, cmd); err != nil {
		// Crypto erase через Format NVM (SES=2) как резерв:
		// часть контроллеров не реализует команду Sanitize
		if crypto {
			return nvmeFormatCrypto(fd, path, started, logger)
		}
		return nil, &DispatchError{Method: method, Device: path, Err: err}
	}

	if err := waitSanitize(ctx, fd); err != nil {
		return nil, &DispatchError{Method: method, Device: path, Err: err}
	}

	return &Outcome{Method: method, Duration: time.Since(started)}, nil
}

// nvmeFormatCrypto выполняет Format NVM с Secure Erase Settings = 2
// (криптографическое стирание) по всем пространствам имён
func nvmeFormatCrypto(fd uintptr, path string, started time.Time, logger *logging.EnterpriseLogger) (*Outcome, error) {
	logger.Log("INFO", "Sanitize недоступна, выполняется Format NVM SES=2", "device", path)
	cmd := &nvmePassthruCmd{
		opcode:    nvmeOpFormatNVM,
		nsid:      0xFFFFFFFF,
		cdw10:     2 << 9, // SES=2: crypto erase
		timeoutMs: 600_000,
	}
	if err := nvmeAdmin(fd, cmd); err != nil {
		return nil, &DispatchError{Method: nist.HWNvmeCryptoErase, Device: path, Err: err}
	}
	return &Outcome{
		Method:   nist.HWNvmeCryptoErase,
		Duration: time.Since(started),
		Warnings: []string{"Sanitize недоступна, выполнен Format NVM SES=2"},
	}, nil
}

// waitSanitize опрашивает журнал Sanitize Status (0x81) до завершения.
// SSTAT биты 2:0 — 0x2 в процессе, 0x1 успех, 0x3 отказ.
func waitSanitize(ctx context.Context, fd uintptr) error {
	buf := make([]byte, 512)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Sanitize не прерывается с хоста; состояние останется в журнале
			return ctx.Err()
		case <-ticker.C:
		}

		numd := uint32(len(buf)/4 - 1)
		cmd := &nvmePassthruCmd{
			opcode:    nvmeOpGetLog,
			nsid:      0xFFFFFFFF,
			addr:      uint64(uintptr(unsafe.Pointer(&buf[0]))),
			dataLen:   uint32(len(buf)),
			cdw10:     logPageSanitizeStatus | numd<<16,
			timeoutMs: 10_000,
		}
		if err := nvmeAdmin(fd, cmd); err != nil {
			return fmt.Errorf("чтение журнала Sanitize Status: %w", err)
		}

		sstat := uint16(buf[2]) | uint16(buf[3])<<8
		switch sstat & 0x07 {
		case 0x1:
			return nil
		case 0x2:
			continue
		case 0x3:
			return fmt.Errorf("контроллер сообщил об отказе Sanitize: sstat=0x%04X", sstat)
		default:
			return nil
		}
	}
}
