//go:build linux

package hardware

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SG_IO и ATA PASS-THROUGH (16): единственный переносимый способ
// отправить команды ATA security на libata-устройствах.
const (
	sgIO             = 0x2285
	sgDxferNone      = -1
	sgDxferToDev     = -2
	sgDxferFromDev   = -3
	ataPassThrough16 = 0x85

	protocolNonData = 3
	protocolPioIn   = 4
	protocolPioOut  = 5
)

// sgIoHdr повторяет struct sg_io_hdr из <scsi/sg.h>
type sgIoHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         uintptr
	cmdp           uintptr
	sbp            uintptr
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

// ataCommand регистры taskfile одной команды ATA
type ataCommand struct {
	Command  uint8
	Features uint16
	Count    uint16
	LBA      uint64
	Device   uint8
	// Extend включает 48-битную адресацию (EXT-команды)
	Extend bool
}

// runAta выполняет команду ATA через SG_IO. data — буфер PIO data-out
// (nil для команд без данных), dataIn — направление data-in.
// Возвращает sense-буфер для разбора возвращённого taskfile.
func runAta(fd uintptr, cmd ataCommand, data []byte, dataIn bool, timeoutMs uint32) ([]byte, error) {
	cdb := make([]byte, 16)
	cdb[0] = ataPassThrough16

	protocol := uint8(protocolNonData)
	direction := int32(sgDxferNone)
	var dxferp uintptr
	var dxferLen uint32
	if len(data) > 0 {
		if dataIn {
			protocol = protocolPioIn
			direction = sgDxferFromDev
		} else {
			protocol = protocolPioOut
			direction = sgDxferToDev
		}
		dxferp = uintptr(unsafe.Pointer(&data[0]))
		dxferLen = uint32(len(data))
	}

	extend := uint8(0)
	if cmd.Extend {
		extend = 1
	}
	cdb[1] = protocol<<1 | extend

	// ck_cond=1: запросить возврат taskfile в sense даже при успехе
	cdb[2] = 0x20
	if len(data) > 0 {
		// byt_blok=1, t_length=10b: длина в секторах из поля count
		cdb[2] |= 0x06
		if dataIn {
			cdb[2] |= 0x08 // t_dir: от устройства
		}
	}

	cdb[3] = byte(cmd.Features >> 8)
	cdb[4] = byte(cmd.Features)
	cdb[5] = byte(cmd.Count >> 8)
	cdb[6] = byte(cmd.Count)
	cdb[7] = byte(cmd.LBA >> 24)
	cdb[8] = byte(cmd.LBA)
	cdb[9] = byte(cmd.LBA >> 32)
	cdb[10] = byte(cmd.LBA >> 8)
	cdb[11] = byte(cmd.LBA >> 40)
	cdb[12] = byte(cmd.LBA >> 16)
	cdb[13] = cmd.Device
	cdb[14] = cmd.Command

	sense := make([]byte, 32)
	hdr := sgIoHdr{
		interfaceID:    'S',
		dxferDirection: direction,
		cmdLen:         uint8(len(cdb)),
		mxSbLen:        uint8(len(sense)),
		dxferLen:       dxferLen,
		dxferp:         dxferp,
		cmdp:           uintptr(unsafe.Pointer(&cdb[0])),
		sbp:            uintptr(unsafe.Pointer(&sense[0])),
		timeout:        timeoutMs,
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, sgIO, uintptr(unsafe.Pointer(&hdr)))
	if errno != 0 {
		return nil, fmt.Errorf("SG_IO не выполнен: %w", errno)
	}
	if hdr.hostStatus != 0 || hdr.driverStatus&0x0f != 0 {
		return nil, fmt.Errorf("транспортная ошибка SG_IO: host=0x%x driver=0x%x",
			hdr.hostStatus, hdr.driverStatus)
	}

	// Регистр ошибки из дескриптора ATA Return (0x09) в sense
	if tf := ataReturnDescriptor(sense); tf != nil {
		status, errReg := tf[13], tf[3]
		if status&0x01 != 0 {
			return sense, fmt.Errorf("устройство отклонило команду 0x%02X: error=0x%02X", cmd.Command, errReg)
		}
	}
	return sense, nil
}

// ataReturnDescriptor ищет дескриптор ATA Return (код 0x09)
// в sense-данных descriptor-формата
func ataReturnDescriptor(sense []byte) []byte {
	if len(sense) < 8 || sense[0]&0x7f != 0x72 {
		return nil
	}
	total := int(sense[7]) + 8
	if total > len(sense) {
		total = len(sense)
	}
	for pos := 8; pos+2 <= total; {
		dlen := int(sense[pos+1]) + 2
		if sense[pos] == 0x09 && pos+dlen <= total {
			return sense[pos : pos+dlen]
		}
		pos += dlen
	}
	return nil
}
