//go:build linux

package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityPayload(t *testing.T) {
	payload := securityPayload(false, false)
	require.Len(t, payload, 512)
	assert.Equal(t, byte(0x00), payload[0])
	assert.Equal(t, byte('s'), payload[2], "пароль начинается со слова 1")

	// Бит enhanced выставляется только для ERASE UNIT
	assert.Equal(t, byte(0x00), securityPayload(true, false)[0])
	assert.Equal(t, byte(0x02), securityPayload(true, true)[0])
}

func TestEraseTimeoutEstimate(t *testing.T) {
	var id [256]uint16

	// Типовое значение: 60 единиц по 2 минуты
	id[89] = 60
	assert.Equal(t, uint32((120+30)*60*1000), eraseTimeoutMs(&id, false))

	// Значение не сообщено: берётся запас в 8 часов
	id[89] = 0
	assert.Equal(t, uint32((8*60+30)*60*1000), eraseTimeoutMs(&id, false))
	id[90] = 0x00FF
	assert.Equal(t, uint32((8*60+30)*60*1000), eraseTimeoutMs(&id, true))
}

func TestAtaReturnDescriptor(t *testing.T) {
	// Descriptor-формат sense с дескриптором ATA Return
	sense := make([]byte, 32)
	sense[0] = 0x72
	sense[7] = 14 // длина дополнительных данных
	sense[8] = 0x09
	sense[9] = 0x0C
	sense[8+13] = 0x50 // регистр статуса

	tf := ataReturnDescriptor(sense)
	require.NotNil(t, tf)
	assert.Equal(t, byte(0x50), tf[13])

	// Fixed-формат sense дескрипторов не содержит
	sense[0] = 0x70
	assert.Nil(t, ataReturnDescriptor(sense))

	assert.Nil(t, ataReturnDescriptor(nil))
}
