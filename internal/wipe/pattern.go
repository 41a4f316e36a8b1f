package wipe

import (
	"crypto/rand"
	"fmt"

	"safewipe_enterprise/internal/nist"
)

// FillBuffer заполняет буфер данными прохода. Случайные данные всегда
// берутся из crypto/rand: предсказуемый ГПСЧ обесценивает случайный проход.
func FillBuffer(buf []byte, pass nist.Pass) error {
	if b, ok := pass.FillByte(); ok {
		for i := range buf {
			buf[i] = b
		}
		return nil
	}
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("не удалось получить случайные данные: %w", err)
	}
	return nil
}
