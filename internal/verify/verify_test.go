package verify

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safewipe_enterprise/internal/logging"
)

func testVerifier(samples int) *Verifier {
	return NewVerifier(Config{
		Samples:          samples,
		SampleSize:       512,
		QualityThreshold: 0.98,
	}, logging.NewNopLogger())
}

func randomDisk(t *testing.T, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestVerifyCleanRandomData(t *testing.T) {
	data := randomDisk(t, 1024*1024)

	report, err := testVerifier(100).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Empty(t, report.SignatureHits)
	assert.Equal(t, 1.0, report.QualityScore)
}

func TestVerifyCleanZeroData(t *testing.T) {
	// Нулевой носитель — нормальный результат аппаратного стирания
	data := make([]byte, 1024*1024)

	report, err := testVerifier(100).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)
	assert.True(t, report.Passed)
}

// bootSector собирает правдоподобный загрузочный сектор FAT32
func bootSector() []byte {
	sector := make([]byte, 512)
	sector[0] = 0xEB
	copy(sector[82:], "FAT32   ")
	sector[510] = 0x55
	sector[511] = 0xAA
	return sector
}

func TestVerifyDetectsBootSectorAtStart(t *testing.T) {
	// Первый сектор проверяется всегда: уцелевшая таблица разделов
	// не может проскочить мимо выборки
	data := make([]byte, 1024*1024)
	copy(data, bootSector())

	report, err := testVerifier(50).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)

	assert.False(t, report.Passed, "сигнатура ФС должна завалить проверку")
	require.NotEmpty(t, report.SignatureHits)
	assert.Equal(t, "FAT32", report.SignatureHits[0].Signature)
	assert.Equal(t, int64(0), report.SignatureHits[0].Offset)
}

func TestVerifySignatureAlwaysFails(t *testing.T) {
	// Passed ложно при любой найденной сигнатуре, даже если качество
	// выше порога
	data := make([]byte, 1024*1024)
	copy(data, bootSector())

	report, err := testVerifier(1000).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.NotEmpty(t, report.SignatureHits)
}

func TestVerifyDetectsGPT(t *testing.T) {
	// Заголовок GPT лежит в секторе 1: выборка с начала носителя
	// при размере 4096 покрывает его гарантированно
	data := make([]byte, 1024*1024)
	copy(data[512:], "EFI PART")

	v := NewVerifier(Config{Samples: 50, SampleSize: 4096, QualityThreshold: 0.98}, logging.NewNopLogger())
	report, err := v.Verify(context.Background(), bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)
	assert.False(t, report.Passed)
	require.NotEmpty(t, report.SignatureHits)
	assert.Equal(t, "GPT", report.SignatureHits[0].Signature)
}

func TestVerifyExpectedByteMatch(t *testing.T) {
	data := bytes.Repeat([]byte{0xAA}, 1024*1024)
	expected := byte(0xAA)

	report, err := testVerifier(100).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), &expected)
	require.NoError(t, err)
	assert.True(t, report.Passed)
}

func TestVerifyExpectedByteMismatch(t *testing.T) {
	// Носитель залит не тем паттерном: каждая выборка подозрительна
	data := bytes.Repeat([]byte{0x00}, 1024*1024)
	expected := byte(0xAA)

	report, err := testVerifier(100).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), &expected)
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.Equal(t, report.Samples, report.SuspiciousSamples)
}

func TestVerifyDetectsResidualText(t *testing.T) {
	data := make([]byte, 1024*1024)
	text := []byte("Confidential quarterly report: revenue figures and customer accounts follow below.")
	for off := 0; off+len(text) < len(data); off += 4096 {
		copy(data[off:], text)
	}

	report, err := testVerifier(200).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)
	assert.False(t, report.Passed, "остатки текста должны понизить качество")
	assert.Greater(t, report.SuspiciousSamples, 0)
}

func TestVerifyPatternFillNotSuspicious(t *testing.T) {
	// Заливки 0x55/0xAA/0xFF — легитимные паттерны перезаписи
	for _, b := range []byte{0x55, 0xAA, 0xFF, 0x00} {
		data := bytes.Repeat([]byte{b}, 256*1024)
		report, err := testVerifier(50).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), nil)
		require.NoError(t, err)
		assert.True(t, report.Passed, "байт 0x%02X", b)
	}
}

func TestVerifyForeignFillSuspicious(t *testing.T) {
	// Однородная заливка посторонним байтом — след прежних данных
	data := bytes.Repeat([]byte{0x42}, 256*1024)

	report, err := testVerifier(50).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)
	assert.False(t, report.Passed)
}

func TestVerifyCancelled(t *testing.T) {
	data := make([]byte, 1024*1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testVerifier(100).Verify(ctx, bytes.NewReader(data), int64(len(data)), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyTinyTarget(t *testing.T) {
	// Цель меньше размера выборки не должна ломать проверку
	data := make([]byte, 256)

	report, err := testVerifier(10).Verify(context.Background(), bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)
	assert.True(t, report.Passed)
}
