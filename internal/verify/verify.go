// Package verify реализует выборочную проверку качества стирания.
// Проверка читает случайные участки носителя и ищет следы прежних
// данных: сигнатуры файловых систем, остатки текста, области,
// не совпадающие с ожидаемым паттерном.
package verify

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"safewipe_enterprise/internal/logging"
)

// Config параметры проверки
type Config struct {
	Samples          int
	SampleSize       int
	QualityThreshold float64
}

// SignatureHit найденная сигнатура файловой системы или таблицы разделов
type SignatureHit struct {
	Offset    int64  `json:"offset"`
	Signature string `json:"signature"`
}

// Report итог проверки. Passed истинно только при достаточном
// качестве и полном отсутствии сигнатур.
type Report struct {
	Samples           int            `json:"samples"`
	SuspiciousSamples int            `json:"suspicious_samples"`
	SignatureHits     []SignatureHit `json:"signature_hits,omitempty"`
	QualityScore      float64        `json:"quality_score"`
	Threshold         float64        `json:"threshold"`
	Passed            bool           `json:"passed"`
	SampledBytes      int64          `json:"sampled_bytes"`
	Duration          time.Duration  `json:"duration"`
}

// Verifier выполняет выборочную проверку носителя
type Verifier struct {
	cfg    Config
	logger *logging.EnterpriseLogger
}

func NewVerifier(cfg Config, logger *logging.EnterpriseLogger) *Verifier {
	if cfg.Samples <= 0 {
		cfg.Samples = 1000
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 4096
	}
	if cfg.QualityThreshold <= 0 || cfg.QualityThreshold > 1 {
		cfg.QualityThreshold = 0.98
	}
	return &Verifier{cfg: cfg, logger: logger}
}

// VerifyPath открывает устройство на чтение и выполняет проверку.
// expectedByte — байт финального прохода; nil, если финальный проход
// случайный или стирание было аппаратным.
func (v *Verifier) VerifyPath(ctx context.Context, path string, expectedByte *byte) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть %s для проверки: %w", path, err)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("не удалось определить размер %s: %w", path, err)
	}
	return v.Verify(ctx, f, size, expectedByte)
}

// Verify проверяет цель по случайной выборке. Первый и последний сектор
// проверяются всегда: там живут таблицы разделов и резервный GPT.
func (v *Verifier) Verify(ctx context.Context, r io.ReaderAt, size int64, expectedByte *byte) (*Report, error) {
	started := time.Now()
	sampleSize := int64(v.cfg.SampleSize)
	if sampleSize > size {
		sampleSize = size
	}

	offsets := v.sampleOffsets(size, sampleSize)
	report := &Report{
		Samples:   len(offsets),
		Threshold: v.cfg.QualityThreshold,
	}

	buf := make([]byte, sampleSize)
	for _, offset := range offsets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("ошибка чтения по смещению %d: %w", offset, err)
		}
		sample := buf[:n]
		report.SampledBytes += int64(n)

		if hit := scanSignatures(sample, offset); hit != nil {
			report.SignatureHits = append(report.SignatureHits, *hit)
			report.SuspiciousSamples++
			continue
		}
		if suspicious(sample, expectedByte) {
			report.SuspiciousSamples++
		}
	}

	if report.Samples > 0 {
		report.QualityScore = 1.0 - float64(report.SuspiciousSamples)/float64(report.Samples)
	}
	report.Passed = report.QualityScore >= report.Threshold && len(report.SignatureHits) == 0
	report.Duration = time.Since(started)

	v.logger.Log("INFO", "Проверка стирания завершена",
		"samples", report.Samples,
		"suspicious", report.SuspiciousSamples,
		"signature_hits", len(report.SignatureHits),
		"quality", report.QualityScore,
		"passed", report.Passed)
	return report, nil
}

// sampleOffsets строит набор смещений: первый сектор, последний сектор,
// остальные — равномерно случайные с выравниванием по 512 байт.
// Источник случайности сеется из crypto/rand: выборку нельзя предсказать.
func (v *Verifier) sampleOffsets(size, sampleSize int64) []int64 {
	var seed [8]byte
	// при сбое crypto/rand зерно смешивается хотя бы с временем
	_, _ = crand.Read(seed[:])
	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:])) ^ time.Now().UnixNano()))

	offsets := []int64{0}
	if last := size - sampleSize; last > 0 {
		offsets = append(offsets, last&^511)
	}
	maxOffset := size - sampleSize
	for len(offsets) < v.cfg.Samples && maxOffset > 0 {
		off := rng.Int63n(maxOffset + 1) &^ 511
		offsets = append(offsets, off)
	}
	return offsets
}

var fsMarkers = [][]byte{
	[]byte("FAT12"), []byte("FAT16"), []byte("FAT32"), []byte("EXFAT"),
	[]byte("NTFS    "), []byte("MSDOS"),
}

// scanSignatures ищет сигнатуры файловых систем и таблиц разделов.
// Сигнатура в выборке означает, что на носителе уцелели метаданные.
func scanSignatures(sample []byte, offset int64) *SignatureHit {
	// GPT-заголовок
	if idx := bytes.Index(sample, []byte("EFI PART")); idx >= 0 {
		return &SignatureHit{Offset: offset + int64(idx), Signature: "GPT"}
	}

	// Загрузочный сектор: 0x55AA в конце сектора вместе с маркером ФС.
	// Одной лишь подписи 0x55AA мало: байты 0x55/0xAA встречаются
	// в паттернах перезаписи.
	for secStart := 0; secStart+512 <= len(sample); secStart += 512 {
		sector := sample[secStart : secStart+512]
		if sector[510] != 0x55 || sector[511] != 0xAA {
			continue
		}
		for _, marker := range fsMarkers {
			if bytes.Contains(sector[:90], marker) {
				return &SignatureHit{Offset: offset + int64(secStart), Signature: string(bytes.TrimSpace(marker))}
			}
		}
		if validPartitionTable(sector) {
			return &SignatureHit{Offset: offset + int64(secStart), Signature: "MBR"}
		}
	}

	// Суперблок ext: магия 0xEF53 по смещению 0x38 внутри суперблока,
	// который лежит на 1024 байтах от начала раздела
	for pos := 1080; pos+2 <= len(sample); pos += 1024 {
		if sample[pos] == 0x53 && sample[pos+1] == 0xEF && extSuperblockPlausible(sample, pos-0x38) {
			return &SignatureHit{Offset: offset + int64(pos), Signature: "ext"}
		}
	}
	return nil
}

// validPartitionTable проверяет, похожи ли байты 446..509 на таблицу
// разделов MBR: статус 0x00/0x80 и хотя бы один непустой тип раздела
func validPartitionTable(sector []byte) bool {
	nonEmpty := false
	for i := 0; i < 4; i++ {
		entry := sector[446+i*16 : 446+i*16+16]
		if entry[0] != 0x00 && entry[0] != 0x80 {
			return false
		}
		if entry[4] != 0 {
			nonEmpty = true
		}
	}
	return nonEmpty
}

// extSuperblockPlausible отсекает случайные совпадения магии:
// число инодов и блоков в суперблоке должно быть ненулевым
func extSuperblockPlausible(sample []byte, sbStart int) bool {
	if sbStart < 0 || sbStart+8 > len(sample) {
		return false
	}
	inodes := binary.LittleEndian.Uint32(sample[sbStart:])
	blocks := binary.LittleEndian.Uint32(sample[sbStart+4:])
	return inodes > 0 && blocks > 0
}

// suspicious применяет эвристики остаточных данных к одной выборке
func suspicious(sample []byte, expectedByte *byte) bool {
	if expectedByte != nil {
		return mismatchRatio(sample, *expectedByte) > 0.01
	}
	return printableRun(sample) || foreignByteRun(sample)
}

// mismatchRatio доля байтов, не совпадающих с ожидаемым паттерном
func mismatchRatio(sample []byte, expected byte) float64 {
	if len(sample) == 0 {
		return 0
	}
	mismatches := 0
	for _, b := range sample {
		if b != expected {
			mismatches++
		}
	}
	return float64(mismatches) / float64(len(sample))
}

// printableRun ищет длинный фрагмент печатаемого ASCII с разнообразием
// символов. Разнообразие отсекает заливки вроде 0x55 ('U').
func printableRun(sample []byte) bool {
	const minRun = 64
	const minDistinct = 8

	run := 0
	var seen [128]bool
	distinct := 0
	for _, b := range sample {
		if b >= 0x20 && b < 0x7F {
			run++
			if !seen[b] {
				seen[b] = true
				distinct++
			}
			if run >= minRun && distinct >= minDistinct {
				return true
			}
		} else {
			run = 0
			distinct = 0
			seen = [128]bool{}
		}
	}
	return false
}

// foreignByteRun ищет длинную заливку одним байтом, не являющимся
// ни нулём (результат аппаратного стирания), ни типовым паттерном
// перезаписи. Однородная заливка посторонним байтом — след прежних
// структур данных.
func foreignByteRun(sample []byte) bool {
	const minRun = 256
	allowed := map[byte]bool{0x00: true, 0xFF: true, 0x55: true, 0xAA: true}

	run := 1
	for i := 1; i < len(sample); i++ {
		if sample[i] == sample[i-1] {
			run++
			if run >= minRun && !allowed[sample[i]] {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
