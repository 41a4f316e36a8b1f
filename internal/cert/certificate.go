package cert

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"safewipe_enterprise/internal/verify"
)

var ErrNotVerified = errors.New("сертификат выдаётся только после успешной проверки")

// CompletionProof подтверждение успешного завершения задания.
// Поля неэкспортированы: снаружи пакета подтверждение нельзя собрать
// литералом, только получить через NewCompletionProof с прошедшей
// проверкой. Это единственный путь к выпуску сертификата.
type CompletionProof struct {
	jobID      string
	devicePath string
	quality    float64
	verifiedAt time.Time
}

// NewCompletionProof создаёт подтверждение из отчёта проверки.
// Отчёт с Passed == false подтверждением не является.
func NewCompletionProof(jobID, devicePath string, report *verify.Report) (*CompletionProof, error) {
	if report == nil || !report.Passed {
		return nil, ErrNotVerified
	}
	return &CompletionProof{
		jobID:      jobID,
		devicePath: devicePath,
		quality:    report.QualityScore,
		verifiedAt: time.Now().UTC(),
	}, nil
}

// JobID идентификатор подтверждённого задания
func (p *CompletionProof) JobID() string { return p.jobID }

// Request данные для выпуска сертификата
type Request struct {
	DeviceModel  string
	DeviceSerial string
	DeviceSize   int64
	Category     string
	Algorithm    string
	PassCount    int
	Hardware     string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Certificate подписанный сертификат санитизации.
// Поля плоские и в фиксированном порядке: канонический контент
// для подписи собирается из них же.
type Certificate struct {
	JobID        string    `json:"job_id"`
	DevicePath   string    `json:"device_path"`
	DeviceModel  string    `json:"device_model"`
	DeviceSerial string    `json:"device_serial"`
	DeviceSize   int64     `json:"device_size"`
	Category     string    `json:"method"`
	Algorithm    string    `json:"algorithm"`
	PassCount    int       `json:"pass_count"`
	Hardware     string    `json:"hardware_method,omitempty"`
	Quality      float64   `json:"verification_quality_score"`
	Verified     bool      `json:"verification_passed"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	IssuedAt     time.Time `json:"issued_at"`
	Issuer       string    `json:"issuer"`
	Organization string    `json:"organization"`
	ContentHash  string    `json:"content_hash"`
	Signature    string    `json:"signature"`
}

// Issue выпускает подписанный сертификат. Без CompletionProof
// сертификат получить нельзя.
func (a *Authority) Issue(proof *CompletionProof, req Request) (*Certificate, error) {
	if proof == nil {
		return nil, ErrNotVerified
	}

	c := &Certificate{
		JobID:        proof.jobID,
		DevicePath:   proof.devicePath,
		DeviceModel:  req.DeviceModel,
		DeviceSerial: req.DeviceSerial,
		DeviceSize:   req.DeviceSize,
		Category:     req.Category,
		Algorithm:    req.Algorithm,
		PassCount:    req.PassCount,
		Hardware:     req.Hardware,
		Quality:      proof.quality,
		Verified:     true,
		StartedAt:    req.StartedAt.UTC(),
		FinishedAt:   req.FinishedAt.UTC(),
		IssuedAt:     time.Now().UTC(),
		Issuer:       a.Issuer,
		Organization: a.Org,
	}

	content := c.canonicalContent()
	hash := sha256.Sum256(content)
	c.ContentHash = hex.EncodeToString(hash[:])

	sig, err := a.sign(content)
	if err != nil {
		return nil, err
	}
	c.Signature = base64.StdEncoding.EncodeToString(sig)
	return c, nil
}

// canonicalContent собирает подписываемую строку. Порядок полей
// фиксирован; изменение порядка ломает проверку всех выданных
// сертификатов.
func (c *Certificate) canonicalContent() []byte {
	fields := []string{
		c.JobID,
		c.DevicePath,
		c.DeviceModel,
		c.DeviceSerial,
		fmt.Sprintf("%d", c.DeviceSize),
		c.Category,
		c.Algorithm,
		fmt.Sprintf("%d", c.PassCount),
		c.Hardware,
		fmt.Sprintf("%.6f", c.Quality),
		fmt.Sprintf("%t", c.Verified),
		c.StartedAt.Format(time.RFC3339),
		c.FinishedAt.Format(time.RFC3339),
		c.IssuedAt.Format(time.RFC3339),
		c.Issuer,
		c.Organization,
	}
	return []byte(strings.Join(fields, "|"))
}

// Verify проверяет подпись и целостность сертификата открытым ключом
func (c *Certificate) Verify(pub *rsa.PublicKey) error {
	content := c.canonicalContent()

	hash := sha256.Sum256(content)
	if hex.EncodeToString(hash[:]) != c.ContentHash {
		return errors.New("хэш содержимого не совпадает")
	}

	sig, err := base64.StdEncoding.DecodeString(c.Signature)
	if err != nil {
		return fmt.Errorf("некорректная кодировка подписи: %w", err)
	}
	return verifySignature(pub, content, sig)
}

// Save записывает сертификат в JSON-файл
func (c *Certificate) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("не удалось сериализовать сертификат: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("не удалось сохранить сертификат: %w", err)
	}
	return nil
}

// LoadCertificate читает сертификат из JSON-файла
func LoadCertificate(path string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать сертификат %s: %w", path, err)
	}
	var c Certificate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("некорректный сертификат: %w", err)
	}
	return &c, nil
}
