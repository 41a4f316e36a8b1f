package cert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEntry одна запись журнала аудита
type AuditEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	JobID     string                 `json:"job_id,omitempty"`
	Device    string                 `json:"device,omitempty"`
	Operator  string                 `json:"operator,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AuditLog журнал аудита в формате JSON Lines, только добавление.
// Каждая запись сбрасывается на диск немедленно: журнал должен
// пережить аварийное завершение процесса.
type AuditLog struct {
	mu   sync.Mutex
	file *os.File
}

// События журнала
const (
	EventJobSubmitted      = "job_submitted"
	EventJobRefused        = "job_refused"
	EventWipeStarted       = "wipe_started"
	EventPassCompleted     = "pass_completed"
	EventHardwareErase     = "hardware_erase"
	EventHardwareFallback  = "hardware_fallback"
	EventHiddenAreaRemoved = "hidden_area_removed"
	EventVerification      = "verification"
	EventCorrectivePass    = "corrective_pass"
	EventCertificateIssued = "certificate_issued"
	EventJobFinished       = "job_finished"
)

// OpenAuditLog открывает журнал на дозапись, создавая при необходимости
func OpenAuditLog(path string) (*AuditLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("не удалось создать каталог журнала аудита: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть журнал аудита %s: %w", path, err)
	}
	return &AuditLog{file: f}, nil
}

// Record добавляет запись и немедленно сбрасывает её на диск
func (a *AuditLog) Record(event, jobID, device string, details map[string]interface{}) error {
	entry := AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Event:     event,
		JobID:     jobID,
		Device:    device,
		Operator:  operatorName(),
		Details:   details,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("не удалось сериализовать запись аудита: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("не удалось записать в журнал аудита: %w", err)
	}
	return a.file.Sync()
}

func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

func operatorName() string {
	if u := os.Getenv("SUDO_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
