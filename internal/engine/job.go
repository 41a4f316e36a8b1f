package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"safewipe_enterprise/internal/cert"
	"safewipe_enterprise/internal/device"
	"safewipe_enterprise/internal/nist"
	"safewipe_enterprise/internal/verify"
)

// JobState состояние задания санитизации
type JobState int

const (
	StatePending JobState = iota
	StateValidating
	StateExecuting
	StateVerifying
	StateSucceeded
	StateFailed
	StateAborted
)

func (s JobState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateValidating:
		return "VALIDATING"
	case StateExecuting:
		return "EXECUTING"
	case StateVerifying:
		return "VERIFYING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	case StateAborted:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal сообщает, является ли состояние конечным
func (s JobState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateAborted
}

// Progress моментальный снимок хода задания
type Progress struct {
	State        JobState      `json:"-"`
	Status       string        `json:"status"`
	Pass         int           `json:"pass"`
	TotalPasses  int           `json:"total_passes"`
	BytesWritten int64         `json:"bytes_written"`
	TotalBytes   int64         `json:"total_bytes"`
	Percent      float64       `json:"percent"`
	SpeedMBps    float64       `json:"speed_mbps"`
	Message      string        `json:"message,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Job задание санитизации одного устройства
type Job struct {
	ID        string
	Device    device.Device
	Algorithm nist.Algorithm
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.Mutex
	state        JobState
	pass         int
	bytesWritten int64
	totalBytes   int64
	message      string
	err          error
	report       *verify.Report
	certificate  *cert.Certificate
}

func newJob(dev device.Device, alg nist.Algorithm, cancel context.CancelFunc) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Device:    dev,
		Algorithm: alg,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (j *Job) setState(s JobState, message string) {
	j.mu.Lock()
	j.state = s
	j.message = message
	j.mu.Unlock()
}

func (j *Job) setProgress(pass int, bytesWritten int64) {
	j.mu.Lock()
	j.pass = pass
	j.bytesWritten = int64(pass)*j.Device.SizeBytes + bytesWritten
	j.mu.Unlock()
}

func (j *Job) finish(s JobState, err error) {
	j.mu.Lock()
	j.state = s
	j.err = err
	if err != nil {
		j.message = err.Error()
	}
	j.mu.Unlock()
	close(j.done)
}

// Progress возвращает согласованный снимок состояния
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()

	elapsed := time.Since(j.StartedAt)
	p := Progress{
		State:        j.state,
		Status:       j.state.String(),
		Pass:         j.pass,
		TotalPasses:  len(j.Algorithm.Passes),
		BytesWritten: j.bytesWritten,
		TotalBytes:   j.totalBytes,
		Message:      j.message,
		Elapsed:      elapsed,
	}
	if j.totalBytes > 0 {
		p.Percent = float64(j.bytesWritten) / float64(j.totalBytes) * 100
	}
	if secs := elapsed.Seconds(); secs > 0 {
		p.SpeedMBps = float64(j.bytesWritten) / (1024 * 1024) / secs
	}
	return p
}

// Err возвращает ошибку завершённого задания
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// VerificationReport возвращает отчёт проверки, если она выполнялась
func (j *Job) VerificationReport() *verify.Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report
}

// Certificate возвращает сертификат успешно завершённого задания
func (j *Job) Certificate() *cert.Certificate {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.certificate
}

// Cancel запрашивает отмену. Текущий чанк дописывается, частичный
// прогресс сохраняется в снимке.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait блокируется до завершения задания
func (j *Job) Wait() {
	<-j.done
}

// Done возвращает канал завершения задания
func (j *Job) Done() <-chan struct{} {
	return j.done
}
