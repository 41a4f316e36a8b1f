// Package engine оркестрирует полный цикл санитизации: проверки
// допуска, выбор метода, выполнение, верификация и выпуск сертификата.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"safewipe_enterprise/internal/cert"
	"safewipe_enterprise/internal/config"
	"safewipe_enterprise/internal/device"
	"safewipe_enterprise/internal/hardware"
	"safewipe_enterprise/internal/logging"
	"safewipe_enterprise/internal/nist"
	"safewipe_enterprise/internal/security"
	"safewipe_enterprise/internal/verify"
	"safewipe_enterprise/internal/wipe"
)

var (
	ErrSystemDrive           = errors.New("стирание системного диска запрещено")
	ErrDeviceLocked          = errors.New("устройство уже занято другим заданием")
	ErrExcludedDevice        = errors.New("устройство в списке исключений")
	ErrJobNotFound           = errors.New("задание не найдено")
	ErrNotExecutable         = errors.New("категория destroy документируется, но не выполняется программно")
	ErrTooManyJobs           = errors.New("достигнут предел одновременных заданий")
	ErrPrivileges            = errors.New("недостаточно прав для записи на устройство")
	ErrHiddenAreaUnaddressed = errors.New("скрытую область не удалось снять, полное стирание невозможно")
	ErrVerificationFailed    = errors.New("проверка не пройдена и после корректирующего прохода")
)

// ReadTarget цель проверки с произвольным доступом
type ReadTarget interface {
	io.ReaderAt
	io.Closer
}

// Dependencies точки подмены для тестов и нестандартных окружений
type Dependencies struct {
	Detect     func() ([]device.Device, error)
	Analyze    func(path string) (*device.Device, error)
	Dispatcher hardware.Dispatcher
	OpenTarget wipe.OpenTargetFunc
	OpenRead   func(path string) (ReadTarget, int64, error)
}

func defaultOpenRead(path string) (ReadTarget, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("не удалось открыть %s для чтения: %w", path, err)
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("не удалось определить размер %s: %w", path, err)
	}
	return f, size, nil
}

func (d *Dependencies) fillDefaults() {
	if d.Detect == nil {
		d.Detect = device.DetectDevices
	}
	if d.Analyze == nil {
		d.Analyze = device.Analyze
	}
	if d.Dispatcher == nil {
		d.Dispatcher = hardware.NewDispatcher()
	}
	if d.OpenTarget == nil {
		d.OpenTarget = wipe.OpenFileTarget
	}
	if d.OpenRead == nil {
		d.OpenRead = defaultOpenRead
	}
}

// Engine управляет заданиями санитизации
type Engine struct {
	cfg       *config.Config
	logger    *logging.EnterpriseLogger
	authority *cert.Authority
	audit     *cert.AuditLog
	deps      Dependencies
	executor  *wipe.Executor
	verifier  *verify.Verifier

	mu    sync.Mutex
	jobs  map[string]*Job
	locks map[string]string // путь устройства → ID активного задания
}

// New создаёт движок. Нулевые поля deps заполняются реализациями
// по умолчанию.
func New(cfg *config.Config, logger *logging.EnterpriseLogger, authority *cert.Authority, audit *cert.AuditLog, deps Dependencies) *Engine {
	deps.fillDefaults()
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		authority: authority,
		audit:     audit,
		deps:      deps,
		executor:  wipe.NewExecutor(int(cfg.Wipe.ChunkSize), int(cfg.Wipe.MaxSpeedMBps), logger),
		verifier: verify.NewVerifier(verify.Config{
			Samples:          cfg.Verify.Samples,
			SampleSize:       cfg.Verify.SampleSize,
			QualityThreshold: cfg.Verify.QualityThreshold,
		}, logger),
		jobs:  make(map[string]*Job),
		locks: make(map[string]string),
	}
}

// ListDevices перечисляет устройства с пометкой исключённых
func (e *Engine) ListDevices() ([]device.Device, error) {
	return e.deps.Detect()
}

// Recommend выбирает метод для устройства без побочных эффектов
func (e *Engine) Recommend(path string, cat nist.Category) (*device.Device, *nist.Algorithm, error) {
	dev, err := e.deps.Analyze(path)
	if err != nil {
		return nil, nil, err
	}
	alg, err := nist.SelectAlgorithm(dev, cat, e.cfg.Wipe.StrictPurge)
	if err != nil {
		return nil, nil, err
	}
	return dev, alg, nil
}

// Submit принимает задание и запускает его в фоне.
// Отказ возможен до запуска: системный диск, исключённое устройство,
// занятое устройство, невыполнимая категория.
func (e *Engine) Submit(path string, cat nist.Category) (*Job, error) {
	if e.cfg.Security.RequireAdmin && !security.IsAdmin() {
		return nil, ErrPrivileges
	}

	dev, err := e.deps.Analyze(path)
	if err != nil {
		return nil, err
	}

	// Системный диск не стирается никогда, флагов обхода нет
	if dev.IsSystemDrive {
		e.recordAudit(cert.EventJobRefused, "", path, map[string]interface{}{"reason": "system_drive"})
		return nil, fmt.Errorf("%s: %w", path, ErrSystemDrive)
	}
	if security.ShouldSkipDevice(e.cfg, dev) {
		e.recordAudit(cert.EventJobRefused, "", path, map[string]interface{}{"reason": "excluded"})
		return nil, fmt.Errorf("%s: %w", path, ErrExcludedDevice)
	}

	alg, err := nist.SelectAlgorithm(dev, cat, e.cfg.Wipe.StrictPurge)
	if err != nil {
		return nil, err
	}
	if !alg.IsExecutable() {
		return nil, ErrNotExecutable
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if d := e.cfg.GetMaxDuration(); d > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), d)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	job := newJob(*dev, *alg, cancel)
	job.totalBytes = dev.SizeBytes * int64(len(alg.Passes))

	e.mu.Lock()
	if holder, locked := e.locks[dev.Path]; locked {
		e.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%s занято заданием %s: %w", dev.Path, holder, ErrDeviceLocked)
	}
	active := 0
	for _, j := range e.jobs {
		if !j.Progress().State.Terminal() {
			active++
		}
	}
	if active >= e.cfg.Wipe.MaxConcurrent {
		e.mu.Unlock()
		cancel()
		return nil, ErrTooManyJobs
	}
	e.locks[dev.Path] = job.ID
	e.jobs[job.ID] = job
	e.mu.Unlock()

	e.recordAudit(cert.EventJobSubmitted, job.ID, dev.Path, map[string]interface{}{
		"category":  cat.String(),
		"algorithm": alg.Name,
		"size":      dev.SizeBytes,
	})

	go e.run(ctx, job)
	return job, nil
}

// Job возвращает задание по идентификатору
func (e *Engine) Job(id string) (*Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	return job, nil
}

// Cancel запрашивает отмену задания
func (e *Engine) Cancel(id string) error {
	job, err := e.Job(id)
	if err != nil {
		return err
	}
	job.Cancel()
	return nil
}

func (e *Engine) run(ctx context.Context, job *Job) {
	defer func() {
		e.mu.Lock()
		delete(e.locks, job.Device.Path)
		e.mu.Unlock()
	}()

	err := e.execute(ctx, job)
	switch {
	case err == nil:
		job.finish(StateSucceeded, nil)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		job.finish(StateAborted, err)
	default:
		job.finish(StateFailed, err)
	}

	p := job.Progress()
	e.recordAudit(cert.EventJobFinished, job.ID, job.Device.Path, map[string]interface{}{
		"status":        p.Status,
		"bytes_written": p.BytesWritten,
	})
	e.logger.Log("INFO", "Задание завершено",
		"job_id", job.ID, "device", job.Device.Path, "status", p.Status)
}

func (e *Engine) execute(ctx context.Context, job *Job) error {
	job.setState(StateValidating, "подготовка устройства")
	dev := &job.Device

	// Скрытые области должны быть сняты до стирания, иначе часть
	// носителя останется нетронутой
	if err := e.clearHiddenAreas(job); err != nil {
		return err
	}

	job.setState(StateExecuting, "выполняется стирание")
	expectedByte, hwDone, err := e.erase(ctx, job)
	if err != nil {
		return err
	}

	job.setState(StateVerifying, "выборочная проверка")
	report, err := e.verifyDevice(ctx, dev, expectedByte)
	if err != nil {
		return err
	}
	e.recordAudit(cert.EventVerification, job.ID, dev.Path, map[string]interface{}{
		"quality": report.QualityScore,
		"passed":  report.Passed,
	})

	// Одна корректирующая попытка: дополнительный случайный проход
	// и повторная проверка
	if !report.Passed {
		e.logger.Log("WARN", "Проверка не пройдена, выполняется корректирующий проход",
			"job_id", job.ID, "quality", report.QualityScore)
		e.recordAudit(cert.EventCorrectivePass, job.ID, dev.Path, map[string]interface{}{
			"quality": report.QualityScore,
		})

		if err := e.correctivePass(ctx, job); err != nil {
			return err
		}
		report, err = e.verifyDevice(ctx, dev, nil)
		if err != nil {
			return err
		}
		e.recordAudit(cert.EventVerification, job.ID, dev.Path, map[string]interface{}{
			"quality":    report.QualityScore,
			"passed":     report.Passed,
			"corrective": true,
		})
		if !report.Passed {
			job.mu.Lock()
			job.report = report
			job.mu.Unlock()
			return fmt.Errorf("качество %.4f при пороге %.4f: %w",
				report.QualityScore, report.Threshold, ErrVerificationFailed)
		}
	}

	job.mu.Lock()
	job.report = report
	job.mu.Unlock()

	return e.issueCertificate(job, report, hwDone)
}

// clearHiddenAreas находит и снимает HPA/DCO на ATA-устройствах
func (e *Engine) clearHiddenAreas(job *Job) error {
	areas, err := e.deps.Dispatcher.ProbeHiddenAreas(&job.Device)
	if err != nil {
		// Устройство, которое нельзя опросить, нельзя считать чистым
		e.recordAudit(cert.EventJobRefused, job.ID, job.Device.Path, map[string]interface{}{
			"reason": "hidden_area_probe_failed",
			"error":  err.Error(),
		})
		return fmt.Errorf("%w: опрос устройства не удался: %v", ErrHiddenAreaUnaddressed, err)
	}
	if !areas.Any() {
		return nil
	}

	e.logger.Log("WARN", "Обнаружена скрытая область",
		"device", job.Device.Path, "hpa", areas.HPAPresent, "dco", areas.DCOPresent)
	if err := e.deps.Dispatcher.RemoveHiddenAreas(&job.Device); err != nil {
		return fmt.Errorf("%w: %v", ErrHiddenAreaUnaddressed, err)
	}
	e.recordAudit(cert.EventHiddenAreaRemoved, job.ID, job.Device.Path, map[string]interface{}{
		"hpa": areas.HPAPresent,
		"dco": areas.DCOPresent,
	})
	return nil
}

// erase выполняет стирание: аппаратная команда с программным резервом.
// Возвращает байт финального паттерна для проверки (nil для случайного
// финала и аппаратного стирания) и признак аппаратного пути.
func (e *Engine) erase(ctx context.Context, job *Job) (*byte, bool, error) {
	alg := &job.Algorithm

	if alg.Hardware != nist.HWNone {
		outcome, err := e.deps.Dispatcher.Execute(ctx, &job.Device, alg.Hardware)
		if err == nil {
			e.recordAudit(cert.EventHardwareErase, job.ID, job.Device.Path, map[string]interface{}{
				"method":   outcome.Method.String(),
				"duration": outcome.Duration.String(),
				"warnings": outcome.Warnings,
			})
			job.setProgress(len(alg.Passes)-1, job.Device.SizeBytes)
			return nil, true, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}

		// Аппаратный сбой не фатален: резерв — программная перезапись
		e.logger.Log("WARN", "Аппаратная команда не выполнена, переход на программную перезапись",
			"job_id", job.ID, "method", alg.Hardware.String(), "error", err.Error())
		e.recordAudit(cert.EventHardwareFallback, job.ID, job.Device.Path, map[string]interface{}{
			"method": alg.Hardware.String(),
			"error":  err.Error(),
		})
	}

	target, size, err := e.deps.OpenTarget(job.Device.Path)
	if err != nil {
		return nil, false, err
	}
	defer target.Close()

	e.recordAudit(cert.EventWipeStarted, job.ID, job.Device.Path, map[string]interface{}{
		"algorithm": alg.Name,
		"passes":    len(alg.Passes),
	})

	err = e.executor.Run(ctx, target, size, alg.Passes, func(pass int, written int64) {
		job.setProgress(pass, written)
	})
	if err != nil {
		return nil, false, err
	}

	final := alg.Passes[len(alg.Passes)-1]
	if b, ok := final.FillByte(); ok {
		return &b, false, nil
	}
	return nil, false, nil
}

func (e *Engine) correctivePass(ctx context.Context, job *Job) error {
	target, size, err := e.deps.OpenTarget(job.Device.Path)
	if err != nil {
		return err
	}
	defer target.Close()

	passes := []nist.Pass{{Index: 0, Kind: nist.PatternRandom}}
	return e.executor.Run(ctx, target, size, passes, nil)
}

func (e *Engine) verifyDevice(ctx context.Context, dev *device.Device, expectedByte *byte) (*verify.Report, error) {
	r, size, err := e.deps.OpenRead(dev.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return e.verifier.Verify(ctx, r, size, expectedByte)
}

// issueCertificate выпускает подписанный сертификат. Подтверждение
// собирается только из прошедшего отчёта: для непрошедшей проверки
// конструктор вернёт ошибку.
func (e *Engine) issueCertificate(job *Job, report *verify.Report, hwDone bool) error {
	proof, err := cert.NewCompletionProof(job.ID, job.Device.Path, report)
	if err != nil {
		return err
	}

	hw := ""
	if hwDone {
		hw = job.Algorithm.Hardware.String()
	}
	certificate, err := e.authority.Issue(proof, cert.Request{
		DeviceModel:  job.Device.Model,
		DeviceSerial: job.Device.Serial,
		DeviceSize:   job.Device.SizeBytes,
		Category:     job.Algorithm.Category.String(),
		Algorithm:    job.Algorithm.Name,
		PassCount:    len(job.Algorithm.Passes),
		Hardware:     hw,
		StartedAt:    job.StartedAt,
		FinishedAt:   time.Now(),
	})
	if err != nil {
		return err
	}

	job.mu.Lock()
	job.certificate = certificate
	job.mu.Unlock()

	e.recordAudit(cert.EventCertificateIssued, job.ID, job.Device.Path, map[string]interface{}{
		"content_hash": certificate.ContentHash,
	})
	return nil
}

func (e *Engine) recordAudit(event, jobID, devicePath string, details map[string]interface{}) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(event, jobID, devicePath, details); err != nil {
		e.logger.Log("ERROR", "Не удалось записать событие аудита",
			"event", event, "error", err.Error())
	}
}
