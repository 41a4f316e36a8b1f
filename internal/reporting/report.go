// Package reporting формирует итоговые отчёты о заданиях санитизации
// для локального архива и выгрузки в SIEM.
package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"safewipe_enterprise/internal/config"
	"safewipe_enterprise/internal/engine"
	"safewipe_enterprise/internal/logging"
)

// JobRecord запись об одном задании в итоговом отчёте
type JobRecord struct {
	JobID        string    `json:"job_id"`
	DevicePath   string    `json:"device_path"`
	DeviceModel  string    `json:"device_model"`
	DeviceSerial string    `json:"device_serial"`
	SizeBytes    int64     `json:"size_bytes"`
	Category     string    `json:"category"`
	Algorithm    string    `json:"algorithm"`
	Status       string    `json:"status"`
	Percent      float64   `json:"percent"`
	Quality      float64   `json:"quality_score,omitempty"`
	Verified     bool      `json:"verified"`
	Certified    bool      `json:"certified"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	Duration     string    `json:"duration"`
}

// RunReport сводный отчёт одного запуска программы
type RunReport struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Hostname    string      `json:"hostname"`
	Total       int         `json:"total_jobs"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	Cancelled   int         `json:"cancelled"`
	Jobs        []JobRecord `json:"jobs"`
}

// Reporter сохраняет отчёты в настроенный каталог
type Reporter struct {
	cfg    *config.Config
	logger *logging.EnterpriseLogger
}

func NewReporter(cfg *config.Config, logger *logging.EnterpriseLogger) *Reporter {
	return &Reporter{cfg: cfg, logger: logger}
}

// BuildRunReport собирает сводный отчёт по завершённым заданиям
func BuildRunReport(jobs []*engine.Job) *RunReport {
	hostname, _ := os.Hostname()
	report := &RunReport{
		GeneratedAt: time.Now().UTC(),
		Hostname:    hostname,
	}

	for _, job := range jobs {
		p := job.Progress()
		rec := JobRecord{
			JobID:        job.ID,
			DevicePath:   job.Device.Path,
			DeviceModel:  job.Device.Model,
			DeviceSerial: job.Device.Serial,
			SizeBytes:    job.Device.SizeBytes,
			Category:     job.Algorithm.Category.String(),
			Algorithm:    job.Algorithm.Name,
			Status:       p.Status,
			Percent:      p.Percent,
			Certified:    job.Certificate() != nil,
			StartedAt:    job.StartedAt,
			Duration:     p.Elapsed.Round(time.Second).String(),
		}
		if vr := job.VerificationReport(); vr != nil {
			rec.Quality = vr.QualityScore
			rec.Verified = vr.Passed
		}
		if err := job.Err(); err != nil {
			rec.Error = err.Error()
		}

		report.Total++
		switch p.Status {
		case "SUCCEEDED":
			report.Succeeded++
		case "CANCELLED":
			report.Cancelled++
		default:
			report.Failed++
		}
		report.Jobs = append(report.Jobs, rec)
	}
	return report
}

// Save записывает отчёт в каталог отчётов в настроенном формате
func (r *Reporter) Save(report *RunReport) (string, error) {
	if !r.cfg.Reporting.Enabled {
		return "", nil
	}
	if err := os.MkdirAll(r.cfg.Reporting.LocalPath, 0750); err != nil {
		return "", fmt.Errorf("не удалось создать каталог отчётов: %w", err)
	}

	stamp := report.GeneratedAt.Format("20060102-150405")
	var path string
	var err error
	switch r.cfg.Reporting.Format {
	case "csv":
		path = filepath.Join(r.cfg.Reporting.LocalPath, "sanitize-"+stamp+".csv")
		err = saveCSV(path, report)
	default:
		path = filepath.Join(r.cfg.Reporting.LocalPath, "sanitize-"+stamp+".json")
		err = saveJSON(path, report)
	}
	if err != nil {
		return "", err
	}

	r.logger.Log("INFO", "Отчёт сохранён", "path", path, "jobs", report.Total)
	return path, nil
}

func saveJSON(path string, report *RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("не удалось сериализовать отчёт: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("не удалось сохранить отчёт: %w", err)
	}
	return nil
}

func saveCSV(path string, report *RunReport) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("не удалось создать отчёт: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"job_id", "device_path", "model", "serial", "size_bytes",
		"category", "algorithm", "status", "quality", "verified", "certified",
		"started_at", "duration", "error",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("не удалось записать заголовок отчёта: %w", err)
	}

	for _, rec := range report.Jobs {
		row := []string{
			rec.JobID,
			rec.DevicePath,
			rec.DeviceModel,
			rec.DeviceSerial,
			strconv.FormatInt(rec.SizeBytes, 10),
			rec.Category,
			rec.Algorithm,
			rec.Status,
			strconv.FormatFloat(rec.Quality, 'f', 4, 64),
			strconv.FormatBool(rec.Verified),
			strconv.FormatBool(rec.Certified),
			rec.StartedAt.Format(time.RFC3339),
			rec.Duration,
			rec.Error,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("не удалось записать строку отчёта: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
