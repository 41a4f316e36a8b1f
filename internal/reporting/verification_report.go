package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"safewipe_enterprise/internal/verify"
)

// VerificationReport отчёт об отдельной проверке устройства
type VerificationReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	DevicePath  string         `json:"device_path"`
	Result      *verify.Report `json:"result"`
}

// SaveVerification сохраняет отчёт о проверке в каталог отчётов
func (r *Reporter) SaveVerification(devicePath string, result *verify.Report) (string, error) {
	if !r.cfg.Reporting.Enabled {
		return "", nil
	}
	if err := os.MkdirAll(r.cfg.Reporting.LocalPath, 0750); err != nil {
		return "", fmt.Errorf("не удалось создать каталог отчётов: %w", err)
	}

	report := &VerificationReport{
		GeneratedAt: time.Now().UTC(),
		DevicePath:  devicePath,
		Result:      result,
	}

	stamp := report.GeneratedAt.Format("20060102-150405")
	var path string
	var err error
	switch r.cfg.Reporting.Format {
	case "csv":
		path = filepath.Join(r.cfg.Reporting.LocalPath, "verify-"+stamp+".csv")
		err = saveVerificationCSV(path, report)
	default:
		path = filepath.Join(r.cfg.Reporting.LocalPath, "verify-"+stamp+".json")
		err = saveJSONFile(path, report)
	}
	if err != nil {
		return "", err
	}

	r.logger.Log("INFO", "Отчёт о проверке сохранён",
		"path", path, "device", devicePath, "passed", result.Passed)
	return path, nil
}

func saveJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("не удалось сериализовать отчёт: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("не удалось сохранить отчёт: %w", err)
	}
	return nil
}

func saveVerificationCSV(path string, report *VerificationReport) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("не удалось создать отчёт: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{
		{"device", "samples", "suspicious", "signature_hits", "quality", "threshold", "passed", "generated_at"},
		{
			report.DevicePath,
			strconv.Itoa(report.Result.Samples),
			strconv.Itoa(report.Result.SuspiciousSamples),
			strconv.Itoa(len(report.Result.SignatureHits)),
			strconv.FormatFloat(report.Result.QualityScore, 'f', 4, 64),
			strconv.FormatFloat(report.Result.Threshold, 'f', 4, 64),
			strconv.FormatBool(report.Result.Passed),
			report.GeneratedAt.Format(time.RFC3339),
		},
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("не удалось записать отчёт: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
