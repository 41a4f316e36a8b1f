package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Enterprise конфигурация движка санитизации
type Config struct {
	Security struct {
		RequireAdmin    bool     `yaml:"require_admin"`
		ExcludedDevices []string `yaml:"excluded_devices"`
	} `yaml:"security"`

	Wipe struct {
		DefaultCategory string  `yaml:"default_category"` // clear/purge/destroy
		StrictPurge     bool    `yaml:"strict_purge"`     // 7 проходов вместо 3
		ChunkSize       int64   `yaml:"chunk_size"`
		MaxConcurrent   int     `yaml:"max_concurrent"`
		MaxSpeedMBps    float64 `yaml:"max_speed_mbps"`
		MaxDuration     string  `yaml:"max_duration"`
	} `yaml:"wipe"`

	Verify struct {
		Samples          int     `yaml:"samples"`
		SampleSize       int     `yaml:"sample_size"`
		QualityThreshold float64 `yaml:"quality_threshold"`
	} `yaml:"verify"`

	Certificate struct {
		Issuer       string `yaml:"issuer"`
		Organization string `yaml:"organization"`
		AuthorityKey string `yaml:"authority_key"`
		AuditLog     string `yaml:"audit_log"`
	} `yaml:"certificate"`

	Logging struct {
		Level       string `yaml:"level"`
		File        string `yaml:"file"`
		SIEMEnabled bool   `yaml:"siem_enabled"`
		SIEMServer  string `yaml:"siem_server"`
	} `yaml:"logging"`

	Reporting struct {
		Enabled   bool   `yaml:"enabled"`
		LocalPath string `yaml:"local_path"`
		Format    string `yaml:"format"`
	} `yaml:"reporting"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}

	cfg.Security.RequireAdmin = true
	cfg.Security.ExcludedDevices = []string{}

	cfg.Wipe.DefaultCategory = "purge"
	cfg.Wipe.StrictPurge = false
	cfg.Wipe.ChunkSize = 16 * 1024 * 1024 // 16MB
	cfg.Wipe.MaxConcurrent = 2
	cfg.Wipe.MaxSpeedMBps = 0 // без ограничения
	cfg.Wipe.MaxDuration = ""

	cfg.Verify.Samples = 1000
	cfg.Verify.SampleSize = 4096
	cfg.Verify.QualityThreshold = 0.98

	cfg.Certificate.Issuer = "SafeWipe Enterprise"
	cfg.Certificate.Organization = "SafeWipe"
	cfg.Certificate.AuthorityKey = "./ca/authority.json"
	cfg.Certificate.AuditLog = "./logs/audit.jsonl"

	cfg.Logging.Level = "INFO"
	cfg.Logging.File = ""
	cfg.Logging.SIEMEnabled = false
	cfg.Logging.SIEMServer = ""

	cfg.Reporting.Enabled = true
	cfg.Reporting.LocalPath = "./reports"
	cfg.Reporting.Format = "json"

	return cfg
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Валидация конфигурации
	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate проверяет конфигурацию на валидность
func Validate(config *Config) error {
	// Валидация wipe секции
	switch config.Wipe.DefaultCategory {
	case "clear", "purge", "destroy":
	default:
		return fmt.Errorf("invalid default category: %s", config.Wipe.DefaultCategory)
	}

	if config.Wipe.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.Wipe.ChunkSize)
	}
	if config.Wipe.ChunkSize > 256*1024*1024 { // 256MB max
		return fmt.Errorf("chunk size too large (max 256MB), got %d", config.Wipe.ChunkSize)
	}
	if config.Wipe.ChunkSize%512 != 0 {
		return fmt.Errorf("chunk size must be sector-aligned, got %d", config.Wipe.ChunkSize)
	}

	if config.Wipe.MaxConcurrent <= 0 || config.Wipe.MaxConcurrent > 16 {
		return fmt.Errorf("max concurrent must be between 1 and 16, got %d", config.Wipe.MaxConcurrent)
	}

	if config.Wipe.MaxSpeedMBps < 0 {
		return fmt.Errorf("max speed cannot be negative, got %f", config.Wipe.MaxSpeedMBps)
	}

	if config.Wipe.MaxDuration != "" {
		if _, err := time.ParseDuration(config.Wipe.MaxDuration); err != nil {
			return fmt.Errorf("invalid max duration format: %s", config.Wipe.MaxDuration)
		}
	}

	// Валидация verify секции
	if config.Verify.Samples <= 0 {
		return fmt.Errorf("verify samples must be positive, got %d", config.Verify.Samples)
	}
	if config.Verify.SampleSize <= 0 || config.Verify.SampleSize > 1024*1024 {
		return fmt.Errorf("verify sample size must be between 1 byte and 1MB, got %d", config.Verify.SampleSize)
	}
	if config.Verify.QualityThreshold <= 0 || config.Verify.QualityThreshold > 1 {
		return fmt.Errorf("quality threshold must be in (0, 1], got %f", config.Verify.QualityThreshold)
	}

	// Валидация logging секции
	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	// Валидация reporting секции
	if config.Reporting.Enabled {
		switch config.Reporting.Format {
		case "json", "csv":
		default:
			return fmt.Errorf("invalid report format: %s", config.Reporting.Format)
		}
	}

	return nil
}

// Save сохраняет конфигурацию в файл
func Save(config *Config, path string) error {
	// Валидация перед сохранением
	if err := Validate(config); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetMaxDuration возвращает максимальную длительность операции
func (config *Config) GetMaxDuration() time.Duration {
	if config.Wipe.MaxDuration == "" {
		return 0 // Без лимита
	}

	duration, err := time.ParseDuration(config.Wipe.MaxDuration)
	if err != nil {
		return 2 * time.Hour // Fallback
	}

	return duration
}
