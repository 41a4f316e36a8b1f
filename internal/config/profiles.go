package config

import (
	"fmt"
)

// ApplyProfile применяет профиль производительности к конфигурации
func ApplyProfile(cfg *Config, profile string) error {
	switch profile {
	case "safe":
		cfg.Wipe.MaxSpeedMBps = 50
		cfg.Wipe.ChunkSize = 8 * 1024 * 1024 // 8MB
		cfg.Wipe.MaxConcurrent = 1
	case "balanced":
		cfg.Wipe.MaxSpeedMBps = 200
		cfg.Wipe.ChunkSize = 16 * 1024 * 1024 // 16MB
		cfg.Wipe.MaxConcurrent = 2
	case "aggressive":
		cfg.Wipe.MaxSpeedMBps = 0             // unlimited
		cfg.Wipe.ChunkSize = 64 * 1024 * 1024 // 64MB
		cfg.Wipe.MaxConcurrent = 4
		cfg.Wipe.StrictPurge = true
	case "fast":
		cfg.Wipe.MaxSpeedMBps = 0             // unlimited
		cfg.Wipe.ChunkSize = 64 * 1024 * 1024 // 64MB
		cfg.Wipe.MaxConcurrent = 8
	default:
		return fmt.Errorf("неизвестный профиль: %s", profile)
	}
	return nil
}
