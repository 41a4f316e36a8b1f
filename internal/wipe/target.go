package wipe

import (
	"fmt"
	"io"
	"os"
)

// BlockTarget цель перезаписи. Абстракция над блочным устройством
// позволяет прогонять движок на файлах-образах и инструментированных
// заглушках в тестах.
type BlockTarget interface {
	io.WriteSeeker
	Sync() error
	Close() error
}

// OpenTargetFunc открывает цель по пути и возвращает её размер
type OpenTargetFunc func(path string) (BlockTarget, int64, error)

// OpenFileTarget открывает блочное устройство или файл-образ для записи
func OpenFileTarget(path string) (BlockTarget, int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("не удалось открыть %s для записи: %w", path, err)
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("не удалось определить размер %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("не удалось вернуться к началу %s: %w", path, err)
	}
	return f, size, nil
}
