// Package wipe реализует движок многопроходной перезаписи.
// Движок работает чанками, кооперативно реагирует на отмену между
// чанками и гарантирует сброс кэшей после каждого прохода.
package wipe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"safewipe_enterprise/internal/logging"
	"safewipe_enterprise/internal/nist"
)

// ExecError ошибка записи с точной позицией для диагностики
type ExecError struct {
	Pass   int
	Offset int64
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("ошибка записи: проход %d, смещение %d: %v", e.Pass, e.Offset, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ProgressFunc вызывается после каждого записанного чанка
type ProgressFunc func(pass int, bytesWritten int64)

// Executor выполняет проходы перезаписи на цели
type Executor struct {
	ChunkSize    int
	MaxSpeedMBps int
	pool         *BufferPool
	logger       *logging.EnterpriseLogger
}

// NewExecutor создаёт движок. chunkSize должен быть кратен размеру сектора.
func NewExecutor(chunkSize, maxSpeedMBps int, logger *logging.EnterpriseLogger) *Executor {
	return &Executor{
		ChunkSize:    chunkSize,
		MaxSpeedMBps: maxSpeedMBps,
		pool:         NewBufferPool(chunkSize),
		logger:       logger,
	}
}

// Run выполняет все проходы алгоритма последовательно. Отмена контекста
// проверяется между чанками: начатый чанк дописывается до конца.
// После каждого прохода вызывается Sync, чтобы данные дошли до носителя.
func (ex *Executor) Run(ctx context.Context, target BlockTarget, size int64, passes []nist.Pass, progress ProgressFunc) error {
	if size <= 0 {
		return fmt.Errorf("некорректный размер цели: %d", size)
	}

	for _, pass := range passes {
		ex.logger.Log("INFO", "Начало прохода перезаписи",
			"pass", pass.Index, "pattern", pass.Kind.String(), "size", size)

		if err := ex.runPass(ctx, target, size, pass, progress); err != nil {
			return err
		}

		if err := target.Sync(); err != nil {
			return &ExecError{Pass: pass.Index, Offset: size, Err: fmt.Errorf("сброс кэшей не удался: %w", err)}
		}
		ex.logger.Log("INFO", "Проход завершён", "pass", pass.Index)
	}
	return nil
}

func (ex *Executor) runPass(ctx context.Context, target BlockTarget, size int64, pass nist.Pass, progress ProgressFunc) error {
	if _, err := target.Seek(0, io.SeekStart); err != nil {
		return &ExecError{Pass: pass.Index, Offset: 0, Err: err}
	}

	var w io.Writer = target
	if ex.MaxSpeedMBps > 0 {
		w = NewThrottledWriter(target, ex.MaxSpeedMBps)
	}

	buf := ex.pool.Get()
	defer ex.pool.Put(buf)

	// Фиксированный паттерн заполняется один раз,
	// случайный — заново на каждый чанк
	_, fixed := pass.FillByte()
	if fixed {
		if err := FillBuffer(buf, pass); err != nil {
			return &ExecError{Pass: pass.Index, Offset: 0, Err: err}
		}
	}

	var offset int64
	for offset < size {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := int64(len(buf))
		if remaining := size - offset; remaining < chunk {
			chunk = remaining
		}
		data := buf[:chunk]

		if !fixed {
			if err := FillBuffer(data, pass); err != nil {
				return &ExecError{Pass: pass.Index, Offset: offset, Err: err}
			}
		}

		if err := writeFull(w, data); err != nil {
			// Одна повторная попытка уменьшенными блоками:
			// сбой на полном чанке не обязан повторяться на четвертинках
			ex.logger.Log("WARN", "Ошибка записи чанка, повтор уменьшенными блоками",
				"pass", pass.Index, "offset", offset, "error", err.Error())
			if rerr := ex.retryChunk(target, w, offset, data); rerr != nil {
				return &ExecError{Pass: pass.Index, Offset: offset, Err: rerr}
			}
		}

		offset += chunk
		if progress != nil {
			progress(pass.Index, offset)
		}
	}
	return nil
}

// retryChunk переписывает чанк блоками в четверть размера после сбоя.
// Позиция цели восстанавливается на начало чанка перед повтором.
func (ex *Executor) retryChunk(target BlockTarget, w io.Writer, offset int64, data []byte) error {
	if _, err := target.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("не удалось вернуться к смещению %d: %w", offset, err)
	}

	sub := len(data) / 4
	if sub < 512 {
		sub = len(data)
	}
	// Выравнивание по сектору
	sub -= sub % 512
	if sub == 0 {
		sub = len(data)
	}

	for pos := 0; pos < len(data); pos += sub {
		end := pos + sub
		if end > len(data) {
			end = len(data)
		}
		if err := writeFull(w, data[pos:end]); err != nil {
			return fmt.Errorf("повторная запись по смещению %d не удалась: %w", offset+int64(pos), err)
		}
	}
	return nil
}

func writeFull(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("запись не продвинулась")
		}
		data = data[n:]
	}
	return nil
}
