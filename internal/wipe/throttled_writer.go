package wipe

import (
	"io"
	"time"
)

// ThrottledWriter ограничивает скорость записи. Используется, когда
// стирание идёт на работающей системе и не должно забивать шину ввода-вывода.
type ThrottledWriter struct {
	w              io.Writer
	maxBytesPerSec int64
	written        int64
	start          time.Time
}

// NewThrottledWriter оборачивает writer ограничением скорости в МБ/с.
// При maxSpeedMBps <= 0 ограничение отключено.
func NewThrottledWriter(w io.Writer, maxSpeedMBps int) *ThrottledWriter {
	return &ThrottledWriter{
		w:              w,
		maxBytesPerSec: int64(maxSpeedMBps) * 1024 * 1024,
		start:          time.Now(),
	}
}

func (tw *ThrottledWriter) Write(p []byte) (int, error) {
	n, err := tw.w.Write(p)
	if err != nil || tw.maxBytesPerSec <= 0 {
		return n, err
	}

	tw.written += int64(n)
	expected := time.Duration(float64(tw.written) / float64(tw.maxBytesPerSec) * float64(time.Second))
	elapsed := time.Since(tw.start)
	if expected > elapsed {
		time.Sleep(expected - elapsed)
	}
	return n, err
}
