package wipe

import "sync"

// BufferPool пул буферов перезаписи. Выделение 16 МБ на каждый чанк
// создаёт заметное давление на GC, поэтому буферы переиспользуются.
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool создаёт пул буферов фиксированного размера
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get возвращает буфер из пула
func (p *BufferPool) Get() []byte {
	return *(p.pool.Get().(*[]byte))
}

// Put возвращает буфер в пул. Буферы чужого размера отбрасываются.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
