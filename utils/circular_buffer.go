package utils

import (
	"sync"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

// CircularBuffer 固定大小的输出缓冲区，写满以后覆盖最旧的数据
type CircularBuffer struct {
	queue *circularbuffer.Queue
	mu    sync.RWMutex
}

func NewCircularBuffer(size int) *CircularBuffer {
	if size <= 0 {
		size = 64 * 1024
	}
	return &CircularBuffer{
		queue: circularbuffer.New(size),
	}
}

func (cb *CircularBuffer) Write(p []byte) (n int, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for _, b := range p {
		cb.queue.Enqueue(b)
	}
	return len(p), nil
}

// String 按写入顺序返回缓冲区内容
func (cb *CircularBuffer) String() string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	values := cb.queue.Values()
	buf := make([]byte, len(values))
	for i, v := range values {
		buf[i] = v.(byte)
	}
	return string(buf)
}

func (cb *CircularBuffer) Len() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.queue.Size()
}
