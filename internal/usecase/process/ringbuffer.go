package process

import (
	"strings"
	"sync"
)

// ringBuffer keeps the last max bytes written to it. The runner tees a
// child's stderr into one so a failure can quote the end of it.
type ringBuffer struct {
	mu      sync.Mutex
	data    []byte
	max     int
	dropped bool
}

func newRingBuffer(max int) *ringBuffer {
	return &ringBuffer{max: max}
}

// Write implements io.Writer. It never fails.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.max <= 0 {
		rb.dropped = rb.dropped || len(p) > 0
		return len(p), nil
	}
	rb.data = append(rb.data, p...)
	if over := len(rb.data) - rb.max; over > 0 {
		rb.data = append(rb.data[:0], rb.data[over:]...)
		rb.dropped = true
	}
	return len(p), nil
}

// Tail returns the kept bytes trimmed of surrounding whitespace, with a
// leading "..." when older output was dropped.
func (rb *ringBuffer) Tail() string {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	s := strings.TrimSpace(string(rb.data))
	if s != "" && rb.dropped {
		return "..." + s
	}
	return s
}
