// Package terminal implements the interactive process controller: it
// spawns long-running subprocesses, multiplexes their input/output, and
// tracks their lifecycle in a synchronized registry.
package terminal

import "sync"

// Ring is a bounded byte buffer. Writes never block: once capacity is
// exceeded the oldest bytes are dropped so a chatty subprocess can never
// stall its reader goroutine.
type Ring struct {
	mu     sync.Mutex
	buf    []byte
	start  int
	size   int
	notify chan struct{}
}

// NewRing creates a ring holding at most capacity bytes.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 64 * 1024
	}
	return &Ring{
		buf:    make([]byte, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Write implements io.Writer. It always reports full success; data beyond
// capacity evicts the oldest bytes.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()

	n := len(p)
	capacity := len(r.buf)
	if n >= capacity {
		// Only the tail fits; everything older is gone anyway.
		copy(r.buf, p[n-capacity:])
		r.start = 0
		r.size = capacity
	} else {
		for _, b := range p {
			if r.size == capacity {
				r.buf[r.start] = b
				r.start = (r.start + 1) % capacity
			} else {
				r.buf[(r.start+r.size)%capacity] = b
				r.size++
			}
		}
	}
	r.mu.Unlock()

	// Wake at most one pending reader.
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return n, nil
}

// Drain returns and clears the buffered bytes in arrival order.
func (r *Ring) Drain() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}
	out := make([]byte, r.size)
	capacity := len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%capacity]
	}
	r.start = 0
	r.size = 0
	return out
}

// Len returns the number of currently buffered bytes.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Wait returns a channel that receives when new data arrives.
func (r *Ring) Wait() <-chan struct{} {
	return r.notify
}
