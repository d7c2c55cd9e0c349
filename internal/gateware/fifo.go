package gateware

import (
	"context"
	"io"
	"sync"
)

// FIFO is the bounded byte queue between the engine and the host transport.
// The engine tick goroutine is the only producer and the transport the only
// consumer, so a WriteReady/Write pair on the producer side cannot race: the
// consumer only ever frees space, never takes it.
type FIFO struct {
	ch   chan byte
	once sync.Once
}

// NewFIFO creates a queue holding up to depth bytes.
func NewFIFO(depth int) *FIFO {
	return &FIFO{ch: make(chan byte, depth)}
}

// WriteReady reports whether the queue has room for at least one byte.
func (f *FIFO) WriteReady() bool {
	return len(f.ch) < cap(f.ch)
}

// Write enqueues one byte. The producer must have observed WriteReady since
// its last write; the streamer state machine guarantees that.
func (f *FIFO) Write(b byte) {
	f.ch <- b
}

// Close marks the end of the stream. Safe to call more than once. The
// producer must not write after closing.
func (f *FIFO) Close() {
	f.once.Do(func() { close(f.ch) })
}

// Read blocks until at least one byte is available, then drains up to
// len(p) bytes without further blocking. It returns io.EOF once the queue
// is closed and empty, or the context error if ctx is done first.
func (f *FIFO) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case b, ok := <-f.ch:
		if !ok {
			return 0, io.EOF
		}
		p[0] = b
		n := 1
		for n < len(p) {
			select {
			case b, ok := <-f.ch:
				if !ok {
					return n, nil
				}
				p[n] = b
				n++
			default:
				return n, nil
			}
		}
		return n, nil
	}
}

// Len returns the number of queued bytes.
func (f *FIFO) Len() int {
	return len(f.ch)
}

// Cap returns the queue depth.
func (f *FIFO) Cap() int {
	return cap(f.ch)
}
