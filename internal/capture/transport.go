package capture

import (
	"context"

	"github.com/smazurov/pdmnode/internal/gateware"
)

// DefaultChunkSize is the read granularity for FIFO-backed transports.
const DefaultChunkSize = 4096

// Transport delivers chunks of the capture byte stream to a Session.
// Read blocks until data is available, the stream ends, or the context
// is cancelled. An empty chunk with a nil error is a spurious wake and
// carries no meaning. io.EOF signals a clean end of stream.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
}

// FIFOTransport adapts the pipeline FIFO to the Transport interface.
type FIFOTransport struct {
	fifo      *gateware.FIFO
	chunkSize int
}

// NewFIFOTransport creates a transport reading from the given FIFO.
func NewFIFOTransport(fifo *gateware.FIFO, chunkSize int) *FIFOTransport {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &FIFOTransport{
		fifo:      fifo,
		chunkSize: chunkSize,
	}
}

// Read returns the next chunk of the byte stream. The returned slice is
// freshly allocated on every call, so callers may retain it.
func (t *FIFOTransport) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, t.chunkSize)
	n, err := t.fifo.Read(ctx, buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}
