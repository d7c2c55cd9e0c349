package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/pdmnode/internal/events"
	"github.com/smazurov/pdmnode/internal/gateware"
)

// scriptTransport replays a fixed chunk sequence, then returns err
// (io.EOF when unset).
type scriptTransport struct {
	chunks [][]byte
	err    error
	next   int
}

func (t *scriptTransport) Read(_ context.Context) ([]byte, error) {
	if t.next < len(t.chunks) {
		c := t.chunks[t.next]
		t.next++
		return c, nil
	}
	if t.err != nil {
		return nil, t.err
	}
	return nil, io.EOF
}

// blockingTransport blocks until the context is cancelled.
type blockingTransport struct{}

func (blockingTransport) Read(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestSession(t *testing.T, transport Transport, threshold int) (*Session, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "capture.pdm")
	s, err := NewSession(SessionConfig{
		ID:             "test",
		File:           file,
		FlushThreshold: threshold,
		Transport:      transport,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s, file
}

func TestSessionWritesStream(t *testing.T) {
	transport := &scriptTransport{chunks: [][]byte{
		[]byte("abc"),
		[]byte("def"),
	}}
	s, file := newTestSession(t, transport, 0)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result != ResultComplete {
		t.Errorf("result = %v, want complete", result)
	}

	data, readErr := os.ReadFile(file)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if string(data) != "abcdef" {
		t.Errorf("file content = %q, want %q", data, "abcdef")
	}
	if s.Flushes() != 1 {
		t.Errorf("flushes = %d, want 1 (final flush only)", s.Flushes())
	}
	if s.State() != StateFinished {
		t.Errorf("state = %q, want finished", s.State())
	}
}

func TestSessionSentinelMidChunk(t *testing.T) {
	// Bytes before the sentinel are valid data, everything from the
	// sentinel on is discarded, and later chunks are never read.
	transport := &scriptTransport{chunks: [][]byte{
		{},
		{0x01, 0x02},
		{0x03, 0xFF, 0x04},
		{0x05},
	}}
	s, file := newTestSession(t, transport, 0)

	result, err := s.Run(context.Background())
	if result != ResultOverrun {
		t.Errorf("result = %v, want overrun", result)
	}
	var capErr *CaptureError
	if !errors.As(err, &capErr) || capErr.Code != ErrCodeOverrun {
		t.Errorf("err = %v, want CaptureError with code %s", err, ErrCodeOverrun)
	}

	data, readErr := os.ReadFile(file)
	if readErr != nil {
		t.Fatal(readErr)
	}
	want := []byte{0x01, 0x02, 0x03}
	if string(data) != string(want) {
		t.Errorf("file content = %v, want %v", data, want)
	}
	if s.Overruns() != 1 {
		t.Errorf("overruns = %d, want 1", s.Overruns())
	}
	if transport.next != 3 {
		t.Errorf("transport reads = %d, want 3 (stop at sentinel chunk)", transport.next)
	}
}

func TestSessionSentinelFirstByte(t *testing.T) {
	transport := &scriptTransport{chunks: [][]byte{
		{0xFF, 0x01, 0x02},
	}}
	s, file := newTestSession(t, transport, 0)

	result, _ := s.Run(context.Background())
	if result != ResultOverrun {
		t.Errorf("result = %v, want overrun", result)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("file content = %v, want empty", data)
	}
}

func TestSessionFlushThreshold(t *testing.T) {
	transport := &scriptTransport{chunks: [][]byte{
		[]byte("AAAAA"),
		[]byte("BBBBB"),
		[]byte("CCCCC"),
	}}
	s, file := newTestSession(t, transport, 8)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result != ResultComplete {
		t.Errorf("result = %v, want complete", result)
	}

	data, readErr := os.ReadFile(file)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if string(data) != "AAAAABBBBBCCCCC" {
		t.Errorf("file content = %q, want all chunks in order", data)
	}
	// Buffer crosses the 8-byte threshold once mid-stream, then the
	// remainder goes out in the final flush.
	if s.Flushes() != 2 {
		t.Errorf("flushes = %d, want 2", s.Flushes())
	}
	if s.BytesWritten() != 15 {
		t.Errorf("bytes_written = %d, want 15", s.BytesWritten())
	}
}

func TestSessionFileCreateFailure(t *testing.T) {
	s, err := NewSession(SessionConfig{
		ID:        "test",
		File:      filepath.Join(t.TempDir(), "missing", "capture.pdm"),
		Transport: &scriptTransport{},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	result, runErr := s.Run(context.Background())
	if result != ResultWriteError {
		t.Errorf("result = %v, want write_error", result)
	}
	var capErr *CaptureError
	if !errors.As(runErr, &capErr) || capErr.Code != ErrCodeFileCreate {
		t.Errorf("err = %v, want CaptureError with code %s", runErr, ErrCodeFileCreate)
	}
	if s.State() != StateFailed {
		t.Errorf("state = %q, want failed", s.State())
	}
}

func TestSessionCancel(t *testing.T) {
	s, file := newTestSession(t, blockingTransport{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		result, _ := s.Run(ctx)
		done <- result
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		if result != ResultComplete {
			t.Errorf("result = %v, want complete (cancel is a normal end)", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancel")
	}

	if _, err := os.Stat(file); err != nil {
		t.Errorf("output file missing after cancel: %v", err)
	}
}

func TestSessionPublishesFinishedEvent(t *testing.T) {
	bus := events.New()
	received := make(chan events.SessionFinishedEvent, 1)
	unsub := bus.Subscribe(func(e events.SessionFinishedEvent) {
		received <- e
	})
	defer unsub()

	transport := &scriptTransport{chunks: [][]byte{{0x01, 0xFF}}}
	file := filepath.Join(t.TempDir(), "capture.pdm")
	s, err := NewSession(SessionConfig{
		ID:        "evt",
		File:      file,
		Transport: transport,
		Bus:       bus,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if _, runErr := s.Run(context.Background()); runErr == nil {
		t.Fatal("expected overrun error")
	}

	select {
	case e := <-received:
		if e.SessionID != "evt" {
			t.Errorf("session_id = %q, want evt", e.SessionID)
		}
		if e.Result != "overrun" {
			t.Errorf("result = %q, want overrun", e.Result)
		}
		if e.BytesWritten != 1 {
			t.Errorf("bytes_written = %d, want 1", e.BytesWritten)
		}
	case <-time.After(time.Second):
		t.Fatal("no finished event published")
	}
}

func TestNewSessionValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SessionConfig
	}{
		{"empty id", SessionConfig{File: "f", Transport: &scriptTransport{}}},
		{"empty file", SessionConfig{ID: "x", Transport: &scriptTransport{}}},
		{"nil transport", SessionConfig{ID: "x", File: "f"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSession(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestResultExitCodes(t *testing.T) {
	tests := []struct {
		result Result
		code   int
		str    string
	}{
		{ResultComplete, 0, "complete"},
		{ResultOverrun, 2, "overrun"},
		{ResultWriteError, 3, "write_error"},
	}

	for _, tt := range tests {
		if got := tt.result.ExitCode(); got != tt.code {
			t.Errorf("%v.ExitCode() = %d, want %d", tt.result, got, tt.code)
		}
		if got := tt.result.String(); got != tt.str {
			t.Errorf("Result.String() = %q, want %q", got, tt.str)
		}
	}
}

func TestFIFOTransport(t *testing.T) {
	fifo := gateware.NewFIFO(16)
	for _, b := range []byte{0x10, 0x20, 0x30} {
		fifo.Write(b)
	}

	transport := NewFIFOTransport(fifo, 8)
	chunk, err := transport.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(chunk) != string([]byte{0x10, 0x20, 0x30}) {
		t.Errorf("chunk = %v, want queued bytes", chunk)
	}

	fifo.Close()
	if _, err := transport.Read(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF after close", err)
	}
}
