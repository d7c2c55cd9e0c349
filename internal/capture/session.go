package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/smazurov/pdmnode/internal/api/models"
	"github.com/smazurov/pdmnode/internal/events"
	"github.com/smazurov/pdmnode/internal/gateware"
	"github.com/smazurov/pdmnode/internal/logging"
	"github.com/smazurov/pdmnode/internal/metrics"
)

// DefaultFlushThreshold is how much sample data is buffered in memory
// before it is written to the output file.
const DefaultFlushThreshold = 1 << 20

// Session states.
const (
	StatePending  = "pending"
	StateRunning  = "running"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// Result identifies how a capture session ended.
type Result int

const (
	// ResultComplete is a normal end of stream, including cancellation.
	ResultComplete Result = iota
	// ResultOverrun means the stream lost samples to a FIFO overrun.
	ResultOverrun
	// ResultWriteError means the output file could not be written.
	ResultWriteError
)

func (r Result) String() string {
	switch r {
	case ResultOverrun:
		return "overrun"
	case ResultWriteError:
		return "write_error"
	default:
		return "complete"
	}
}

// ExitCode maps a result to a process exit code for the capture command.
func (r Result) ExitCode() int {
	switch r {
	case ResultOverrun:
		return 2
	case ResultWriteError:
		return 3
	default:
		return 0
	}
}

// SessionConfig configures a capture session.
type SessionConfig struct {
	ID             string
	File           string
	FlushThreshold int // bytes buffered before a file write, 0 = default
	Transport      Transport
	Bus            *events.Bus // optional
}

// Session consumes the capture byte stream from a Transport and writes
// it to a file. A session runs once.
type Session struct {
	id             string
	file           string
	flushThreshold int
	transport      Transport
	bus            *events.Bus
	logger         *slog.Logger

	mu           sync.Mutex
	state        string
	result       Result
	bytesWritten uint64
	overruns     uint64
	flushes      uint64
	startedAt    time.Time
}

// NewSession creates a capture session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.ID == "" {
		return nil, NewCaptureError(ErrCodeInvalidParams, "session ID cannot be empty", nil)
	}
	if cfg.File == "" {
		return nil, NewCaptureError(ErrCodeInvalidParams, "destination file cannot be empty", nil)
	}
	if cfg.Transport == nil {
		return nil, NewCaptureError(ErrCodeInvalidParams, "transport cannot be nil", nil)
	}

	threshold := cfg.FlushThreshold
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}

	return &Session{
		id:             cfg.ID,
		file:           cfg.File,
		flushThreshold: threshold,
		transport:      cfg.Transport,
		bus:            cfg.Bus,
		state:          StatePending,
		logger:         logging.GetLogger("capture").With("session_id", cfg.ID),
	}, nil
}

// Run streams sample data to the destination file until the transport
// ends, an overrun sentinel is seen, a write fails, or ctx is cancelled.
// The file is created (or truncated) on entry and closed on every exit
// path. Write failures never propagate as panics; they end the session
// with ResultWriteError.
func (s *Session) Run(ctx context.Context) (Result, error) {
	f, err := os.Create(s.file)
	if err != nil {
		s.finish(ResultWriteError)
		return ResultWriteError, NewCaptureError(ErrCodeFileCreate, "failed to create output file", err)
	}
	defer f.Close()

	s.mu.Lock()
	s.state = StateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("Capture session started", "file", s.file, "flush_threshold", s.flushThreshold)
	s.publishState(StateRunning)

	buf := make([]byte, 0, s.flushThreshold)
	result := ResultComplete
	var runErr error

loop:
	for {
		chunk, readErr := s.transport.Read(ctx)

		if i := bytes.IndexByte(chunk, gateware.OverrunSentinel); i >= 0 {
			// Bytes ahead of the sentinel are valid samples; everything
			// from the sentinel on is out of sync and discarded.
			buf = append(buf, chunk[:i]...)
			s.recordOverrun()
			s.logger.Error("FIFO overrun, sample stream lost sync")
			result = ResultOverrun
			runErr = NewCaptureError(ErrCodeOverrun, "FIFO overrun in sample stream", nil)
			break loop
		}
		buf = append(buf, chunk...)

		if len(buf) >= s.flushThreshold {
			if flushErr := s.flush(f, &buf); flushErr != nil {
				result = ResultWriteError
				runErr = flushErr
				break loop
			}
		}

		if readErr != nil {
			switch {
			case errors.Is(readErr, io.EOF):
				s.logger.Debug("Transport reached end of stream")
			case errors.Is(readErr, context.Canceled), errors.Is(readErr, context.DeadlineExceeded):
				s.logger.Debug("Capture cancelled")
			default:
				// Transport failure is an ordinary end of capture
				s.logger.Warn("Transport closed", "error", readErr)
			}
			break loop
		}
	}

	if result != ResultWriteError {
		if flushErr := s.flush(f, &buf); flushErr != nil {
			result = ResultWriteError
			runErr = flushErr
		}
	}

	s.finish(result)
	s.logger.Info("Capture session finished",
		"result", result.String(),
		"bytes_written", s.BytesWritten(),
		"overruns", s.Overruns())
	return result, runErr
}

// flush writes the buffered sample data to the file and resets the
// buffer. An empty buffer is a no-op.
func (s *Session) flush(f *os.File, buf *[]byte) error {
	if len(*buf) == 0 {
		return nil
	}

	n, err := f.Write(*buf)
	if err != nil {
		s.logger.Error("Failed to write sample data", "error", err, "bytes", len(*buf))
		return NewCaptureError(ErrCodeWriteFailed, "failed to write sample data", err)
	}

	s.mu.Lock()
	s.bytesWritten += uint64(n)
	s.flushes++
	total := s.bytesWritten
	s.mu.Unlock()

	metrics.RecordCaptureBytes(s.id, n)
	metrics.RecordFlush(s.id)

	if s.bus != nil {
		s.bus.Publish(events.FlushEvent{
			SessionID: s.id,
			Bytes:     n,
			Total:     total,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	s.logger.Debug("Flushed sample data", "bytes", n, "total", total)
	*buf = (*buf)[:0]
	return nil
}

func (s *Session) recordOverrun() {
	s.mu.Lock()
	s.overruns++
	count := s.overruns
	s.mu.Unlock()

	metrics.RecordOverrun(s.id)

	if s.bus != nil {
		s.bus.Publish(events.OverrunEvent{
			SessionID: s.id,
			Count:     count,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

func (s *Session) finish(result Result) {
	state := StateFinished
	if result == ResultWriteError {
		state = StateFailed
	}

	s.mu.Lock()
	s.state = state
	s.result = result
	bytesWritten := s.bytesWritten
	overruns := s.overruns
	s.mu.Unlock()

	s.publishState(state)

	if s.bus != nil {
		s.bus.Publish(events.SessionFinishedEvent{
			SessionID:    s.id,
			Result:       result.String(),
			BytesWritten: bytesWritten,
			Overruns:     overruns,
			Timestamp:    time.Now().Format(time.RFC3339),
		})
	}
}

func (s *Session) publishState(state string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.SessionStateChangedEvent{
		SessionID: s.id,
		State:     state,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// File returns the destination file path.
func (s *Session) File() string { return s.file }

// State returns the current session state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BytesWritten returns the sample bytes written to the file so far.
func (s *Session) BytesWritten() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesWritten
}

// Overruns returns the overrun sentinels seen so far.
func (s *Session) Overruns() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}

// Flushes returns the completed file flushes so far.
func (s *Session) Flushes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Result returns the session outcome. Only meaningful once State is
// finished or failed.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Data returns a snapshot of the session for API responses. Pipeline
// fields (channels, clocking) are filled in by the manager.
func (s *Session) Data() models.SessionData {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := models.SessionData{
		SessionID:    s.id,
		File:         s.file,
		State:        s.state,
		BytesWritten: s.bytesWritten,
		Overruns:     s.overruns,
		Flushes:      s.flushes,
		StartTime:    s.startedAt,
	}
	if !s.startedAt.IsZero() {
		d.Uptime = time.Since(s.startedAt)
	}
	if s.state == StateFinished || s.state == StateFailed {
		d.Result = s.result.String()
	}
	return d
}
