package events

import "github.com/smazurov/pdmnode/internal/api/models"

// Event type constants for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionFinished
	TypeSessionStateChanged
	TypeOverrun
	TypeFlush
	TypeSessionMetrics
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStartedEvent is published when a capture session begins streaming.
type SessionStartedEvent struct {
	Session   models.SessionData `json:"session" doc:"Started session data"`
	Timestamp string             `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionFinishedEvent is published when a capture session ends, whatever
// the outcome.
type SessionFinishedEvent struct {
	SessionID    string `json:"session_id" example:"bench" doc:"Session identifier"`
	Result       string `json:"result" example:"complete" doc:"Outcome: complete, overrun, write_error, cancelled"`
	BytesWritten uint64 `json:"bytes_written" example:"1048576" doc:"Total sample bytes written to the output file"`
	Overruns     uint64 `json:"overruns" example:"0" doc:"Overrun sentinels observed in the stream"`
	Timestamp    string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionFinishedEvent.
func (e SessionFinishedEvent) Type() uint32 { return TypeSessionFinished }

// SessionStateChangedEvent represents a change in session lifecycle state.
type SessionStateChangedEvent struct {
	SessionID string `json:"session_id" example:"bench" doc:"Session identifier"`
	State     string `json:"state" example:"running" doc:"New state: running, finished, failed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// GetSessionID implements the SessionStateEvent interface for reactive subsystems.
func (e SessionStateChangedEvent) GetSessionID() string {
	return e.SessionID
}

// OverrunEvent is published each time an overrun sentinel is detected in
// the capture stream.
type OverrunEvent struct {
	SessionID string `json:"session_id" example:"bench" doc:"Session identifier"`
	Count     uint64 `json:"count" example:"3" doc:"Running overrun count for the session"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for OverrunEvent.
func (e OverrunEvent) Type() uint32 { return TypeOverrun }

// FlushEvent is published when buffered sample data is flushed to the
// output file.
type FlushEvent struct {
	SessionID string `json:"session_id" example:"bench" doc:"Session identifier"`
	Bytes     int    `json:"bytes" example:"1048576" doc:"Bytes written in this flush"`
	Total     uint64 `json:"total" example:"2097152" doc:"Total bytes written so far"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FlushEvent.
func (e FlushEvent) Type() uint32 { return TypeFlush }

// SessionMetricsEvent carries periodic capture pipeline metrics.
type SessionMetricsEvent struct {
	EventType    string `json:"type"`
	SessionID    string `json:"session_id"`
	BytesWritten uint64 `json:"bytes_written"`
	FIFODepth    int    `json:"fifo_depth"`
	Cycles       uint64 `json:"cycles"`
	Overruns     uint64 `json:"overruns"`
}

// Type returns the event type identifier for SessionMetricsEvent.
func (e SessionMetricsEvent) Type() uint32 { return TypeSessionMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
