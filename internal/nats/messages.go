package nats

import (
	"encoding/json"
	"fmt"
)

// Subject prefixes for NATS topics.
const (
	SubjectSessionsPrefix = "pdmnode.sessions"
	SubjectControlPrefix  = "pdmnode.control"
)

// SubjectSessionMetrics returns the full NATS subject for session metrics.
func SubjectSessionMetrics(sessionID string) string {
	return fmt.Sprintf("%s.%s.metrics", SubjectSessionsPrefix, sessionID)
}

// SubjectSessionLogs returns the full NATS subject for session logs.
func SubjectSessionLogs(sessionID string) string {
	return fmt.Sprintf("%s.%s.logs", SubjectSessionsPrefix, sessionID)
}

// SubjectSessionState returns the full NATS subject for session state changes.
func SubjectSessionState(sessionID string) string {
	return fmt.Sprintf("%s.%s.state", SubjectSessionsPrefix, sessionID)
}

// SubjectControlStop returns the NATS subject for stop commands.
func SubjectControlStop(sessionID string) string {
	return fmt.Sprintf("%s.%s.stop", SubjectControlPrefix, sessionID)
}

// MetricsMessage represents capture session metrics sent over NATS.
type MetricsMessage struct {
	SessionID    string `json:"session_id"`
	Timestamp    string `json:"timestamp"`
	BytesWritten uint64 `json:"bytes_written"`
	FIFODepth    int    `json:"fifo_depth"`
	Cycles       uint64 `json:"cycles"`
	Overruns     uint64 `json:"overruns"`
}

// Marshal serializes the message to JSON.
func (m MetricsMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// LogMessage represents a log entry sent over NATS.
type LogMessage struct {
	SessionID string         `json:"session_id"`
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"` // debug, info, warn, error
	Message   string         `json:"message"`
	Module    string         `json:"module"` // gateware, capture
	Details   map[string]any `json:"details,omitempty"`
}

// Marshal serializes the message to JSON.
func (m LogMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// StateMessage represents a session state change sent over NATS.
type StateMessage struct {
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`            // running, finished, failed
	Result    string `json:"result,omitempty"` // complete, overrun, write_error
}

// Marshal serializes the message to JSON.
func (m StateMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ControlMessage represents a control command sent to capture workers.
type ControlMessage struct {
	Action    string `json:"action"` // stop
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalMetrics deserializes a MetricsMessage from JSON.
func UnmarshalMetrics(data []byte) (MetricsMessage, error) {
	var m MetricsMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalLog deserializes a LogMessage from JSON.
func UnmarshalLog(data []byte) (LogMessage, error) {
	var m LogMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalState deserializes a StateMessage from JSON.
func UnmarshalState(data []byte) (StateMessage, error) {
	var m StateMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
