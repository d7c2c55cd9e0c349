// Package nats provides embedded NATS messaging for inter-process communication
// between the main pdmnode process and capture worker processes.
//
// # Architecture
//
//   - Server: Embedded NATS server running in the main process (pdmnode serve)
//   - SessionClient: NATS client for capture workers (pdmnode capture <file>)
//   - Bridge: Subscribes to NATS subjects and publishes to the event bus
//
// # Subject Hierarchy
//
//	pdmnode.sessions.{session_id}.metrics   # Capture metrics (client → server)
//	pdmnode.sessions.{session_id}.logs      # Log messages (client → server)
//	pdmnode.sessions.{session_id}.state     # State changes (client → server)
//	pdmnode.control.{session_id}.stop       # Stop command (server → client)
//
// The package uses fire-and-forget messaging (core NATS, no JetStream).
// Session clients gracefully degrade when NATS is unavailable.
//
// # Useful Debug Commands
//
// Monitor all session messages (metrics, logs, state):
//
//	nats sub "pdmnode.sessions.>"
//
// Monitor metrics for a specific session:
//
//	nats sub "pdmnode.sessions.bench.metrics"
//
// Send a stop command manually:
//
//	nats pub "pdmnode.control.bench.stop" '{"action":"stop","session_id":"bench","timestamp":"2025-01-01T00:00:00Z","reason":"manual_debug"}'
//
// Check server info and connected clients:
//
//	nats server info
//	nats server list
//
// # Message Formats
//
// MetricsMessage (pdmnode.sessions.{id}.metrics):
//
//	{
//	  "session_id": "bench",
//	  "timestamp": "2025-01-01T12:00:00Z",
//	  "bytes_written": 1048576,
//	  "fifo_depth": 12,
//	  "cycles": 48000000,
//	  "overruns": 0
//	}
//
// LogMessage (pdmnode.sessions.{id}.logs):
//
//	{
//	  "session_id": "bench",
//	  "timestamp": "2025-01-01T12:00:00Z",
//	  "level": "info",
//	  "message": "Capture started",
//	  "module": "capture"
//	}
//
// StateMessage (pdmnode.sessions.{id}.state):
//
//	{
//	  "session_id": "bench",
//	  "timestamp": "2025-01-01T12:00:00Z",
//	  "state": "finished",
//	  "result": "complete"
//	}
//
// ControlMessage (pdmnode.control.{id}.stop):
//
//	{
//	  "action": "stop",
//	  "session_id": "bench",
//	  "timestamp": "2025-01-01T12:00:00Z",
//	  "reason": "api_stop"
//	}
package nats
