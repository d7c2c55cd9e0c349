package models

import (
	"time"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Session models
type SessionData struct {
	SessionID    string        `json:"session_id" example:"bench" doc:"Unique session identifier"`
	File         string        `json:"file" example:"/tmp/capture.pdm" doc:"Destination file for the sample stream"`
	State        string        `json:"state" example:"running" doc:"Session state: running, finished, failed"`
	Result       string        `json:"result,omitempty" example:"complete" doc:"Final outcome once finished: complete, overrun, write_error"`
	Channels     int           `json:"channels" example:"3" doc:"Number of microphone channels (1..3)"`
	SampleRateHz int           `json:"sample_rate_hz" example:"2200000" doc:"Target PDM sample rate in Hz"`
	RefClockHz   int           `json:"ref_clock_hz" example:"48000000" doc:"Reference clock frequency in Hz"`
	FIFODepth    int           `json:"fifo_depth" example:"8192" doc:"Stream FIFO depth in bytes"`
	Source       string        `json:"source,omitempty" example:"noise" doc:"Stimulus source: noise, square, constant"`
	BytesWritten uint64        `json:"bytes_written" example:"1048576" doc:"Sample bytes written to the output file"`
	Overruns     uint64        `json:"overruns" example:"0" doc:"Overrun sentinels observed"`
	Flushes      uint64        `json:"flushes" example:"1" doc:"Buffered flushes to the output file"`
	Uptime       time.Duration `json:"uptime,omitempty" example:"3600000000000" doc:"Session uptime in nanoseconds"`
	StartTime    time.Time     `json:"start_time,omitempty" doc:"When the session was started"`
}

type SessionListData struct {
	Sessions []SessionData `json:"sessions" doc:"List of capture sessions"`
	Count    int           `json:"count" example:"1" doc:"Number of capture sessions"`
}

type SessionListResponse struct {
	Body SessionListData
}

type SessionRequestData struct {
	SessionID      string `json:"session_id" pattern:"^[a-zA-Z0-9_-]+$" minLength:"1" maxLength:"50" example:"bench" doc:"User-defined session identifier (alphanumeric, dashes, underscores only)"`
	File           string `json:"file" minLength:"1" example:"/tmp/capture.pdm" doc:"Destination file path"`
	Channels       int    `json:"channels,omitempty" minimum:"1" maximum:"3" example:"3" doc:"Number of microphone channels"`
	SampleRateHz   int    `json:"sample_rate_hz,omitempty" example:"2200000" doc:"Target PDM sample rate in Hz"`
	RefClockHz     int    `json:"ref_clock_hz,omitempty" example:"48000000" doc:"Reference clock frequency in Hz"`
	FIFODepth      int    `json:"fifo_depth,omitempty" example:"8192" doc:"Stream FIFO depth in bytes"`
	ChunkSize      int    `json:"chunk_size,omitempty" example:"4096" doc:"Transport read granularity in bytes"`
	FlushThreshold int    `json:"flush_threshold,omitempty" example:"1048576" doc:"File flush threshold in bytes"`
	Source         string `json:"source,omitempty" enum:"noise,square,constant" example:"noise" doc:"Stimulus source"`
	MaxCycles      uint64 `json:"max_cycles,omitempty" example:"48000000" doc:"Stop after this many reference cycles (0 = unlimited)"`
	Throttle       bool   `json:"throttle,omitempty" example:"true" doc:"Pace the pipeline to the reference clock"`
}

type SessionRequest struct {
	Body SessionRequestData
}

type SessionResponse struct {
	Body SessionData
}

// Error response
type ErrorData struct {
	Status  string `json:"status" example:"error" doc:"Error status"`
	Message string `json:"message" example:"Session not found" doc:"Error message"`
}

type ErrorResponse struct {
	Body ErrorData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}
