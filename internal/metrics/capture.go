// Package metrics provides Prometheus metrics for the capture pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	captureBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pdmnode",
		Subsystem: "capture",
		Name:      "bytes_total",
		Help:      "Sample bytes written to the output file",
	}, []string{"session_id"})

	captureFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pdmnode",
		Subsystem: "capture",
		Name:      "flushes_total",
		Help:      "Buffered flushes to the output file",
	}, []string{"session_id"})

	captureOverruns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pdmnode",
		Subsystem: "capture",
		Name:      "overruns_total",
		Help:      "Overrun sentinels seen in the sample stream",
	}, []string{"session_id"})

	fifoDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pdmnode",
		Subsystem: "fifo",
		Name:      "depth_bytes",
		Help:      "Bytes currently queued in the stream FIFO",
	}, []string{"session_id"})

	engineCycles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pdmnode",
		Subsystem: "engine",
		Name:      "cycles_total",
		Help:      "Reference clock cycles executed by the pipeline",
	}, []string{"session_id"})

	// Local cache for SSE exporter access.
	sessionCache   = make(map[string]*SessionMetrics)
	sessionCacheMu sync.RWMutex
)

// SessionMetrics holds current metric values for a session.
type SessionMetrics struct {
	Bytes     float64
	Flushes   float64
	Overruns  float64
	FIFODepth float64
	Cycles    float64
}

// RecordCaptureBytes adds written sample bytes for a session.
func RecordCaptureBytes(sessionID string, n int) {
	captureBytes.WithLabelValues(sessionID).Add(float64(n))
	updateCache(sessionID, func(m *SessionMetrics) { m.Bytes += float64(n) })
}

// RecordFlush counts one file flush for a session.
func RecordFlush(sessionID string) {
	captureFlushes.WithLabelValues(sessionID).Inc()
	updateCache(sessionID, func(m *SessionMetrics) { m.Flushes++ })
}

// RecordOverrun counts one overrun sentinel for a session.
func RecordOverrun(sessionID string) {
	captureOverruns.WithLabelValues(sessionID).Inc()
	updateCache(sessionID, func(m *SessionMetrics) { m.Overruns++ })
}

// SetFIFODepth sets the current FIFO fill level for a session.
func SetFIFODepth(sessionID string, depth int) {
	fifoDepth.WithLabelValues(sessionID).Set(float64(depth))
	updateCache(sessionID, func(m *SessionMetrics) { m.FIFODepth = float64(depth) })
}

// SetEngineCycles sets the executed cycle count for a session.
func SetEngineCycles(sessionID string, cycles uint64) {
	engineCycles.WithLabelValues(sessionID).Set(float64(cycles))
	updateCache(sessionID, func(m *SessionMetrics) { m.Cycles = float64(cycles) })
}

// DeleteSessionMetrics removes all metrics for a session.
func DeleteSessionMetrics(sessionID string) {
	captureBytes.DeleteLabelValues(sessionID)
	captureFlushes.DeleteLabelValues(sessionID)
	captureOverruns.DeleteLabelValues(sessionID)
	fifoDepth.DeleteLabelValues(sessionID)
	engineCycles.DeleteLabelValues(sessionID)

	sessionCacheMu.Lock()
	delete(sessionCache, sessionID)
	sessionCacheMu.Unlock()
}

// GetSessionMetrics returns current metric values for a session.
func GetSessionMetrics(sessionID string) *SessionMetrics {
	sessionCacheMu.RLock()
	defer sessionCacheMu.RUnlock()
	if m, ok := sessionCache[sessionID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllSessionMetrics returns metrics for all tracked sessions.
func GetAllSessionMetrics() map[string]*SessionMetrics {
	sessionCacheMu.RLock()
	defer sessionCacheMu.RUnlock()
	result := make(map[string]*SessionMetrics, len(sessionCache))
	for id, m := range sessionCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(sessionID string, update func(*SessionMetrics)) {
	sessionCacheMu.Lock()
	defer sessionCacheMu.Unlock()
	m, ok := sessionCache[sessionID]
	if !ok {
		m = &SessionMetrics{}
		sessionCache[sessionID] = m
	}
	update(m)
}
