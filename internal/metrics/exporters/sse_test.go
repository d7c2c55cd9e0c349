package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/pdmnode/internal/events"
	"github.com/smazurov/pdmnode/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		events:    make([]events.Event, 0),
		published: make(chan struct{}, 100),
	}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

func TestSSEExporterPublishesMetrics(t *testing.T) {
	sessionID := "sse-test-session"
	metrics.DeleteSessionMetrics(sessionID)

	// Set up metrics
	metrics.RecordCaptureBytes(sessionID, 4096)
	metrics.SetFIFODepth(sessionID, 17)
	metrics.SetEngineCycles(sessionID, 88000)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)

	// Wait for at least one publish cycle
	select {
	case <-mock.published:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for metrics publish")
	}

	cancel()
	exporter.Stop()

	evts := mock.getEvents()
	if len(evts) == 0 {
		t.Fatal("expected at least one event")
	}

	var found bool
	for _, ev := range evts {
		if sme, ok := ev.(events.SessionMetricsEvent); ok {
			if sme.SessionID == sessionID {
				found = true
				if sme.BytesWritten != 4096 {
					t.Errorf("BytesWritten = %d, want 4096", sme.BytesWritten)
				}
				if sme.FIFODepth != 17 {
					t.Errorf("FIFODepth = %d, want 17", sme.FIFODepth)
				}
				if sme.Cycles != 88000 {
					t.Errorf("Cycles = %d, want 88000", sme.Cycles)
				}
				break
			}
		}
	}

	if !found {
		t.Error("expected SessionMetricsEvent for test session")
	}

	metrics.DeleteSessionMetrics(sessionID)
}

func TestSSEExporterNoMetrics(t *testing.T) {
	// Use unique session ID to avoid interference from other tests
	testSessionID := "sse-no-metrics-test"
	metrics.DeleteSessionMetrics(testSessionID)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)

	// Wait for at least one publish cycle
	time.Sleep(50 * time.Millisecond)

	cancel()
	exporter.Stop()

	// Verify no events were published for our test session
	for _, ev := range mock.getEvents() {
		if sme, ok := ev.(events.SessionMetricsEvent); ok {
			if sme.SessionID == testSessionID {
				t.Errorf("unexpected event for deleted session %q", testSessionID)
			}
		}
	}
}
