package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/pdmnode/internal/api/models"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan SessionFinishedEvent, 1)

	unsub := bus.Subscribe(func(e SessionFinishedEvent) {
		received <- e
	})
	defer unsub()

	event := SessionFinishedEvent{
		SessionID:    "bench",
		Result:       "complete",
		BytesWritten: 1024,
		Timestamp:    "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.SessionID != event.SessionID {
		t.Errorf("Expected session_id %s, got %s", event.SessionID, got.SessionID)
	}
	if got.BytesWritten != event.BytesWritten {
		t.Errorf("Expected bytes_written %d, got %d", event.BytesWritten, got.BytesWritten)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan SessionStartedEvent, 1)
	received2 := make(chan SessionStartedEvent, 1)

	unsub1 := bus.Subscribe(func(e SessionStartedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e SessionStartedEvent) {
		received2 <- e
	})
	defer unsub2()

	event := SessionStartedEvent{
		Session: models.SessionData{SessionID: "test"},
	}
	bus.Publish(event)

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan OverrunEvent, 1)

	unsub := bus.Subscribe(func(e OverrunEvent) {
		received <- e
	})

	bus.Publish(OverrunEvent{SessionID: "bench", Count: 1})
	<-received

	unsub()

	bus.Publish(OverrunEvent{SessionID: "bench", Count: 2})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	overrunReceived := make(chan bool, 1)
	flushReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ OverrunEvent) {
		overrunReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ FlushEvent) {
		flushReceived <- true
	})
	defer unsub2()

	// Publish OverrunEvent
	bus.Publish(OverrunEvent{SessionID: "bench"})
	<-overrunReceived

	select {
	case <-flushReceived:
		t.Fatal("Flush subscriber should NOT have received OverrunEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	// Publish FlushEvent
	bus.Publish(FlushEvent{SessionID: "bench", Bytes: 512})
	<-flushReceived

	select {
	case <-overrunReceived:
		t.Fatal("Overrun subscriber should NOT have received FlushEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ SessionMetricsEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(SessionMetricsEvent{
					EventType: "session_metrics",
					SessionID: "bench",
				})
			}
		}()
	}

	wg.Wait()

	// Read all expected events
	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"SessionStarted", SessionStartedEvent{Session: models.SessionData{SessionID: "test"}}},
		{"SessionFinished", SessionFinishedEvent{SessionID: "test", Result: "complete"}},
		{"SessionStateChanged", SessionStateChangedEvent{SessionID: "test", State: "running"}},
		{"Overrun", OverrunEvent{SessionID: "test", Count: 1}},
		{"Flush", FlushEvent{SessionID: "test", Bytes: 64}},
		{"SessionMetrics", SessionMetricsEvent{EventType: "session_metrics", SessionID: "test"}},
		{"LogEntry", LogEntryEvent{Seq: 1, Level: "info", Module: "api"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case SessionStartedEvent:
				unsub = bus.Subscribe(func(e SessionStartedEvent) { received <- e })
			case SessionFinishedEvent:
				unsub = bus.Subscribe(func(e SessionFinishedEvent) { received <- e })
			case SessionStateChangedEvent:
				unsub = bus.Subscribe(func(e SessionStateChangedEvent) { received <- e })
			case OverrunEvent:
				unsub = bus.Subscribe(func(e OverrunEvent) { received <- e })
			case FlushEvent:
				unsub = bus.Subscribe(func(e FlushEvent) { received <- e })
			case SessionMetricsEvent:
				unsub = bus.Subscribe(func(e SessionMetricsEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestEventJSONSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event any
	}{
		{
			"SessionStartedEvent",
			SessionStartedEvent{
				Session:   models.SessionData{SessionID: "bench"},
				Timestamp: "2025-01-27T10:30:00Z",
			},
		},
		{
			"SessionFinishedEvent",
			SessionFinishedEvent{
				SessionID:    "bench",
				Result:       "overrun",
				BytesWritten: 4096,
				Overruns:     2,
				Timestamp:    "2025-01-27T10:30:00Z",
			},
		},
		{
			"SessionStateChangedEvent",
			SessionStateChangedEvent{
				SessionID: "bench",
				State:     "running",
				Timestamp: "2025-01-27T10:30:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}

			if len(result) == 0 {
				t.Fatal("Unmarshaled to empty object")
			}
		})
	}
}

func TestSessionStateChangedEvent_Interface(t *testing.T) {
	event := SessionStateChangedEvent{
		SessionID: "test-123",
		State:     "running",
		Timestamp: "2025-01-27T10:30:00Z",
	}

	if event.GetSessionID() != "test-123" {
		t.Errorf("Expected session_id test-123, got %s", event.GetSessionID())
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[OverrunEvent](bus, ch)
	defer unsub()

	event := OverrunEvent{
		SessionID: "bench",
		Count:     7,
	}
	bus.Publish(event)

	received := <-ch
	overrunEvent, ok := received.(OverrunEvent)
	if !ok {
		t.Fatalf("Expected OverrunEvent, got %T", received)
	}
	if overrunEvent.Count != event.Count {
		t.Errorf("Expected count %d, got %d", event.Count, overrunEvent.Count)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[SessionStartedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(SessionStartedEvent{Session: models.SessionData{SessionID: "test"}})
		done <- true
	}()

	<-done // Should complete without blocking
}
