package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/pdmnode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	// Register SSE endpoint with event type mapping
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for session lifecycle, overruns, and flushes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"session-started":       events.SessionStartedEvent{},
		"session-finished":      events.SessionFinishedEvent{},
		"session-state-changed": events.SessionStateChangedEvent{},
		"overrun":               events.OverrunEvent{},
		"flush":                 events.FlushEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 10)

		// Subscribe to all event types using event bus
		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionFinishedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.OverrunEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FlushEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send initial connection confirmation
		if err := send.Data(events.SessionStateChangedEvent{
			SessionID: "system",
			State:     "connected",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		// Keep connection alive and forward events
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				// Send event using Huma's SSE sender with error handling
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}
