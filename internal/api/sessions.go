package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/pdmnode/internal/api/models"
	"github.com/smazurov/pdmnode/internal/capture"
)

// registerSessionRoutes registers all capture session endpoints
func (s *Server) registerSessionRoutes() {
	// List capture sessions
	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List Capture Sessions",
		Description: "Get a list of all capture sessions, running and finished",
		Tags:        []string{"sessions"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SessionListResponse, error) {
		sessions := s.manager.List()

		return &models.SessionListResponse{
			Body: models.SessionListData{
				Sessions: sessions,
				Count:    len(sessions),
			},
		}, nil
	})

	// Start new capture session
	huma.Register(s.api, huma.Operation{
		OperationID: "create-session",
		Method:      http.MethodPost,
		Path:        "/api/sessions",
		Summary:     "Start Capture Session",
		Description: "Start a new capture session writing the sample stream to a file",
		Tags:        []string{"sessions"},
		Errors:      []int{400, 401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SessionRequest) (*models.SessionResponse, error) {
		params := capture.StartParams{
			ID:             input.Body.SessionID,
			File:           input.Body.File,
			Channels:       input.Body.Channels,
			SampleRateHz:   input.Body.SampleRateHz,
			RefClockHz:     input.Body.RefClockHz,
			FIFODepth:      input.Body.FIFODepth,
			ChunkSize:      input.Body.ChunkSize,
			FlushThreshold: input.Body.FlushThreshold,
			Source:         input.Body.Source,
			MaxCycles:      input.Body.MaxCycles,
			Throttle:       input.Body.Throttle,
		}

		data, err := s.manager.Start(params)
		if err != nil {
			return nil, s.mapCaptureError(err)
		}

		return &models.SessionResponse{
			Body: data,
		}, nil
	})

	// Get specific session
	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{session_id}",
		Summary:     "Get Session",
		Description: "Get details of a specific capture session",
		Tags:        []string{"sessions"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id" example:"bench" doc:"Session identifier"`
	}) (*models.SessionResponse, error) {
		data, err := s.manager.Get(input.SessionID)
		if err != nil {
			return nil, s.mapCaptureError(err)
		}

		return &models.SessionResponse{
			Body: data,
		}, nil
	})

	// Stop session
	huma.Register(s.api, huma.Operation{
		OperationID: "delete-session",
		Method:      http.MethodDelete,
		Path:        "/api/sessions/{session_id}",
		Summary:     "Stop Session",
		Description: "Stop a running capture session and finalize its output file",
		Tags:        []string{"sessions"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id" example:"bench" doc:"Session identifier"`
	}) (*struct{}, error) {
		if err := s.manager.Stop(input.SessionID); err != nil {
			return nil, s.mapCaptureError(err)
		}

		return &struct{}{}, nil
	})
}

// mapCaptureError maps domain errors to HTTP errors
func (s *Server) mapCaptureError(err error) error {
	var capErr *capture.CaptureError
	if errors.As(err, &capErr) {
		switch capErr.Code {
		case capture.ErrCodeSessionNotFound:
			return huma.Error404NotFound(capErr.Message, err)
		case capture.ErrCodeSessionExists:
			return huma.Error409Conflict(capErr.Message, err)
		case capture.ErrCodeInvalidParams:
			return huma.Error400BadRequest(capErr.Message, err)
		case capture.ErrCodeFileCreate, capture.ErrCodeWriteFailed:
			return huma.Error500InternalServerError(capErr.Message, err)
		default:
			return huma.Error500InternalServerError("internal server error", err)
		}
	}
	return huma.Error500InternalServerError("internal server error", err)
}
