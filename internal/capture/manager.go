package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/pdmnode/internal/api/models"
	"github.com/smazurov/pdmnode/internal/events"
	"github.com/smazurov/pdmnode/internal/gateware"
	"github.com/smazurov/pdmnode/internal/logging"
	"github.com/smazurov/pdmnode/internal/metrics"
)

// StartParams describe a capture session to launch. Zero values fall
// back to the pipeline defaults.
type StartParams struct {
	ID             string
	File           string
	Channels       int
	SampleRateHz   int
	RefClockHz     int
	FIFODepth      int
	ChunkSize      int
	FlushThreshold int
	Source         string
	MaxCycles      uint64
	Throttle       bool
}

// NewPinSource builds a stimulus source by name. An empty name selects
// the noise source.
func NewPinSource(name string, channels int) (gateware.PinSource, error) {
	switch name {
	case "", "noise":
		return gateware.NewNoiseSource(channels, 0.5, uint64(time.Now().UnixNano())), nil
	case "square":
		return &gateware.SquareSource{Word: uint8(1<<channels - 1), Period: 16}, nil
	case "constant":
		return gateware.ConstantSource(0), nil
	default:
		return nil, NewCaptureError(ErrCodeInvalidParams, fmt.Sprintf("unknown stimulus source %q", name), nil)
	}
}

type managedSession struct {
	session *Session
	engine  *gateware.Engine
	cfg     gateware.Config
	source  string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Manager launches and tracks in-process capture sessions for the
// management API.
type Manager struct {
	bus    *events.Bus
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

// NewManager creates a session manager. The bus may be nil.
func NewManager(bus *events.Bus) *Manager {
	return &Manager{
		bus:      bus,
		logger:   logging.GetLogger("capture"),
		sessions: make(map[string]*managedSession),
	}
}

// Start launches a capture session. A finished session with the same ID
// is replaced; a running one is an error.
func (m *Manager) Start(params StartParams) (models.SessionData, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[params.ID]; ok {
		state := existing.session.State()
		if state == StatePending || state == StateRunning {
			m.mu.Unlock()
			return models.SessionData{}, NewCaptureError(ErrCodeSessionExists,
				fmt.Sprintf("session %s is already running", params.ID), nil)
		}
		delete(m.sessions, params.ID)
	}
	m.mu.Unlock()

	cfg := gateware.DefaultConfig()
	if params.Channels > 0 {
		cfg.Channels = params.Channels
	}
	if params.SampleRateHz > 0 {
		cfg.SampleRateHz = float64(params.SampleRateHz)
	}
	if params.RefClockHz > 0 {
		cfg.RefClockHz = float64(params.RefClockHz)
	}
	if params.FIFODepth > 0 {
		cfg.FIFODepth = params.FIFODepth
	}
	cfg.Throttle = params.Throttle
	cfg.MaxCycles = params.MaxCycles

	source, err := NewPinSource(params.Source, cfg.Channels)
	if err != nil {
		return models.SessionData{}, err
	}

	engine, err := gateware.New(cfg, source)
	if err != nil {
		return models.SessionData{}, NewCaptureError(ErrCodeInvalidParams, "invalid pipeline configuration", err)
	}

	session, err := NewSession(SessionConfig{
		ID:             params.ID,
		File:           params.File,
		FlushThreshold: params.FlushThreshold,
		Transport:      NewFIFOTransport(engine.FIFO(), params.ChunkSize),
		Bus:            m.bus,
	})
	if err != nil {
		return models.SessionData{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ms := &managedSession{
		session: session,
		engine:  engine,
		cfg:     cfg,
		source:  params.Source,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[params.ID] = ms
	m.mu.Unlock()

	go m.run(ctx, ms)

	data := m.sessionData(ms)
	if m.bus != nil {
		m.bus.Publish(events.SessionStartedEvent{
			Session:   data,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	m.logger.Info("Session launched", "session_id", params.ID, "file", params.File)
	return data, nil
}

// run drives the engine and consumer goroutines for one session and
// publishes periodic metrics until both finish.
func (m *Manager) run(ctx context.Context, ms *managedSession) {
	defer close(ms.done)
	defer ms.cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ms.engine.Run(gctx)
	})

	g.Go(func() error {
		_, err := ms.session.Run(gctx)
		// Consumer is done, stop the engine too
		ms.cancel()
		return err
	})

	g.Go(func() error {
		m.updateMetrics(gctx, ms)
		return nil
	})

	if err := g.Wait(); err != nil {
		m.logger.Warn("Session ended with error", "session_id", ms.session.ID(), "error", err)
	}
	metrics.DeleteSessionMetrics(ms.session.ID())
}

// updateMetrics refreshes the pipeline gauges once per second for the
// life of the session. The SSE exporter picks them up from the metrics
// cache.
func (m *Manager) updateMetrics(ctx context.Context, ms *managedSession) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id := ms.session.ID()
			metrics.SetFIFODepth(id, ms.engine.FIFO().Len())
			metrics.SetEngineCycles(id, ms.engine.Cycles())
		}
	}
}

// Stop cancels a session and waits for it to wind down. The session
// stays listed with its final state.
func (m *Manager) Stop(id string) error {
	m.mu.RLock()
	ms, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return NewCaptureError(ErrCodeSessionNotFound, fmt.Sprintf("session %s not found", id), nil)
	}

	ms.cancel()
	<-ms.done
	return nil
}

// StopAll cancels every session and waits for them to finish.
func (m *Manager) StopAll() {
	m.mu.RLock()
	sessions := make([]*managedSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		sessions = append(sessions, ms)
	}
	m.mu.RUnlock()

	for _, ms := range sessions {
		ms.cancel()
	}
	for _, ms := range sessions {
		<-ms.done
	}
}

// Get returns a snapshot of the session with the given ID.
func (m *Manager) Get(id string) (models.SessionData, error) {
	m.mu.RLock()
	ms, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return models.SessionData{}, NewCaptureError(ErrCodeSessionNotFound, fmt.Sprintf("session %s not found", id), nil)
	}
	return m.sessionData(ms), nil
}

// List returns snapshots of all sessions, sorted by ID.
func (m *Manager) List() []models.SessionData {
	m.mu.RLock()
	sessions := make([]*managedSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		sessions = append(sessions, ms)
	}
	m.mu.RUnlock()

	list := make([]models.SessionData, 0, len(sessions))
	for _, ms := range sessions {
		list = append(list, m.sessionData(ms))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SessionID < list[j].SessionID })
	return list
}

func (m *Manager) sessionData(ms *managedSession) models.SessionData {
	d := ms.session.Data()
	d.Channels = ms.cfg.Channels
	d.SampleRateHz = int(ms.cfg.SampleRateHz)
	d.RefClockHz = int(ms.cfg.RefClockHz)
	d.FIFODepth = ms.cfg.FIFODepth
	d.Source = ms.source
	if d.Source == "" {
		d.Source = "noise"
	}
	return d
}
