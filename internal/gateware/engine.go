package gateware

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/pdmnode/internal/logging"
)

// MaxChannels is the number of data input lines the capture logic supports.
const MaxChannels = 3

// Config describes one capture engine instance.
type Config struct {
	RefClockHz   float64 // reference clock the model is ticked at
	SampleRateHz float64 // target bit-clock rate
	Channels     int     // data input lines, 1..MaxChannels
	FIFODepth    int     // output queue depth in bytes
	Throttle     bool    // pace ticking to RefClockHz wall-clock time
	MaxCycles    uint64  // stop after this many reference cycles, 0 = run until cancelled
}

// DefaultConfig returns the capture defaults: 48 MHz reference, 2.2 MHz
// bit-clock, three channels, 8 KiB queue, real-time pacing.
func DefaultConfig() Config {
	return Config{
		RefClockHz:   48e6,
		SampleRateHz: 2.2e6,
		Channels:     MaxChannels,
		FIFODepth:    8192,
		Throttle:     true,
	}
}

// Engine composes the capture components and advances them in lock step.
// All components move exactly one state transition per Tick, in dependency
// order, so the edge-triggered guarantees of the design hold: the rising
// capture always precedes the falling capture, which always precedes the
// next report.
type Engine struct {
	cfg      Config
	clock    *ClockGen
	sync     *Synchronizer
	sampler  *Sampler
	streamer *Streamer
	fifo     *FIFO
	pins     PinSource
	logger   *slog.Logger

	cycles atomic.Uint64
}

// New creates an engine for the given configuration and pin source.
func New(cfg Config, pins PinSource) (*Engine, error) {
	if cfg.Channels < 1 || cfg.Channels > MaxChannels {
		return nil, fmt.Errorf("channels must be 1..%d, got %d", MaxChannels, cfg.Channels)
	}
	if cfg.RefClockHz <= 0 || cfg.SampleRateHz <= 0 {
		return nil, fmt.Errorf("clock rates must be positive, got ref=%v sample=%v", cfg.RefClockHz, cfg.SampleRateHz)
	}
	if cfg.FIFODepth < 1 {
		return nil, fmt.Errorf("fifo depth must be positive, got %d", cfg.FIFODepth)
	}
	if pins == nil {
		return nil, fmt.Errorf("pin source is required")
	}

	div := DeriveDivisor(cfg.RefClockHz, cfg.SampleRateHz)
	fifo := NewFIFO(cfg.FIFODepth)

	return &Engine{
		cfg:      cfg,
		clock:    NewClockGen(div),
		sync:     &Synchronizer{},
		sampler:  NewSampler(cfg.Channels),
		streamer: NewStreamer(2*cfg.Channels, fifo),
		fifo:     fifo,
		pins:     pins,
		logger:   logging.GetLogger("gateware"),
	}, nil
}

// FIFO returns the engine's output queue for the transport side to drain.
func (e *Engine) FIFO() *FIFO {
	return e.fifo
}

// Cycles returns the number of reference cycles executed so far.
func (e *Engine) Cycles() uint64 {
	return e.cycles.Load()
}

// Overruns returns the number of samples dropped by the streamer so far.
func (e *Engine) Overruns() uint64 {
	return e.streamer.Overruns()
}

// Tick advances the whole model by one reference cycle.
func (e *Engine) Tick() {
	e.clock.Tick()
	pins := e.sync.Tick(e.pins.Sample())
	e.sampler.Tick(e.clock.StbR, e.clock.StbF, pins)
	e.streamer.Tick(e.clock.StbF, e.sampler.Word)
	e.cycles.Add(1)
}

// Run ticks the model until the context is cancelled or the configured
// cycle limit is reached, then closes the FIFO so the transport drains the
// remaining bytes and sees end of stream. With throttling enabled, ticks
// are executed in millisecond batches sized to the reference clock rate;
// without it the model runs as fast as the host allows.
func (e *Engine) Run(ctx context.Context) error {
	defer e.fifo.Close()

	e.logger.Info("engine starting",
		"divisor", e.clock.Divisor(),
		"bit_clock_hz", e.cfg.RefClockHz/float64(e.clock.Divisor()),
		"channels", e.cfg.Channels,
		"fifo_depth", e.cfg.FIFODepth,
		"throttle", e.cfg.Throttle)

	batch := uint64(e.cfg.RefClockHz / 1000)
	if batch < 1 {
		batch = 1
	}

	var ticker *time.Ticker
	if e.cfg.Throttle {
		ticker = time.NewTicker(time.Millisecond)
		defer ticker.Stop()
	}

	for {
		n := batch
		if e.cfg.MaxCycles > 0 {
			left := e.cfg.MaxCycles - e.cycles.Load()
			if left == 0 {
				e.logger.Info("engine finished", "cycles", e.cycles.Load(), "overruns", e.Overruns())
				return nil
			}
			if left < n {
				n = left
			}
		}

		for i := uint64(0); i < n; i++ {
			e.Tick()
		}

		if e.cfg.Throttle {
			select {
			case <-ctx.Done():
				e.logger.Info("engine stopped", "cycles", e.cycles.Load(), "overruns", e.Overruns())
				return nil
			case <-ticker.C:
			}
		} else {
			select {
			case <-ctx.Done():
				e.logger.Info("engine stopped", "cycles", e.cycles.Load(), "overruns", e.Overruns())
				return nil
			default:
			}
		}
	}
}
