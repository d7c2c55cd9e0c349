package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/pdmnode/internal/capture"
	"github.com/smazurov/pdmnode/internal/gateware"
	"github.com/smazurov/pdmnode/internal/logging"
	"github.com/smazurov/pdmnode/internal/nats"
)

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd() *cobra.Command {
	var (
		sessionID      string
		channels       int
		sampleRate     int
		refClock       int
		fifoDepth      int
		chunkSize      int
		flushThreshold int
		duration       time.Duration
		cycles         uint64
		sourceName     string
		throttle       bool
		natsURL        string
		logJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "capture [file]",
		Short: "Run a capture session writing the sample stream to a file",
		Long: `Drives the PDM capture pipeline and writes the interleaved sample stream ` +
			`to the given file. The run ends when the cycle budget or duration is reached, ` +
			`on SIGINT/SIGTERM, or when a FIFO overrun truncates the stream.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			file := args[0]

			// Initialize minimal logging
			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			if sessionID == "" {
				sessionID = "capture"
			}
			logger := logging.GetLogger("capture").With("session_id", sessionID)

			cfg := gateware.DefaultConfig()
			if channels > 0 {
				cfg.Channels = channels
			}
			if sampleRate > 0 {
				cfg.SampleRateHz = float64(sampleRate)
			}
			if refClock > 0 {
				cfg.RefClockHz = float64(refClock)
			}
			if fifoDepth > 0 {
				cfg.FIFODepth = fifoDepth
			}
			cfg.Throttle = throttle
			cfg.MaxCycles = cycles
			if duration > 0 {
				cfg.MaxCycles = uint64(duration.Seconds() * cfg.RefClockHz)
			}

			source, err := capture.NewPinSource(sourceName, cfg.Channels)
			if err != nil {
				logger.Error("Invalid stimulus source", "error", err)
				os.Exit(1)
			}

			engine, err := gateware.New(cfg, source)
			if err != nil {
				logger.Error("Invalid pipeline configuration", "error", err)
				os.Exit(1)
			}

			session, err := capture.NewSession(capture.SessionConfig{
				ID:             sessionID,
				File:           file,
				FlushThreshold: flushThreshold,
				Transport:      capture.NewFIFOTransport(engine.FIFO(), chunkSize),
			})
			if err != nil {
				logger.Error("Invalid session configuration", "error", err)
				os.Exit(1)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// Connect to NATS if a server URL is given; the worker runs
			// fine offline when none is reachable.
			var client *nats.SessionClient
			if natsURL != "" {
				client = nats.NewSessionClient(natsURL, sessionID, logger)
				_ = client.Connect()
				defer client.Close()

				client.OnStop(func() {
					logger.Info("Stop command received")
					cancel()
				})
				client.PublishState(nats.StateMessage{
					SessionID: sessionID,
					Timestamp: time.Now().Format(time.RFC3339),
					State:     "running",
				})
			}

			logger.Info("Starting capture",
				"file", file,
				"channels", cfg.Channels,
				"sample_rate_hz", cfg.SampleRateHz,
				"ref_clock_hz", cfg.RefClockHz)

			g, runCtx := errgroup.WithContext(ctx)
			sessionCtx, sessionCancel := context.WithCancel(runCtx)
			defer sessionCancel()

			g.Go(func() error {
				return engine.Run(runCtx)
			})
			g.Go(func() error {
				_, err := session.Run(sessionCtx)
				// The engine has nothing left to feed once the consumer
				// is done; stop it so the group can return.
				cancel()
				return err
			})
			if client != nil {
				g.Go(func() error {
					publishMetrics(runCtx, client, sessionID, session, engine)
					return nil
				})
			}

			_ = g.Wait()

			result := session.Result()
			if client != nil {
				client.PublishState(nats.StateMessage{
					SessionID: sessionID,
					Timestamp: time.Now().Format(time.RFC3339),
					State:     session.State(),
					Result:    result.String(),
				})
			}

			logger.Info("Capture finished",
				"result", result.String(),
				"bytes_written", session.BytesWritten(),
				"overruns", session.Overruns())
			os.Exit(result.ExitCode())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session identifier (defaults to \"capture\")")
	cmd.Flags().IntVar(&channels, "channels", 0, "Number of microphone channels (1..3)")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 0, "Target PDM sample rate in Hz")
	cmd.Flags().IntVar(&refClock, "ref-clock", 0, "Reference clock frequency in Hz")
	cmd.Flags().IntVar(&fifoDepth, "fifo-depth", 0, "Stream FIFO depth in bytes")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Transport read granularity in bytes")
	cmd.Flags().IntVar(&flushThreshold, "flush-threshold", 0, "File flush threshold in bytes")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Capture duration (overrides --cycles)")
	cmd.Flags().Uint64Var(&cycles, "cycles", 0, "Stop after this many reference cycles (0 = unlimited)")
	cmd.Flags().StringVar(&sourceName, "source", "noise", "Stimulus source (noise, square, constant)")
	cmd.Flags().BoolVar(&throttle, "throttle", true, "Pace the pipeline to the reference clock")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL for metrics and control (optional)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// publishMetrics reports session progress over NATS once a second until
// the context is cancelled.
func publishMetrics(ctx context.Context, client *nats.SessionClient, sessionID string,
	session *capture.Session, engine *gateware.Engine) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client.PublishMetrics(nats.MetricsMessage{
				SessionID:    sessionID,
				Timestamp:    time.Now().Format(time.RFC3339),
				BytesWritten: session.BytesWritten(),
				FIFODepth:    engine.FIFO().Len(),
				Cycles:       engine.Cycles(),
				Overruns:     session.Overruns(),
			})
		}
	}
}
