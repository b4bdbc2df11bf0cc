package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpillora/sizestr"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/julienstroheker/sockwrench/internal/channel"
	"github.com/julienstroheker/sockwrench/internal/logging"
	"github.com/julienstroheker/sockwrench/internal/metrics"
	"github.com/julienstroheker/sockwrench/internal/relay"
)

const metricsShutdownTimeout = 5 * time.Second

func runRelay(cmd *cobra.Command, inputSpec, outputSpec string) error {
	// Channel to listen for an interrupt or terminate signal from the OS.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		server, err := metrics.NewServer(&metrics.Options{Addr: cfg.MetricsAddr, Metrics: m, Logger: logger})
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		defer shutdownMetrics(server)
		logger.Info("Metrics server listening", logging.Stringer("addr", server.Addr()))

		go func() {
			if err := server.Serve(); err != nil {
				logger.Error("Metrics server failed", logging.Error(err))
			}
		}()
	}

	opts := []channel.Option{
		channel.WithLogger(logger),
		channel.WithPeerHook(peerMetrics(m)),
	}

	input, err := channel.OpenString(inputSpec, opts...)
	if err != nil {
		return err
	}
	output, err := channel.OpenString(outputSpec, opts...)
	if err != nil {
		return multierr.Append(err, input.Close())
	}
	defer func() {
		if closeErr := multierr.Combine(input.Close(), output.Close()); closeErr != nil {
			logger.Warn("Closing channels failed", logging.Error(closeErr))
		}
	}()

	stats, err := relay.Run(ctx, input, output, relay.Options{
		PollTimeout: cfg.PollTimeout,
		BufferSize:  cfg.BufferSize,
		Logger:      logger,
		Metrics:     m,
	})

	logger.Info("Relay stopped",
		logging.String("input_to_output", sizestr.ToString(int64(stats.InputToOutput))),
		logging.String("output_to_input", sizestr.ToString(int64(stats.OutputToInput))),
		logging.Uint64("iterations", stats.Iterations),
	)

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		logger.Info("Received shutdown signal")
		return nil
	case errors.Is(err, channel.ErrEndOfStream):
		logger.Info("Channel reached end of stream", logging.Error(err))
		return nil
	default:
		return err
	}
}

// peerMetrics feeds tcpin peer changes into m
func peerMetrics(m *metrics.Metrics) channel.PeerHook {
	return func(event channel.PeerEvent) {
		switch event.Type {
		case channel.PeerAccepted:
			m.PeerAccepted()
		case channel.PeerDropped:
			m.PeerDropped()
		}
	}
}

func shutdownMetrics(server *metrics.Server) {
	// Give outstanding scrapes a deadline for completion.
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Could not gracefully shut down metrics server", logging.Error(err))
		_ = server.Close()
	}
}
