package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/julienstroheker/sockwrench/internal/config"
	"github.com/julienstroheker/sockwrench/internal/logging"
)

var (
	cfg         *config.Config
	logger      *logging.Logger
	verboseFlag bool
	jsonFlag    bool

	pollTimeoutFlag time.Duration
	bufferSizeFlag  int
	metricsAddrFlag string
)

var rootCmd = &cobra.Command{
	Use:   "sockwrench [flags] INPUT OUTPUT",
	Short: "Relay bytes between two sockets or stdio",
	Long: `sockwrench - relay bytes in both directions between two channels

Channels:
  stdio                  standard input and output
  udpin:<port>           UDP socket bound on 0.0.0.0:<port>
  udpout:<ip>:<port>     UDP socket connected to <ip>:<port>
  tcpin:[<addr>:]<port>  TCP listener; writes go to every connected peer
  tcpout:<ip>:<port>     TCP connection to <ip>:<port>`,
	Example: `  sockwrench udpin:9001 tcpout:127.0.0.1:9000
  sockwrench --json stdio tcpin:8000`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		cfg = config.Load()

		// Flags override the environment
		flags := cmd.Flags()
		if flags.Changed("poll-timeout") {
			cfg.PollTimeout = pollTimeoutFlag
		}
		if flags.Changed("buffer-size") {
			cfg.BufferSize = bufferSizeFlag
		}
		if flags.Changed("metrics-addr") {
			cfg.MetricsAddr = metricsAddrFlag
		}
		if jsonFlag {
			cfg.LogFormat = config.FormatJSON
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		// Determine log level
		level := logging.ParseLevel(cfg.LogLevel)
		if verboseFlag {
			level = logging.DebugLevel
		}

		// Determine format
		format := logging.FormatConsole
		if cfg.LogFormat == config.FormatJSON {
			format = logging.FormatJSON
		}

		// Initialize logger on stderr; stdout may be a relayed channel
		logger = logging.NewWithOutput(level, cmd.ErrOrStderr())
		logger.SetFormat(format)
		logger.Debug("Logger initialized",
			logging.String("level", level.String()),
			logging.String("format", cfg.LogFormat.String()),
		)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd, args[0], args[1])
	},
}

func init() {
	// Disable default completion and help commands
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Add persistent flags
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose logging (debug level)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output logs in JSON format")

	rootCmd.Flags().DurationVar(&pollTimeoutFlag, "poll-timeout", config.DefaultPollTimeout,
		"Upper bound of each readiness wait")
	rootCmd.Flags().IntVar(&bufferSizeFlag, "buffer-size", config.DefaultBufferSize,
		"Bytes read per direction per iteration")
	rootCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "",
		"Serve Prometheus metrics and /healthz on this address (disabled when empty)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetLogger returns the global logger instance
func GetLogger() *logging.Logger {
	return logger
}

// GetConfig returns the global config instance
func GetConfig() *config.Config {
	return cfg
}
