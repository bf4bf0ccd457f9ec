package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "visage",
	Short: "Audio-to-face streaming inference tools",
	Long: `visage - Streaming facial animation inference over WebSocket.

The server turns 16 kHz mono PCM16 audio into per-frame blendshape
weights and streams them back as binary animation frames. The client
pushes a WAV file (or a generated tone) to a running server and
collects the frames.

Examples:
  # Run the server with the simulation engine (no GPU required)
  visage server --sim --port 8765

  # Run against a CUDA build with a specific model
  visage server --model _data/mark/model.json --cuda_device 0

  # Stream a WAV file to a local server
  visage client --wav speech.wav

  # Show version information
  visage version`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "info", "log level (debug, info, warn, error)")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// setupLogging installs the default slog handler at the configured
// level.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
