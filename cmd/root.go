package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/keanucz/audioconv/internal/config"
	"github.com/keanucz/audioconv/internal/version"
)

var (
	verboseFlag bool
	configFlag  string
)

// Logger is the global logger instance.
var Logger *log.Logger

// cfg is loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:     "audioconv",
	Short:   "Convert video and audio files to audio formats with ffmpeg",
	Long:    fmt.Sprintf("audioconv %s\n\nConvert video and audio files to audio formats with ffmpeg.\nffmpeg and ffprobe are downloaded into the tools directory on first use.", version.Short()),
	Version: version.Version,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Initialize logger based on verbose flag
		Logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: verboseFlag,
			Level:           log.InfoLevel,
		})
		if verboseFlag {
			Logger.SetLevel(log.DebugLevel)
		}

		loaded, err := config.Load(configFlag)
		if err != nil {
			return err
		}
		cfg = loaded
		Logger.Debug("configuration loaded",
			"output_dir", cfg.OutputDir,
			"default_format", cfg.DefaultFormat,
			"tools_dir", cfg.ToolsDir)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !alreadyReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	// Set custom version template to show full version info
	rootCmd.SetVersionTemplate(fmt.Sprintf("audioconv %s\n", version.Short()))

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to a YAML config file (default audioconv.yaml if present)")
}
