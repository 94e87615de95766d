package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/keanucz/audioconv/internal/converr"
	"github.com/keanucz/audioconv/internal/formats"
	"github.com/keanucz/audioconv/internal/outdir"
	"github.com/keanucz/audioconv/internal/plan"
	"github.com/keanucz/audioconv/internal/watcher"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format extension (default from config, .mp3)")
}

var watchCmd = &cobra.Command{
	Use:   "watch <folder>",
	Short: "Convert media files as they are added to a folder",
	Long: `Watch a folder and convert every new media file, one at a time.

The output directory is prepared once when watching starts. A file that
fails to convert is reported and the watcher keeps running. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := args[0]
		format := formatFlag
		if format == "" {
			format = cfg.DefaultFormat
		}
		catalog := formats.Default()
		if !catalog.IsSupported(format) {
			return converr.Argumentf("format not supported: %s", format)
		}

		if err := outdir.Prepare(cfg.OutputDir); err != nil {
			return err
		}
		engine := newEngine(cmd.OutOrStdout(), catalog)

		handle := func(ctx context.Context, path string) error {
			p, err := plan.Build([]string{plan.ModeSingleFileToken, path, plan.FormatFlag, format}, format, catalog)
			if err != nil {
				return err
			}
			return engine.Run(ctx, p)
		}

		w, err := watcher.New(folder, handle, watcher.Options{
			Extensions: cfg.Watch.Extensions,
			Settle:     cfg.Watch.Settle,
			Log:        Logger,
		})
		if err != nil {
			return err
		}
		defer w.Close()

		err = w.Run(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
