package cmd

import (
	"github.com/spf13/cobra"

	"github.com/keanucz/audioconv/internal/converter"
	"github.com/keanucz/audioconv/internal/formats"
	"github.com/keanucz/audioconv/internal/plan"
)

var formatFlag string

func init() {
	rootCmd.AddCommand(convertCmd, fileCmd, folderCmd)
	for _, c := range []*cobra.Command{fileCmd, folderCmd} {
		c.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format extension, e.g. .wav (default from config, .mp3)")
	}
}

var convertCmd = &cobra.Command{
	Use:   "convert -- <mode> <path> [-format <ext>]",
	Short: "Convert using raw mode/path/format arguments",
	Long: `Convert using the raw argument form [mode, path, -format, ext].

mode is -single_file or -folder; anything else converts a single file.
Put the arguments after "--" so they are not read as flags.

Examples:
  audioconv convert -- -single_file clip.mp4
  audioconv convert -- -folder ./videos -format .wav`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args)
	},
}

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Convert a single media file",
	Example: `  audioconv file clip.mp4
  audioconv file clip.mp4 --format .flac`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, tokensFor(plan.ModeSingleFileToken, args[0]))
	},
}

var folderCmd = &cobra.Command{
	Use:   "folder <path>",
	Short: "Convert every file directly inside a folder",
	Example: `  audioconv folder ./videos
  audioconv folder ./videos --format .ogg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, tokensFor(plan.ModeFolderToken, args[0]))
	},
}

func tokensFor(mode, path string) []string {
	tokens := []string{mode, path}
	if formatFlag != "" {
		tokens = append(tokens, plan.FormatFlag, formatFlag)
	}
	return tokens
}

func runConvert(cmd *cobra.Command, tokens []string) error {
	catalog := formats.Default()
	engine := newEngine(cmd.OutOrStdout(), catalog)
	conv := converter.NewConverter(engine, catalog, cfg.DefaultFormat)

	Logger.Debug("starting conversion", "args", tokens)
	return conv.Convert(cmd.Context(), tokens)
}
