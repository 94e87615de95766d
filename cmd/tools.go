package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keanucz/audioconv/internal/ffmpegexec"
	"github.com/keanucz/audioconv/internal/formats"
)

func init() {
	rootCmd.AddCommand(toolsCmd, formatsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Download ffmpeg and ffprobe into the tools directory if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		prov := newProvisioner()
		if !prov.Installed() {
			fmt.Fprintln(cmd.OutOrStdout(), "Downloading ffmpeg executables...")
		}
		paths, err := prov.EnsureAvailable(cmd.Context())
		if err != nil {
			return err
		}
		runner, err := ffmpegexec.New(paths, ffmpegexec.WithLogger(Logger))
		if err != nil {
			return err
		}
		ver, err := runner.Version(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ffmpeg:  %s\nffprobe: %s\n%s\n", paths.FFmpeg, paths.FFprobe, ver)
		return nil
	},
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the supported output formats",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(formats.Default().Extensions(), " "))
	},
}
