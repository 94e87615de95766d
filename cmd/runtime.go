package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/keanucz/audioconv/internal/converter"
	"github.com/keanucz/audioconv/internal/ffmpegexec"
	"github.com/keanucz/audioconv/internal/formats"
)

// formatBytes converts bytes to human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// newProvisioner builds the ffmpeg provisioner from the loaded config.
func newProvisioner() *ffmpegexec.Provisioner {
	client := &http.Client{Timeout: cfg.DownloadTimeout}

	var progressMu sync.Mutex
	var lastPercent int
	onProgress := func(downloaded, total int64) {
		progressMu.Lock()
		defer progressMu.Unlock()

		if total <= 0 {
			return
		}

		percent := int(downloaded * 100 / total)
		if percent != lastPercent && percent%10 == 0 {
			lastPercent = percent
			Logger.Info("downloading ffmpeg",
				"progress", fmt.Sprintf("%d%%", percent),
				"downloaded", formatBytes(downloaded),
				"total", formatBytes(total))
		}
	}

	return ffmpegexec.NewProvisioner(client, ffmpegexec.ProvisionOptions{
		Dir:        cfg.ToolsDir,
		Sources:    cfg.Sources,
		Log:        Logger,
		OnProgress: onProgress,
	})
}

// newEngine wires the provisioner, the ffmpeg runner and the status
// reporter into an Engine writing status lines to out.
func newEngine(out io.Writer, catalog *formats.Catalog) *converter.Engine {
	factory := func(paths ffmpegexec.ToolPaths) (converter.Transcoder, error) {
		return ffmpegexec.New(paths,
			ffmpegexec.WithCatalog(catalog),
			ffmpegexec.WithBitrate(cfg.Bitrate),
			ffmpegexec.WithLogger(Logger))
	}
	return converter.New(newProvisioner(), factory, converter.Options{
		OutputDir:  cfg.OutputDir,
		Log:        Logger,
		OnStatus:   newStatusReporter(out).report,
		OnProgress: progressLogger(),
	})
}

// progressLogger logs conversion progress every 10%.
func progressLogger() converter.ProgressCallback {
	var mu sync.Mutex
	last := map[string]int{}
	return func(file string, p converter.Progress) {
		mu.Lock()
		defer mu.Unlock()

		percent := p.Percent()
		prev, seen := last[file]
		if seen && (percent == prev || percent%10 != 0) {
			return
		}
		last[file] = percent
		Logger.Debug("converting",
			"file", filepath.Base(file),
			"progress", fmt.Sprintf("%d%%", percent))
	}
}

// reportedErr is the last failure already shown as a status line.
var reportedErr error

// alreadyReported reports whether err was printed by a statusReporter.
func alreadyReported(err error) bool {
	return reportedErr != nil && errors.Is(err, reportedErr)
}

// statusReporter renders the status stream for a terminal.
type statusReporter struct {
	out       io.Writer
	converted int
}

func newStatusReporter(out io.Writer) *statusReporter {
	return &statusReporter{out: out}
}

func (r *statusReporter) report(ev converter.Event) {
	switch ev.Kind {
	case converter.EventFailed:
		reportedErr = ev.Err
		fmt.Fprintf(r.out, "\033[31m✗\033[0m %s\n", ev)
	case converter.EventFileDone:
		r.converted++
		fmt.Fprintf(r.out, "\033[32m✓\033[0m %s\n", ev)
	case converter.EventBatchDone:
		fmt.Fprintf(r.out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(r.out, "%s: \033[32m%d converted\033[0m\n", ev, r.converted)
	default:
		fmt.Fprintln(r.out, ev)
	}
}
