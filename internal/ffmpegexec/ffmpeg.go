package ffmpegexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/keanucz/audioconv/internal/converr"
	"github.com/keanucz/audioconv/internal/formats"
)

// Logger interface for logging operations.
// Compatible with github.com/charmbracelet/log.Logger.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// ProgressFunc receives the seconds of media transcoded so far and the total
// duration of the input (0 when unknown).
type ProgressFunc func(elapsed, total float64)

// ToolPaths locates the ffmpeg and ffprobe executables.
type ToolPaths struct {
	FFmpeg  string
	FFprobe string
}

// Executable returns the platform file name for a tool ("ffmpeg.exe" on Windows).
func Executable(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// PathsIn returns the expected tool locations inside dir.
func PathsIn(dir string) ToolPaths {
	return ToolPaths{
		FFmpeg:  filepath.Join(dir, Executable("ffmpeg")),
		FFprobe: filepath.Join(dir, Executable("ffprobe")),
	}
}

// Present reports whether both executables exist as regular files.
func (p ToolPaths) Present() bool {
	return isFile(p.FFmpeg) && isFile(p.FFprobe)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Runner wraps execution of the ffmpeg and ffprobe binaries.
type Runner struct {
	ffmpeg  string
	ffprobe string
	catalog *formats.Catalog
	bitrate string
	log     Logger
}

// RunnerOption is a functional option for configuring Runner
type RunnerOption func(*Runner)

// WithCatalog sets the catalog used to pick an encoder per output extension.
func WithCatalog(c *formats.Catalog) RunnerOption {
	return func(r *Runner) {
		r.catalog = c
	}
}

// WithBitrate sets the audio bitrate (e.g. "192k") for lossy formats.
func WithBitrate(bitrate string) RunnerOption {
	return func(r *Runner) {
		r.bitrate = bitrate
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l Logger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// New creates a Runner for the given tools. Both executables must exist.
func New(paths ToolPaths, opts ...RunnerOption) (*Runner, error) {
	for _, p := range []string{paths.FFmpeg, paths.FFprobe} {
		if !isFile(p) {
			return nil, fmt.Errorf("%w: %s", converr.ErrToolMissing, p)
		}
	}
	r := &Runner{
		ffmpeg:  paths.FFmpeg,
		ffprobe: paths.FFprobe,
		catalog: formats.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Version runs "ffmpeg -version" and returns its first line. It confirms a
// freshly installed executable actually starts on this machine.
func (r *Runner) Version(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.ffmpeg, "-version")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", commandError("ffmpeg", err, stderr.String())
	}
	line, _, _ := strings.Cut(stdout.String(), "\n")
	return strings.TrimSpace(line), nil
}

// Probe returns the duration of input in seconds. A container that reports
// no duration yields 0 without error.
func (r *Runner) Probe(ctx context.Context, input string) (float64, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input,
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, commandError("ffprobe", err, stderr.String())
	}
	out := strings.TrimSpace(stdout.String())
	if out == "" || out == "N/A" {
		return 0, nil
	}
	d, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: parse duration %q: %w", out, err)
	}
	return d, nil
}

// Transcode extracts the audio stream of input into output, picking the
// encoder from output's extension. onProgress may be nil.
func (r *Runner) Transcode(ctx context.Context, input, output string, onProgress ProgressFunc) error {
	total, err := r.Probe(ctx, input)
	if err != nil {
		return err
	}

	args := r.transcodeArgs(input, output)
	if r.log != nil {
		r.log.Debug("running ffmpeg", "args", strings.Join(args, " "))
	}

	cmd := exec.CommandContext(ctx, r.ffmpeg, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	scanProgress(stdout, total, onProgress)
	if err := cmd.Wait(); err != nil {
		return commandError("ffmpeg", err, stderr.String())
	}
	return nil
}

func (r *Runner) transcodeArgs(input, output string) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y", // Overwrite output file if it exists
		"-i", input,
		"-vn", // No video
	}
	if f, ok := r.catalog.Lookup(filepath.Ext(output)); ok {
		if f.Codec != "" {
			args = append(args, "-c:a", f.Codec)
		}
		if !f.Lossless && r.bitrate != "" {
			args = append(args, "-b:a", r.bitrate)
		}
	}
	return append(args, "-progress", "pipe:1", "-nostats", output)
}

// scanProgress reads ffmpeg's -progress key=value stream and reports the
// latest out_time at the end of every block. The reader is drained fully so
// ffmpeg never blocks on a full pipe.
func scanProgress(r io.Reader, total float64, onProgress ProgressFunc) {
	var elapsed float64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds.
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				elapsed = float64(us) / 1e6
			}
		case "progress":
			if onProgress != nil {
				onProgress(elapsed, total)
			}
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

func commandError(tool string, err error, stderr string) error {
	var exitErr *exec.ExitError
	code := -1
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	if tail := lastLines(stderr, 5); tail != "" {
		return fmt.Errorf("%s exited with code %d: %w\nstderr: %s", tool, code, err, tail)
	}
	return fmt.Errorf("%s exited with code %d: %w", tool, code, err)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
