// Package ffmpegexec runs ffmpeg and ffprobe and makes sure both are present
// in the tools directory, downloading an official build the first time.
package ffmpegexec

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/keanucz/audioconv/internal/converr"
)

// Platform used to pick default sources; tests override it.
var goos, goarch = runtime.GOOS, runtime.GOARCH

const btbnBase = "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/"

// defaultSources maps GOOS/GOARCH to the archives holding ffmpeg and ffprobe.
var defaultSources = map[string][]string{
	"linux/amd64":   {btbnBase + "ffmpeg-master-latest-linux64-gpl.tar.xz"},
	"linux/arm64":   {btbnBase + "ffmpeg-master-latest-linuxarm64-gpl.tar.xz"},
	"windows/amd64": {btbnBase + "ffmpeg-master-latest-win64-gpl.zip"},
	"windows/arm64": {btbnBase + "ffmpeg-master-latest-winarm64-gpl.zip"},
	"darwin/amd64": {
		"https://evermeet.cx/ffmpeg/getrelease/ffmpeg/zip",
		"https://evermeet.cx/ffmpeg/getrelease/ffprobe/zip",
	},
	"darwin/arm64": {
		"https://evermeet.cx/ffmpeg/getrelease/ffmpeg/zip",
		"https://evermeet.cx/ffmpeg/getrelease/ffprobe/zip",
	},
}

// DefaultSources returns the download URLs for a platform, or nil when no
// prebuilt distribution is known.
func DefaultSources(system, arch string) []string {
	return defaultSources[system+"/"+arch]
}

// ProvisionOptions control where tools live and where they come from.
type ProvisionOptions struct {
	Dir        string           // Directory holding the executables (default ".")
	Sources    []string         // Archive URLs; empty means DefaultSources for the platform
	Log        Logger           // Structured logger (compatible with charmbracelet/log)
	OnProgress DownloadProgress // Called while archives download
}

// Provisioner ensures ffmpeg and ffprobe exist locally.
type Provisioner struct {
	client     HTTPClient
	dir        string
	sources    []string
	log        Logger
	onProgress DownloadProgress

	mu      sync.Mutex
	fetches int
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(client HTTPClient, opts ProvisionOptions) *Provisioner {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	return &Provisioner{
		client:     client,
		dir:        dir,
		sources:    opts.Sources,
		log:        opts.Log,
		onProgress: opts.OnProgress,
	}
}

// Paths returns where the tools are expected.
func (p *Provisioner) Paths() ToolPaths {
	return PathsIn(p.dir)
}

// Installed reports whether both tools are already present.
func (p *Provisioner) Installed() bool {
	return p.Paths().Present()
}

// Fetches returns how many successful downloads this Provisioner performed.
func (p *Provisioner) Fetches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

// EnsureAvailable returns the tool paths, downloading and installing them
// first when either is missing. Both tools are installed together or not at
// all; failures are reported as *converr.ProvisionError.
func (p *Provisioner) EnsureAvailable(ctx context.Context) (ToolPaths, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	paths := p.Paths()
	if paths.Present() {
		log(p.log, "ffmpeg already present", "dir", p.dir)
		return paths, nil
	}

	sources := p.sources
	if len(sources) == 0 {
		sources = DefaultSources(goos, goarch)
	}
	if len(sources) == 0 {
		return ToolPaths{}, &converr.ProvisionError{
			Op:  "locate",
			Err: fmt.Errorf("%w %s/%s", converr.ErrNoSources, goos, goarch),
		}
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return ToolPaths{}, &converr.ProvisionError{Op: "install", Err: err}
	}

	st := newStager(p.dir, Executable("ffmpeg"), Executable("ffprobe"))
	for _, src := range sources {
		if len(st.missing()) == 0 {
			break
		}
		logInfo(p.log, "downloading ffmpeg distribution", "url", src)
		archive, kind, err := p.fetchArchive(ctx, src, p.dir)
		if err != nil {
			st.discard()
			return ToolPaths{}, &converr.ProvisionError{Op: "download", Err: err}
		}
		log(p.log, "extracting archive", "kind", kind)
		err = st.extract(archive, kind)
		os.Remove(archive)
		if err != nil {
			st.discard()
			return ToolPaths{}, &converr.ProvisionError{Op: "extract", Err: err}
		}
	}

	if missing := st.missing(); len(missing) > 0 {
		st.discard()
		return ToolPaths{}, &converr.ProvisionError{
			Op:  "extract",
			Err: fmt.Errorf("%w: %s not found in downloaded archives", converr.ErrToolMissing, strings.Join(missing, ", ")),
		}
	}

	if err := install(st, paths); err != nil {
		return ToolPaths{}, &converr.ProvisionError{Op: "install", Err: err}
	}
	p.fetches++
	logInfo(p.log, "ffmpeg installed", "ffmpeg", paths.FFmpeg, "ffprobe", paths.FFprobe)
	return paths, nil
}

// install moves staged executables into place, rolling back on failure so
// the tools dir never holds only one of them.
func install(st *stager, paths ToolPaths) error {
	targets := []struct{ name, dest string }{
		{Executable("ffmpeg"), paths.FFmpeg},
		{Executable("ffprobe"), paths.FFprobe},
	}
	var placed []string
	for _, t := range targets {
		tmp := st.staged[t.name]
		err := os.Chmod(tmp, 0o755)
		if err == nil {
			err = os.Rename(tmp, t.dest)
		}
		if err != nil {
			for _, p := range placed {
				os.Remove(p)
			}
			st.discard()
			return err
		}
		delete(st.staged, t.name)
		placed = append(placed, t.dest)
	}
	return nil
}

// log is a helper that safely logs debug messages when logger is available.
func log(logger Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Debug(msg, keyvals...)
	}
}

// logInfo is a helper that safely logs info messages when logger is available.
func logInfo(logger Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Info(msg, keyvals...)
	}
}
