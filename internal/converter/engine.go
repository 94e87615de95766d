// Package converter runs conversion plans through ffmpeg and reports a
// status stream while doing so.
package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/keanucz/audioconv/internal/converr"
	"github.com/keanucz/audioconv/internal/ffmpegexec"
	"github.com/keanucz/audioconv/internal/outdir"
	"github.com/keanucz/audioconv/internal/plan"
)

// Logger interface for logging operations.
// Compatible with github.com/charmbracelet/log.Logger.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// Transcoder converts one input file to one output file.
type Transcoder interface {
	Transcode(ctx context.Context, input, output string, onProgress ffmpegexec.ProgressFunc) error
}

// Provisioner makes the transcoder executables available.
type Provisioner interface {
	Installed() bool
	EnsureAvailable(ctx context.Context) (ffmpegexec.ToolPaths, error)
}

// TranscoderFactory builds a Transcoder from provisioned tools.
type TranscoderFactory func(paths ffmpegexec.ToolPaths) (Transcoder, error)

// Options control how plans are executed.
type Options struct {
	OutputDir  string           // Prepared output directory (default "out")
	Log        Logger           // Structured logger (compatible with charmbracelet/log)
	OnStatus   StatusFunc       // Receives the status stream
	OnProgress ProgressCallback // Observes per-file progress
}

// State is the lifecycle position of the engine's current run.
type State int

const (
	StateIdle State = iota
	StateProvisioning
	StateSingleFile
	StateFolder
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProvisioning:
		return "provisioning"
	case StateSingleFile:
		return "single-file"
	case StateFolder:
		return "folder"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Engine executes plans one at a time.
type Engine struct {
	prov          Provisioner
	newTranscoder TranscoderFactory
	opts          Options

	run   sync.Mutex // held for the whole of Run
	mu    sync.Mutex
	state State
}

// New creates an Engine.
func New(prov Provisioner, factory TranscoderFactory, opts Options) *Engine {
	if opts.OutputDir == "" {
		opts.OutputDir = outdir.DefaultPath
	}
	return &Engine{prov: prov, newTranscoder: factory, opts: opts}
}

// OutputDir returns the directory converted files are written to.
func (e *Engine) OutputDir() string {
	return e.opts.OutputDir
}

// State returns the state of the current or last run.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run executes p: provisioning, then the single file or every file of the
// folder, strictly one after another. The first failing file aborts the
// remaining batch. The output directory must already be prepared.
func (e *Engine) Run(ctx context.Context, p plan.Plan) error {
	e.run.Lock()
	defer e.run.Unlock()

	e.setState(StateProvisioning)
	tr, err := e.provision(ctx)
	if err != nil {
		return e.fail(err)
	}

	switch p.Mode {
	case plan.Folder:
		e.setState(StateFolder)
		err = e.convertFolder(ctx, tr, p.InputPath, p.OutputFormat)
	default:
		e.setState(StateSingleFile)
		err = e.convertFile(ctx, tr, p.InputPath, p.OutputFormat)
	}
	if err != nil {
		return e.fail(err)
	}

	e.setState(StateCompleted)
	return nil
}

func (e *Engine) provision(ctx context.Context) (Transcoder, error) {
	fetching := !e.prov.Installed()
	if fetching {
		e.emit(Event{Kind: EventProvisionStart})
	}
	paths, err := e.prov.EnsureAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if fetching {
		e.emit(Event{Kind: EventProvisionDone})
	}

	tr, err := e.newTranscoder(paths)
	if err != nil {
		var provErr *converr.ProvisionError
		if errors.As(err, &provErr) {
			return nil, err
		}
		return nil, &converr.ProvisionError{Op: "locate", Err: err}
	}
	return tr, nil
}

func (e *Engine) convertFolder(ctx context.Context, tr Transcoder, folder, format string) error {
	e.emit(Event{Kind: EventFolderScan, Path: folder})

	entries, err := os.ReadDir(folder)
	if err != nil {
		return &converr.IOError{Op: "read input folder", Path: folder, Err: err}
	}

	e.emit(Event{Kind: EventBatchStart})
	for _, entry := range entries {
		file := filepath.Join(folder, entry.Name())
		// Stat follows symlinks, so a link to a media file is converted.
		if info, err := os.Stat(file); err != nil || !info.Mode().IsRegular() {
			log(e.opts.Log, "skipping non-file entry", "name", entry.Name())
			continue
		}
		e.emit(Event{Kind: EventFileQueued, Path: file})
		if err := e.convertFile(ctx, tr, file, format); err != nil {
			return err
		}
	}
	e.emit(Event{Kind: EventBatchDone})
	return nil
}

func (e *Engine) convertFile(ctx context.Context, tr Transcoder, input, format string) error {
	info, err := os.Stat(input)
	if err != nil {
		return &converr.IOError{Op: "read input", Path: input, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &converr.IOError{Op: "read input", Path: input, Err: errors.New("not a regular file")}
	}

	output := outdir.Target(e.opts.OutputDir, input, format)
	e.emit(Event{Kind: EventFileStart, Path: input})
	e.emit(Event{Kind: EventConverting, Path: input, Format: format})
	log(e.opts.Log, "transcoding", "input", input, "output", output)

	onProgress := func(elapsed, total float64) {
		if e.opts.OnProgress != nil {
			e.opts.OnProgress(input, Progress{Elapsed: elapsed, Total: total})
		}
	}
	if err := tr.Transcode(ctx, input, output, onProgress); err != nil {
		return &converr.ConversionError{File: filepath.Base(input), Err: err}
	}

	e.emit(Event{Kind: EventFileDone, Path: input, Format: format})
	return nil
}

func (e *Engine) fail(err error) error {
	e.setState(StateFailed)
	e.emit(Event{Kind: EventFailed, Err: err})
	return err
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()
	log(e.opts.Log, "engine state", "from", prev, "to", s)
}

func (e *Engine) emit(ev Event) {
	if e.opts.Log != nil {
		e.opts.Log.Debug(ev.String(), "event", ev.Kind)
	}
	if e.opts.OnStatus != nil {
		e.opts.OnStatus(ev)
	}
}

// log is a helper that safely logs debug messages when logger is available.
func log(logger Logger, msg string, keyvals ...any) {
	if logger != nil {
		logger.Debug(msg, keyvals...)
	}
}
