// Package watcher converts media files as they appear in a folder.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Logger interface for logging operations.
// Compatible with github.com/charmbracelet/log.Logger.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// Handler processes one newly created file.
type Handler func(ctx context.Context, path string) error

// Options configure a Watcher.
type Options struct {
	Extensions []string      // accepted input extensions, e.g. ".mp4"
	Settle     time.Duration // delay before handling so the file is fully written
	QueueSize  int           // pending files buffer (default 64)
	Log        Logger
}

// Watcher feeds new files of a directory to a Handler, one at a time.
type Watcher struct {
	dir     string
	handle  Handler
	exts    map[string]bool
	settle  time.Duration
	log     Logger
	watcher *fsnotify.Watcher
	queue   chan string
}

// New starts watching dir. Call Run to process events and Close when done.
func New(dir string, handle Handler, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Watcher{
		dir:     dir,
		handle:  handle,
		exts:    exts,
		settle:  opts.Settle,
		log:     opts.Log,
		watcher: fw,
		queue:   make(chan string, opts.QueueSize),
	}, nil
}

// Run blocks until ctx is cancelled. Files are handled sequentially by a
// single worker; a handler error is logged and the watcher keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.work(ctx)
	}()
	defer func() {
		close(w.queue)
		wg.Wait()
	}()

	w.info("watching folder", "dir", w.dir)
	for {
		select {
		case <-ctx.Done():
			w.info("watcher stopped", "dir", w.dir)
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !w.accepts(event.Name) {
				w.debug("ignoring file", "path", event.Name)
				continue
			}
			w.info("new media file", "path", event.Name)
			select {
			case w.queue <- event.Name:
			case <-ctx.Done():
				return ctx.Err()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			if w.log != nil {
				w.log.Error("watcher error", "error", err)
			}
		}
	}
}

func (w *Watcher) work(ctx context.Context) {
	for path := range w.queue {
		if ctx.Err() != nil {
			continue
		}
		if w.settle > 0 {
			select {
			case <-time.After(w.settle):
			case <-ctx.Done():
				continue
			}
		}
		if err := w.handle(ctx, path); err != nil && w.log != nil {
			w.log.Error("failed to convert file", "path", path, "error", err)
		}
	}
}

// Close stops the underlying file system watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// accepts checks if path is a visible file with a watched extension.
func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return w.exts[strings.ToLower(filepath.Ext(base))]
}

func (w *Watcher) info(msg string, keyvals ...any) {
	if w.log != nil {
		w.log.Info(msg, keyvals...)
	}
}

func (w *Watcher) debug(msg string, keyvals ...any) {
	if w.log != nil {
		w.log.Debug(msg, keyvals...)
	}
}
