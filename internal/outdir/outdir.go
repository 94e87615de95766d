// Package outdir prepares the directory that receives converted files.
package outdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keanucz/audioconv/internal/converr"
)

// DefaultPath is the output directory used when none is configured.
const DefaultPath = "out"

// Prepare makes sure path exists and holds no regular files. Existing
// regular files directly inside it are removed; subdirectories and their
// contents are left alone. A missing directory is created with its parents.
func Prepare(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return &converr.IOError{Op: "create output dir", Path: path, Err: err}
		}
		return nil
	}
	if err != nil {
		return &converr.IOError{Op: "stat output dir", Path: path, Err: err}
	}
	if !info.IsDir() {
		return &converr.IOError{Op: "prepare output dir", Path: path, Err: fmt.Errorf("not a directory")}
	}
	return purge(path)
}

func purge(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &converr.IOError{Op: "read output dir", Path: dir, Err: err}
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &converr.IOError{Op: "remove", Path: p, Err: err}
		}
	}
	return nil
}

// Target returns the output path for input converted to ext inside dir:
// the input's base name with its extension swapped. A name that is only an
// extension, like ".mp4", keeps it as the name: "mp4.mp3".
func Target(dir, input, ext string) string {
	base := filepath.Base(input)
	name := base[:len(base)-len(filepath.Ext(base))]
	if name == "" {
		name = strings.TrimPrefix(base, ".")
	}
	return filepath.Join(dir, name+ext)
}
