// Package formats holds the output audio formats the converter accepts.
package formats

import (
	"sort"
	"strings"
	"sync"
)

// DefaultExt is the output format used when none is requested.
const DefaultExt = ".mp3"

// Format describes one accepted output extension.
type Format struct {
	Ext      string // with leading dot, lower case (".mp3")
	Codec    string // ffmpeg audio encoder
	Lossless bool   // bitrate settings do not apply
}

// Catalog is a set of accepted output formats. The zero value is empty and
// ready to use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Format
}

var builtin = []Format{
	{Ext: ".mp3", Codec: "libmp3lame"},
	{Ext: ".wav", Codec: "pcm_s16le", Lossless: true},
	{Ext: ".flac", Codec: "flac", Lossless: true},
	{Ext: ".ogg", Codec: "libvorbis"},
	{Ext: ".opus", Codec: "libopus"},
	{Ext: ".aac", Codec: "aac"},
	{Ext: ".m4a", Codec: "aac"},
	{Ext: ".wma", Codec: "wmav2"},
	{Ext: ".aiff", Codec: "pcm_s16be", Lossless: true},
}

// Default returns a catalog holding the built-in formats.
func Default() *Catalog {
	c := &Catalog{}
	for _, f := range builtin {
		c.Register(f)
	}
	return c
}

// Register adds or replaces a format. The extension is normalised to lower
// case with a leading dot.
func (c *Catalog) Register(f Format) {
	f.Ext = normalize(f.Ext)
	if f.Ext == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]Format)
	}
	c.entries[f.Ext] = f
}

// IsSupported reports whether ext is an accepted output format. The leading
// dot is required: "mp3" is not supported, ".mp3" and ".MP3" are.
func (c *Catalog) IsSupported(ext string) bool {
	_, ok := c.Lookup(ext)
	return ok
}

// Lookup returns the format registered for ext.
func (c *Catalog) Lookup(ext string) (Format, bool) {
	if !strings.HasPrefix(ext, ".") {
		return Format{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.entries[strings.ToLower(ext)]
	return f, ok
}

// Extensions returns the accepted extensions in sorted order.
func (c *Catalog) Extensions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exts := make([]string, 0, len(c.entries))
	for ext := range c.entries {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
