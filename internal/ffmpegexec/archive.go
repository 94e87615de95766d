package ffmpegexec

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/ulikunitz/xz"

	"github.com/keanucz/audioconv/internal/converr"
)

type archiveKind int

const (
	kindUnknown archiveKind = iota
	kind7z
	kindZip
	kindTarXz
)

func (k archiveKind) String() string {
	switch k {
	case kind7z:
		return "7z"
	case kindZip:
		return "zip"
	case kindTarXz:
		return "tar.xz"
	default:
		return "unknown"
	}
}

var (
	sevenZipMagic = []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}
	xzMagic       = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
)

// detectArchive identifies an archive by its leading bytes.
func detectArchive(head []byte) archiveKind {
	switch {
	case bytes.HasPrefix(head, sevenZipMagic):
		return kind7z
	case isZipSignature(head):
		return kindZip
	case bytes.HasPrefix(head, xzMagic):
		return kindTarXz
	default:
		return kindUnknown
	}
}

// isZipSignature checks if bytes start with ZIP file signature.
func isZipSignature(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 0x03 && b[3] == 0x04
}

// stager collects wanted executables out of archives into temporary files
// next to their final location.
type stager struct {
	dir    string
	wanted map[string]bool   // base names still to find
	staged map[string]string // base name -> temp path
}

func newStager(dir string, names ...string) *stager {
	s := &stager{dir: dir, wanted: map[string]bool{}, staged: map[string]string{}}
	for _, n := range names {
		s.wanted[n] = true
	}
	return s
}

// match returns the wanted tool name an archive entry stands for.
func (s *stager) match(entry string) (string, bool) {
	base := path.Base(strings.ReplaceAll(entry, `\`, "/"))
	if !s.wanted[base] {
		return "", false
	}
	if _, done := s.staged[base]; done {
		return "", false
	}
	return base, true
}

func (s *stager) stage(name string, r io.Reader) error {
	out, err := os.CreateTemp(s.dir, "."+name+"-*")
	if err != nil {
		return err
	}
	_, err = io.Copy(out, r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(out.Name())
		return fmt.Errorf("extract %s: %w", name, err)
	}
	s.staged[name] = out.Name()
	return nil
}

func (s *stager) missing() []string {
	var out []string
	for n := range s.wanted {
		if _, ok := s.staged[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

func (s *stager) discard() {
	for _, p := range s.staged {
		os.Remove(p)
	}
	s.staged = map[string]string{}
}

// extract pulls every wanted executable out of the archive at src.
func (s *stager) extract(src string, kind archiveKind) error {
	switch kind {
	case kind7z:
		return s.extract7z(src)
	case kindZip:
		return s.extractZip(src)
	case kindTarXz:
		return s.extractTarXz(src)
	default:
		return converr.ErrUnknownArchive
	}
}

func (s *stager) extract7z(src string) error {
	archive, err := sevenzip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open 7z archive: %w", err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name, ok := s.match(file.Name)
		if !ok {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open file in archive: %w", err)
		}
		err = s.stage(name, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *stager) extractZip(src string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open zip archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, ok := s.match(f.Name)
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open file in archive: %w", err)
		}
		err = s.stage(name, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *stager) extractTarXz(src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	xr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("open xz stream: %w", err)
	}
	tr := tar.NewReader(xr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, ok := s.match(hdr.Name)
		if !ok {
			continue
		}
		if err := s.stage(name, tr); err != nil {
			return err
		}
	}
}
