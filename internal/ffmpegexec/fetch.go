package ffmpegexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/keanucz/audioconv/internal/converr"
	"github.com/keanucz/audioconv/internal/version"
)

// HTTPClient describes the subset of http.Client used by the provisioner.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DownloadProgress is called while an archive downloads.
type DownloadProgress func(downloaded, total int64)

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	onProgress DownloadProgress
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		if pr.onProgress != nil {
			pr.onProgress(pr.downloaded, pr.total)
		}
	}
	return n, err
}

// errNotArchive is returned when a page links to no known archive.
var errNotArchive = errors.New("page links to no ffmpeg archive")

// maxListingHops bounds how many HTML listing pages are followed.
const maxListingHops = 2

var archiveSuffixes = []string{".7z", ".zip", ".tar.xz"}

// fetchArchive downloads src into a temporary file in dir and returns its
// path and detected kind. HTML listing pages are scanned for an archive link
// which is then followed.
func (p *Provisioner) fetchArchive(ctx context.Context, src, dir string) (string, archiveKind, error) {
	for hop := 0; hop <= maxListingHops; hop++ {
		resp, err := p.get(ctx, src)
		if err != nil {
			return "", kindUnknown, err
		}

		// Read initial bytes for validation
		var head [4096]byte
		n, readErr := io.ReadFull(resp.Body, head[:])
		if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
			resp.Body.Close()
			return "", kindUnknown, readErr
		}

		if isHTMLResponse(resp.Header, head[:n]) {
			body, err := io.ReadAll(io.MultiReader(bytes.NewReader(head[:n]), resp.Body))
			resp.Body.Close()
			if err != nil {
				return "", kindUnknown, err
			}
			base, _ := url.Parse(src)
			next := findArchiveLink(body, base)
			if next == "" {
				return "", kindUnknown, fmt.Errorf("%w: %s", errNotArchive, src)
			}
			log(p.log, "following archive link", "page", src, "link", next)
			src = next
			continue
		}

		kind := detectArchive(head[:n])
		if kind == kindUnknown {
			resp.Body.Close()
			return "", kindUnknown, fmt.Errorf("%w: %s", converr.ErrUnknownArchive, src)
		}

		tmp, err := p.save(resp, head[:n], dir)
		resp.Body.Close()
		if err != nil {
			return "", kindUnknown, err
		}
		return tmp, kind, nil
	}
	return "", kindUnknown, fmt.Errorf("too many listing pages before an archive at %s", src)
}

func (p *Provisioner) get(ctx context.Context, src string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "audioconv/"+version.Version)

	log(p.log, "downloading file", "url", src)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	log(p.log, "download response",
		"url", src,
		"status", resp.StatusCode,
		"content-type", resp.Header.Get("Content-Type"))

	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: unexpected status %d", src, resp.StatusCode)
	}
	return resp, nil
}

// save writes the already-read head plus the rest of the body into a
// temporary file in dir.
func (p *Provisioner) save(resp *http.Response, head []byte, dir string) (string, error) {
	file, err := os.CreateTemp(dir, ".audioconv-download-*")
	if err != nil {
		return "", err
	}
	tmp := file.Name()

	// Use buffered writer for better I/O performance (64KB buffer)
	buffered := bufio.NewWriterSize(file, 64*1024)

	var reader io.Reader = resp.Body
	if p.onProgress != nil && resp.ContentLength > 0 {
		reader = &progressReader{
			reader:     resp.Body,
			total:      resp.ContentLength,
			downloaded: int64(len(head)),
			onProgress: p.onProgress,
		}
		p.onProgress(int64(len(head)), resp.ContentLength)
	}

	written, err := buffered.Write(head)
	if err == nil {
		var rest int64
		rest, err = io.Copy(buffered, reader)
		written += int(rest)
	}
	if err == nil {
		err = buffered.Flush()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write archive: %w", err)
	}

	logInfo(p.log, "downloaded", "bytes", written)
	return tmp, nil
}

// isHTMLResponse checks if a response appears to be HTML.
func isHTMLResponse(headers http.Header, chunk []byte) bool {
	ct := headers.Get("Content-Type")
	if strings.Contains(strings.ToLower(ct), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(chunk)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// findArchiveLink returns the first <a href> in body that points at a known
// archive type, resolved against base.
func findArchiveLink(body []byte, base *url.URL) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			t := z.Token()
			if t.Data != "a" {
				continue
			}
			for _, a := range t.Attr {
				if a.Key != "href" || a.Val == "" {
					continue
				}
				ref, err := url.Parse(a.Val)
				if err != nil {
					continue
				}
				if !hasArchiveSuffix(ref.Path) {
					continue
				}
				if base != nil {
					ref = base.ResolveReference(ref)
				}
				return ref.String()
			}
		default:
			// Ignore other token types (text, end tag, comment, doctype)
		}
	}
}

func hasArchiveSuffix(p string) bool {
	name := strings.ToLower(path.Base(p))
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
