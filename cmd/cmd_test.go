package cmd

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/keanucz/audioconv/internal/converr"
	"github.com/keanucz/audioconv/internal/converter"
	"github.com/keanucz/audioconv/internal/plan"
)

func TestTokensFor(t *testing.T) {
	defer func() { formatFlag = "" }()

	formatFlag = ""
	if got := tokensFor(plan.ModeFolderToken, "videos"); !slices.Equal(got, []string{"-folder", "videos"}) {
		t.Fatalf("tokens = %v", got)
	}

	formatFlag = ".wav"
	want := []string{"-single_file", "clip.mp4", "-format", ".wav"}
	if got := tokensFor(plan.ModeSingleFileToken, "clip.mp4"); !slices.Equal(got, want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
}

func TestStatusReporter(t *testing.T) {
	defer func() { reportedErr = nil }()

	var buf bytes.Buffer
	r := newStatusReporter(&buf)

	r.report(converter.Event{Kind: converter.EventFileQueued, Path: "videos/a.mp4"})
	r.report(converter.Event{Kind: converter.EventFileDone, Path: "videos/a.mp4"})
	r.report(converter.Event{Kind: converter.EventBatchDone})
	r.report(converter.Event{Kind: converter.EventFailed, Err: converr.Argumentf("no path specified")})

	out := buf.String()
	for _, want := range []string{
		"Processing file: videos/a.mp4",
		"Finished converting file: a.mp4",
		"1 converted",
		"Conversion failed (argument error): no path specified",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAlreadyReported(t *testing.T) {
	defer func() { reportedErr = nil }()

	failure := converr.Argumentf("invalid format operation")
	other := errors.New("unknown command")
	if alreadyReported(failure) {
		t.Fatalf("nothing reported yet")
	}

	var buf bytes.Buffer
	newStatusReporter(&buf).report(converter.Event{Kind: converter.EventFailed, Err: failure})

	if !alreadyReported(failure) {
		t.Errorf("failure shown as a status line must not be printed again")
	}
	if alreadyReported(other) {
		t.Errorf("errors outside the status stream must still be printed")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
