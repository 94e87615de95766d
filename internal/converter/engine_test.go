package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/keanucz/audioconv/internal/converr"
	"github.com/keanucz/audioconv/internal/ffmpegexec"
	"github.com/keanucz/audioconv/internal/formats"
	"github.com/keanucz/audioconv/internal/plan"
)

type fakeProvisioner struct {
	installed bool
	err       error
	calls     int
}

func (f *fakeProvisioner) Installed() bool { return f.installed }

func (f *fakeProvisioner) EnsureAvailable(context.Context) (ffmpegexec.ToolPaths, error) {
	f.calls++
	if f.err != nil {
		return ffmpegexec.ToolPaths{}, f.err
	}
	f.installed = true
	return ffmpegexec.ToolPaths{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}, nil
}

type call struct{ input, output string }

type fakeTranscoder struct {
	calls  []call
	failOn string // base name of the input that fails
}

func (f *fakeTranscoder) Transcode(_ context.Context, input, output string, onProgress ffmpegexec.ProgressFunc) error {
	f.calls = append(f.calls, call{input, output})
	if filepath.Base(input) == f.failOn {
		return errors.New("Invalid data found when processing input")
	}
	onProgress(5, 10)
	onProgress(10, 10)
	return os.WriteFile(output, []byte("audio"), 0o644)
}

type recorder struct {
	events []Event
}

func (r *recorder) record(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) paths(kind EventKind) []string {
	var out []string
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, filepath.Base(ev.Path))
		}
	}
	return out
}

type fixture struct {
	engine *Engine
	conv   *Converter
	prov   *fakeProvisioner
	tr     *fakeTranscoder
	rec    *recorder
	outDir string
	pcts   []int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		prov:   &fakeProvisioner{installed: true},
		tr:     &fakeTranscoder{},
		rec:    &recorder{},
		outDir: filepath.Join(t.TempDir(), "out"),
	}
	f.engine = New(f.prov, func(ffmpegexec.ToolPaths) (Transcoder, error) { return f.tr, nil }, Options{
		OutputDir: f.outDir,
		OnStatus:  f.rec.record,
		OnProgress: func(_ string, p Progress) {
			f.pcts = append(f.pcts, p.Percent())
		},
	})
	f.conv = NewConverter(f.engine, formats.Default(), formats.DefaultExt)
	return f
}

func writeInputs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("video"), 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
}

func TestSingleFileOutputPath(t *testing.T) {
	f := newFixture(t)
	in := t.TempDir()
	writeInputs(t, in, "clip.mp4")

	err := f.conv.Convert(context.Background(), []string{plan.ModeSingleFileToken, filepath.Join(in, "clip.mp4")})
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}
	if len(f.tr.calls) != 1 {
		t.Fatalf("expected 1 transcode, got %d", len(f.tr.calls))
	}
	want := filepath.Join(f.outDir, "clip.mp3")
	if f.tr.calls[0].output != want {
		t.Fatalf("output = %q, want %q", f.tr.calls[0].output, want)
	}
	if f.engine.State() != StateCompleted {
		t.Fatalf("state = %v, want completed", f.engine.State())
	}
	if !slices.Equal(f.pcts, []int{50, 100}) {
		t.Fatalf("progress = %v, want [50 100]", f.pcts)
	}
	wantKinds := []EventKind{EventPlanAccepted, EventFileStart, EventConverting, EventFileDone}
	var kinds []EventKind
	for _, ev := range f.rec.events {
		kinds = append(kinds, ev.Kind)
	}
	if !slices.Equal(kinds, wantKinds) {
		t.Fatalf("events = %v, want %v", kinds, wantKinds)
	}
}

func TestFolderConvertsEveryFileInOrder(t *testing.T) {
	f := newFixture(t)
	in := t.TempDir()
	writeInputs(t, in, "c.mkv", "a.mp4", "b.webm")
	if err := os.Mkdir(filepath.Join(in, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	elsewhere := t.TempDir()
	writeInputs(t, elsewhere, "real.mov")
	if err := os.Symlink(filepath.Join(elsewhere, "real.mov"), filepath.Join(in, "d.mov")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(in, "nested"), filepath.Join(in, "e-dir")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	err := f.conv.Convert(context.Background(), []string{plan.ModeFolderToken, in, plan.FormatFlag, ".wav"})
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}

	wantOrder := []string{"a.mp4", "b.webm", "c.mkv", "d.mov"}
	if got := f.rec.paths(EventFileStart); !slices.Equal(got, wantOrder) {
		t.Fatalf("start events = %v, want %v", got, wantOrder)
	}
	if got := f.rec.paths(EventFileDone); !slices.Equal(got, wantOrder) {
		t.Fatalf("done events = %v, want %v", got, wantOrder)
	}
	if f.rec.count(EventBatchDone) != 1 {
		t.Fatalf("expected one batch-done event")
	}
	for _, n := range []string{"a.wav", "b.wav", "c.wav", "d.wav"} {
		if _, err := os.Stat(filepath.Join(f.outDir, n)); err != nil {
			t.Errorf("missing output %s: %v", n, err)
		}
	}
}

func TestFolderAbortsOnFirstFailure(t *testing.T) {
	f := newFixture(t)
	in := t.TempDir()
	writeInputs(t, in, "1.mp4", "2.mp4", "3.mp4", "4.mp4")
	f.tr.failOn = "3.mp4"

	err := f.conv.Convert(context.Background(), []string{plan.ModeFolderToken, in})

	var convErr *converr.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.File != "3.mp4" {
		t.Errorf("failed file = %q, want 3.mp4", convErr.File)
	}
	if got := f.rec.count(EventFileDone); got != 2 {
		t.Fatalf("expected 2 finished files before abort, got %d", got)
	}
	if len(f.tr.calls) != 3 {
		t.Fatalf("file 4 must not be attempted, got %d transcodes", len(f.tr.calls))
	}
	if f.rec.count(EventBatchDone) != 0 {
		t.Fatalf("batch must not report completion")
	}
	last := f.rec.events[len(f.rec.events)-1]
	if last.Kind != EventFailed {
		t.Fatalf("last event = %v, want failed", last.Kind)
	}
	if f.engine.State() != StateFailed {
		t.Fatalf("state = %v, want failed", f.engine.State())
	}
}

func TestProvisioningEventsOnlyWhenFetching(t *testing.T) {
	f := newFixture(t)
	f.prov.installed = false
	in := t.TempDir()
	writeInputs(t, in, "clip.mp4")
	tokens := []string{plan.ModeSingleFileToken, filepath.Join(in, "clip.mp4")}

	if err := f.conv.Convert(context.Background(), tokens); err != nil {
		t.Fatalf("Convert error: %v", err)
	}
	if f.rec.count(EventProvisionStart) != 1 || f.rec.count(EventProvisionDone) != 1 {
		t.Fatalf("expected provisioning events on first run")
	}

	f.rec.events = nil
	if err := f.conv.Convert(context.Background(), tokens); err != nil {
		t.Fatalf("second Convert error: %v", err)
	}
	if f.rec.count(EventProvisionStart) != 0 {
		t.Fatalf("no provisioning events expected once installed")
	}
}

func TestProvisionFailureStopsBeforeConversion(t *testing.T) {
	f := newFixture(t)
	f.prov.installed = false
	f.prov.err = &converr.ProvisionError{Op: "download", Err: errors.New("connection refused")}
	in := t.TempDir()
	writeInputs(t, in, "clip.mp4")

	err := f.conv.Convert(context.Background(), []string{plan.ModeSingleFileToken, filepath.Join(in, "clip.mp4")})
	var provErr *converr.ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	if len(f.tr.calls) != 0 {
		t.Fatalf("no conversion expected")
	}
}

func TestMissingToolAfterProvisioning(t *testing.T) {
	f := newFixture(t)
	f.engine.newTranscoder = func(ffmpegexec.ToolPaths) (Transcoder, error) {
		return nil, converr.ErrToolMissing
	}
	in := t.TempDir()
	writeInputs(t, in, "clip.mp4")

	err := f.conv.Convert(context.Background(), []string{plan.ModeSingleFileToken, filepath.Join(in, "clip.mp4")})
	var provErr *converr.ProvisionError
	if !errors.As(err, &provErr) || !errors.Is(err, converr.ErrToolMissing) {
		t.Fatalf("expected ProvisionError wrapping ErrToolMissing, got %v", err)
	}
}

func TestArgumentErrorSkipsEverything(t *testing.T) {
	f := newFixture(t)

	err := f.conv.Convert(context.Background(), []string{plan.ModeFolderToken, "videos", plan.FormatFlag})
	var argErr *converr.ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ArgumentError, got %v", err)
	}
	if f.prov.calls != 0 {
		t.Fatalf("provisioner must not run")
	}
	if _, err := os.Stat(f.outDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output dir must not be touched, stat err = %v", err)
	}
	if len(f.rec.events) != 1 || f.rec.events[0].Kind != EventFailed {
		t.Fatalf("expected a single failure event, got %v", f.rec.events)
	}
}

type levelLogger struct {
	debug, errors int
}

func (l *levelLogger) Debug(any, ...any) { l.debug++ }
func (l *levelLogger) Info(any, ...any)  {}
func (l *levelLogger) Warn(any, ...any)  {}
func (l *levelLogger) Error(any, ...any) { l.errors++ }

func TestFailureReportedOnlyThroughStatus(t *testing.T) {
	f := newFixture(t)
	logger := &levelLogger{}
	f.engine.opts.Log = logger

	err := f.conv.Convert(context.Background(), []string{plan.ModeFolderToken})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if f.rec.count(EventFailed) != 1 {
		t.Fatalf("expected one failure event, got %d", f.rec.count(EventFailed))
	}
	if logger.errors != 0 {
		t.Fatalf("failure must not also be logged at error level, got %d", logger.errors)
	}
	if logger.debug == 0 {
		t.Fatalf("expected debug trace of the failure event")
	}
}

func TestOutputAreaFailureSkipsProvisioning(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(f.outDir, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := f.conv.Convert(context.Background(), []string{plan.ModeSingleFileToken, "clip.mp4"})
	var ioErr *converr.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if f.prov.calls != 0 {
		t.Fatalf("provisioner must not run when the output area fails")
	}
}

func TestOutputAreaPurgedBeforeRun(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stale := filepath.Join(f.outDir, "old.mp3")
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	in := t.TempDir()
	writeInputs(t, in, "clip.mp4")

	if err := f.conv.Convert(context.Background(), []string{plan.ModeSingleFileToken, filepath.Join(in, "clip.mp4")}); err != nil {
		t.Fatalf("Convert error: %v", err)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale output should be purged")
	}
}

func TestUnreadableInput(t *testing.T) {
	f := newFixture(t)
	in := t.TempDir()

	tests := [][]string{
		{plan.ModeSingleFileToken, filepath.Join(in, "missing.mp4")},
		{plan.ModeSingleFileToken, in},
		{plan.ModeFolderToken, filepath.Join(in, "nope")},
	}
	for _, tokens := range tests {
		err := f.conv.Convert(context.Background(), tokens)
		var ioErr *converr.IOError
		if !errors.As(err, &ioErr) {
			t.Fatalf("%v: expected IOError, got %v", tokens, err)
		}
	}
	if len(f.tr.calls) != 0 {
		t.Fatalf("no conversion expected")
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		p    Progress
		want int
	}{
		{Progress{Elapsed: 0, Total: 10}, 0},
		{Progress{Elapsed: 1, Total: 3}, 33},
		{Progress{Elapsed: 2, Total: 3}, 67},
		{Progress{Elapsed: 10, Total: 10}, 100},
		{Progress{Elapsed: 1, Total: 8}, 12},
		{Progress{Elapsed: 3, Total: 8}, 38},
		{Progress{Elapsed: 5, Total: 0}, 0},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("Percent(%+v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestEventStrings(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Kind: EventFileStart, Path: filepath.Join("videos", "clip.mp4")}, "Start processing file: clip.mp4"},
		{Event{Kind: EventConverting, Format: ".mp3"}, "Converting to .mp3 format..."},
		{Event{Kind: EventBatchDone}, "Finished converting files"},
		{Event{Kind: EventFailed, Err: converr.Argumentf("no path specified")}, "Conversion failed (argument error): no path specified"},
	}
	for _, tt := range tests {
		if got := tt.ev.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
