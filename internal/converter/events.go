package converter

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/keanucz/audioconv/internal/converr"
)

// EventKind identifies a status line emitted during a run.
type EventKind int

const (
	EventPlanAccepted EventKind = iota
	EventProvisionStart
	EventProvisionDone
	EventFolderScan
	EventBatchStart
	EventFileQueued
	EventFileStart
	EventConverting
	EventFileDone
	EventBatchDone
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventPlanAccepted:
		return "plan"
	case EventProvisionStart:
		return "provision-start"
	case EventProvisionDone:
		return "provision-done"
	case EventFolderScan:
		return "folder-scan"
	case EventBatchStart:
		return "batch-start"
	case EventFileQueued:
		return "file-queued"
	case EventFileStart:
		return "file-start"
	case EventConverting:
		return "converting"
	case EventFileDone:
		return "file-done"
	case EventBatchDone:
		return "batch-done"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one entry of the status stream.
type Event struct {
	Kind   EventKind
	Path   string // input file or folder, when relevant
	Format string // output format, when relevant
	Err    error  // set for EventFailed
}

// String renders the event as a human-readable status line.
func (e Event) String() string {
	switch e.Kind {
	case EventPlanAccepted:
		return fmt.Sprintf("Converting %s to %s", e.Path, e.Format)
	case EventProvisionStart:
		return "Downloading ffmpeg executables..."
	case EventProvisionDone:
		return "Finished downloading ffmpeg executables"
	case EventFolderScan:
		return "Getting files from folder: " + e.Path
	case EventBatchStart:
		return "Starting converting files..."
	case EventFileQueued:
		return "Processing file: " + e.Path
	case EventFileStart:
		return "Start processing file: " + filepath.Base(e.Path)
	case EventConverting:
		return fmt.Sprintf("Converting to %s format...", e.Format)
	case EventFileDone:
		return "Finished converting file: " + filepath.Base(e.Path)
	case EventBatchDone:
		return "Finished converting files"
	case EventFailed:
		return fmt.Sprintf("Conversion failed (%s): %v", converr.Kind(e.Err), e.Err)
	default:
		return e.Kind.String()
	}
}

// StatusFunc receives every status event in order.
type StatusFunc func(Event)

// Progress is a snapshot of one in-flight conversion, in seconds.
type Progress struct {
	Elapsed float64
	Total   float64
}

// Percent returns round(elapsed/total, 2) * 100, or 0 when the total
// duration is unknown. Halves round to even.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return int(math.RoundToEven(p.Elapsed / p.Total * 100))
}

// ProgressCallback observes conversion progress for file. It must not block
// for long: it runs on the goroutine draining ffmpeg's progress pipe.
type ProgressCallback func(file string, p Progress)
