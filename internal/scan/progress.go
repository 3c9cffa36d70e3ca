package scan

import (
	"fmt"
	"sync"
)

// ProgressStatus is the state of one file within a scan.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressSkipped  ProgressStatus = "skipped"
)

// ProgressEvent is emitted as files move through the scan.
type ProgressEvent struct {
	ScanID  string
	File    string
	Status  ProgressStatus
	Message string
}

// ProgressReporter fans progress events out through a buffered channel and
// tallies final statuses. Emit never blocks a worker: when the channel is
// full the event is dropped from the stream but still counted.
type ProgressReporter struct {
	ch chan ProgressEvent

	mu     sync.Mutex
	counts map[ProgressStatus]int
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch:     make(chan ProgressEvent, 64),
		counts: make(map[ProgressStatus]int),
	}
}

// Emit records and forwards a progress event.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	pr.mu.Lock()
	pr.counts[event.Status]++
	pr.mu.Unlock()

	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// Count returns how many events with status s were emitted.
func (pr *ProgressReporter) Count(s ProgressStatus) int {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.counts[s]
}

// Summary describes the finished files, e.g. "12 complete, 1 skipped".
func (pr *ProgressReporter) Summary() string {
	return fmt.Sprintf("%d complete, %d skipped", pr.Count(ProgressComplete), pr.Count(ProgressSkipped))
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", event.File)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", event.File)
	case ProgressComplete:
		return fmt.Sprintf("  ✓ %s %s", event.File, event.Message)
	case ProgressSkipped:
		return fmt.Sprintf("  ✗ %s skipped: %s", event.File, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.File)
	}
}
