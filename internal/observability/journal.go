package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// EventType categorizes journal events.
type EventType string

const (
	EventRunStart      EventType = "run.start"
	EventRunEnd        EventType = "run.end"
	EventExtract       EventType = "extract"
	EventHistory       EventType = "history"
	EventOutputWritten EventType = "output.write"
)

// Event is a single journal entry.
type Event struct {
	Timestamp  time.Time      `json:"timestamp"`
	Type       EventType      `json:"event_type"`
	RunID      string         `json:"run_id"`
	Revision   string         `json:"revision,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Success    bool           `json:"success"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Journal appends run events as JSON lines. A nil or disabled Journal
// discards everything.
type Journal struct {
	mu      sync.Mutex
	writer  io.Writer
	runID   string
	enabled bool
}

// OpenJournal opens a journal writing to path, which may also be "stdout" or
// "stderr". An empty path yields a disabled journal.
func OpenJournal(path, runID string) (*Journal, error) {
	if path == "" {
		return &Journal{}, nil
	}
	var w io.Writer
	switch path {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		w = f
	}
	return NewJournal(w, runID), nil
}

// NewJournal creates an enabled journal on w.
func NewJournal(w io.Writer, runID string) *Journal {
	if runID == "" {
		runID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return &Journal{writer: w, runID: runID, enabled: true}
}

// RunID returns the identifier stamped on every event.
func (j *Journal) RunID() string {
	if j == nil {
		return ""
	}
	return j.runID
}

// Log writes an event.
func (j *Journal) Log(event *Event) error {
	if j == nil || !j.enabled {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RunID == "" {
		event.RunID = j.runID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal journal event: %w", err)
	}
	_, err = fmt.Fprintf(j.writer, "%s\n", data)
	return err
}

// LogRunStart records the resolved revision list and source kinds.
func (j *Journal) LogRunStart(revisions, kinds []string) {
	j.Log(&Event{
		Type:    EventRunStart,
		Success: true,
		Message: fmt.Sprintf("Run started: %d revisions, %d kinds", len(revisions), len(kinds)),
		Details: map[string]any{
			"revisions": revisions,
			"kinds":     kinds,
		},
	})
}

// LogExtract records one per-revision extraction outcome.
func (j *Journal) LogExtract(revision, kind, status string, declarations, skipped int, cached bool, duration time.Duration, err error) {
	event := &Event{
		Type:       EventExtract,
		Revision:   revision,
		Kind:       kind,
		Success:    status == "ok",
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("%s@%s: %s", kind, revision, status),
		Details: map[string]any{
			"status":        status,
			"declarations":  declarations,
			"skipped_calls": skipped,
			"cached":        cached,
		},
	}
	if err != nil {
		event.Error = err.Error()
	}
	j.Log(event)
}

// LogHistory records the change-history parse.
func (j *Journal) LogHistory(revision string, settings int, err error) {
	event := &Event{
		Type:     EventHistory,
		Revision: revision,
		Success:  err == nil,
		Message:  fmt.Sprintf("Change history: %d settings", settings),
		Details: map[string]any{
			"settings": settings,
		},
	}
	if err != nil {
		event.Error = err.Error()
	}
	j.Log(event)
}

// LogOutput records the written registry document.
func (j *Journal) LogOutput(path string, size int) {
	j.Log(&Event{
		Type:    EventOutputWritten,
		Success: true,
		Message: fmt.Sprintf("Wrote %s", path),
		Details: map[string]any{
			"path": path,
			"size": size,
		},
	})
}

// LogRunEnd records run completion.
func (j *Journal) LogRunEnd(success bool, duration time.Duration, settings map[string]int) {
	j.Log(&Event{
		Type:       EventRunEnd,
		Success:    success,
		DurationMS: duration.Milliseconds(),
		Message:    "Run completed",
		Details: map[string]any{
			"settings": settings,
		},
	})
}

// Close closes the journal file, if any.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	if closer, ok := j.writer.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}
