// Package metrics summarizes one extraction run for humans and machines.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/efebarandurmaz/lineage/internal/extract"
)

// RunMetrics collects statistics for a full pipeline run.
type RunMetrics struct {
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at,omitempty"`
	Duration   time.Duration           `json:"-"`
	DurationMS int64                   `json:"duration_ms,omitempty"`
	Revisions  []string                `json:"revisions"`
	Kinds      map[string]*KindMetrics `json:"kinds"`
	History    HistoryMetrics          `json:"history"`
	OutputPath string                  `json:"output_path,omitempty"`
	OutputSize int                     `json:"output_bytes,omitempty"`
	Degraded   []string                `json:"degraded,omitempty"`

	kindOrder []string
}

// KindMetrics aggregates the extractions of one source kind.
type KindMetrics struct {
	Declarations int                    `json:"declarations"`
	Skipped      int                    `json:"skipped_calls"`
	Duplicates   int                    `json:"duplicates"`
	CacheHits    int                    `json:"cache_hits"`
	Settings     int                    `json:"settings"`
	Outcomes     map[extract.Status]int `json:"outcomes"`
}

// HistoryMetrics describes the change-history parse.
type HistoryMetrics struct {
	Revision string `json:"revision,omitempty"`
	Names    int    `json:"names"`
	Attached int    `json:"attached"`
	Error    string `json:"error,omitempty"`
}

// New starts tracking a run.
func New() *RunMetrics {
	return &RunMetrics{StartedAt: time.Now(), Kinds: make(map[string]*KindMetrics)}
}

func (m *RunMetrics) kind(name string) *KindMetrics {
	k, ok := m.Kinds[name]
	if !ok {
		k = &KindMetrics{Outcomes: make(map[extract.Status]int)}
		m.Kinds[name] = k
		m.kindOrder = append(m.kindOrder, name)
	}
	return k
}

// AddOutcome records one per-revision extraction.
func (m *RunMetrics) AddOutcome(o extract.Outcome) {
	k := m.kind(o.Kind)
	k.Declarations += o.Declarations
	k.Skipped += o.Skipped
	k.Duplicates += o.Duplicates
	k.Outcomes[o.Status]++
	if o.Cached {
		k.CacheHits++
	}
	if o.Status.Degraded() {
		msg := fmt.Sprintf("%s@%s: %s", o.Kind, o.Revision, o.Status)
		if o.Err != nil {
			msg += ": " + o.Err.Error()
		}
		m.Degraded = append(m.Degraded, msg)
	}
}

// SetSettings records the size of a finished registry.
func (m *RunMetrics) SetSettings(kind string, n int) {
	m.kind(kind).Settings = n
}

// Finish marks the run as complete.
func (m *RunMetrics) Finish() {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
	m.DurationMS = m.Duration.Milliseconds()
}

// KindNames returns kinds in the order they were first recorded.
func (m *RunMetrics) KindNames() []string {
	if len(m.kindOrder) == len(m.Kinds) {
		return append([]string(nil), m.kindOrder...)
	}
	names := make([]string, 0, len(m.Kinds))
	for name := range m.Kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PrintSummary writes a human-readable summary.
func (m *RunMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║         LINEAGE RUN REPORT           ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Revisions:   %-23d║\n", len(m.Revisions))
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	for _, name := range m.KindNames() {
		k := m.Kinds[name]
		fmt.Fprintf(w, "║ %s\n", name)
		fmt.Fprintf(w, "║   Settings:      %d\n", k.Settings)
		fmt.Fprintf(w, "║   Declarations:  %d\n", k.Declarations)
		fmt.Fprintf(w, "║   Skipped calls: %d\n", k.Skipped)
		fmt.Fprintf(w, "║   Cache hits:    %d\n", k.CacheHits)
		for _, st := range sortedStatuses(k.Outcomes) {
			fmt.Fprintf(w, "║   %-14s %d\n", st+":", k.Outcomes[st])
		}
	}
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ HISTORY\n")
	fmt.Fprintf(w, "║   Names:     %d\n", m.History.Names)
	fmt.Fprintf(w, "║   Attached:  %d\n", m.History.Attached)
	if m.History.Error != "" {
		fmt.Fprintf(w, "║   Error:     %s\n", m.History.Error)
	}
	if m.OutputPath != "" {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ OUTPUT %s (%s)\n", m.OutputPath, formatBytes(m.OutputSize))
	}
	if len(m.Degraded) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ DEGRADED\n")
		for _, d := range m.Degraded {
			fmt.Fprintf(w, "║   • %s\n", d)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *RunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func sortedStatuses(outcomes map[extract.Status]int) []extract.Status {
	out := make([]extract.Status, 0, len(outcomes))
	for st := range outcomes {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func formatBytes(b int) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
