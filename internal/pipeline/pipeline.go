// Package pipeline runs the end-to-end extraction: per-revision extraction of
// every source kind, cross-revision merging and change-history attachment.
// Work is strictly sequential in chronological order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/efebarandurmaz/lineage/internal/changes"
	"github.com/efebarandurmaz/lineage/internal/extract"
	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/metrics"
	"github.com/efebarandurmaz/lineage/internal/observability"
	"github.com/efebarandurmaz/lineage/internal/sources"
	"github.com/efebarandurmaz/lineage/internal/vcs"
)

// Options selects what one run processes.
type Options struct {
	// Revisions in chronological order.
	Revisions []string
	Kinds     []sources.Kind
	// HistoryPath is fetched at the newest revision. Empty disables history.
	HistoryPath    string
	HistoryKeyword string
}

// Result is the output of a run.
type Result struct {
	Document *ir.Document
	Run      *metrics.RunMetrics
}

// Pipeline wires the extractor to merging and history parsing.
type Pipeline struct {
	Extractor *extract.Extractor
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Journal   *observability.Journal
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Run processes every revision and kind. Only cancellation aborts a run;
// all other failures degrade to missing data and are reported in the run
// metrics.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Kinds) == 0 {
		return nil, errors.New("no source kinds configured")
	}
	run := metrics.New()
	run.Revisions = append([]string(nil), opts.Revisions...)

	kindNames := make([]string, len(opts.Kinds))
	for i, k := range opts.Kinds {
		kindNames[i] = k.Name
	}
	ctx, span := observability.StartRunSpan(ctx, len(opts.Revisions), len(opts.Kinds))
	defer span.End()
	p.Journal.LogRunStart(opts.Revisions, kindNames)
	p.logger().Info("run started", "revisions", len(opts.Revisions), "kinds", kindNames)

	b := NewBuilder(kindNames)
	for _, rev := range opts.Revisions {
		rs, err := p.ExtractRevision(ctx, rev, opts.Kinds)
		if err != nil {
			observability.RecordError(span, err)
			p.Journal.LogRunEnd(false, time.Since(run.StartedAt), nil)
			return nil, err
		}
		for _, ks := range rs.Kinds {
			run.AddOutcome(ks.Outcome)
		}
		b.Add(rs)
	}

	_, mergeSpan := observability.StartMergeSpan(ctx, "all", len(opts.Revisions))
	doc := b.Document()
	mergeSpan.End()

	sizes := make(map[string]int, len(kindNames))
	for _, k := range kindNames {
		reg, _ := doc.Registry(k)
		sizes[k] = len(reg.Settings)
		run.SetSettings(k, len(reg.Settings))
		p.Metrics.SetRegistrySize(k, len(reg.Settings))
	}

	if opts.HistoryPath != "" && len(opts.Revisions) > 0 {
		latest := opts.Revisions[len(opts.Revisions)-1]
		run.History.Revision = latest
		h, err := p.History(ctx, latest, opts.HistoryPath, opts.HistoryKeyword)
		if err != nil {
			run.History.Error = err.Error()
		}
		run.History.Names = len(h)
		run.History.Attached = h.Attach(doc)
	}

	run.Finish()
	p.Journal.LogRunEnd(true, run.Duration, sizes)
	p.logger().Info("run finished", "duration", run.Duration, "settings", sizes)
	return &Result{Document: doc, Run: run}, nil
}

// ExtractRevision extracts every kind at rev. It fails only when ctx is done.
func (p *Pipeline) ExtractRevision(ctx context.Context, rev string, kinds []sources.Kind) (RevisionSnapshots, error) {
	rs := RevisionSnapshots{Revision: rev, Kinds: make([]KindSnapshot, 0, len(kinds))}
	for _, k := range kinds {
		if err := ctx.Err(); err != nil {
			return RevisionSnapshots{}, fmt.Errorf("extract %s at %s: %w", k.Name, rev, err)
		}
		snap, out := p.Extractor.Extract(ctx, rev, k)
		rs.Kinds = append(rs.Kinds, KindSnapshot{Kind: k.Name, Entries: snap.Entries(), Outcome: out})
	}
	return rs, nil
}

// History fetches and parses the change history at rev. A missing file or
// a malformed call yields an empty history and a logged warning, and the
// error is returned for reporting.
func (p *Pipeline) History(ctx context.Context, rev, path, keyword string) (changes.History, error) {
	ctx, span := observability.StartHistorySpan(ctx, rev, path)
	defer span.End()

	source, err := p.Extractor.Repo.Fetch(ctx, rev, path)
	if err != nil {
		p.logger().Warn("change history unavailable",
			"revision", rev, "path", path, "missing", errors.Is(err, vcs.ErrNotFound), "error", err)
		p.Journal.LogHistory(rev, 0, err)
		return changes.History{}, err
	}
	h, err := changes.Parse(source, keyword)
	if err != nil {
		observability.RecordError(span, err)
		p.logger().Warn("change history not parsed", "revision", rev, "path", path, "error", err)
		p.Journal.LogHistory(rev, 0, err)
		return changes.History{}, err
	}
	p.Journal.LogHistory(rev, len(h), nil)
	return h, nil
}
