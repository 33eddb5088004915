package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/activity"

	"github.com/efebarandurmaz/lineage/internal/changes"
	"github.com/efebarandurmaz/lineage/internal/graph"
	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/pipeline"
	"github.com/efebarandurmaz/lineage/internal/revision"
	"github.com/efebarandurmaz/lineage/internal/sources"
)

// HistoryResult is the serializable result of FetchHistoryActivity. A
// missing or malformed history is reported in Error, not as a failure.
type HistoryResult struct {
	Revision string          `json:"revision"`
	History  changes.History `json:"history"`
	Error    string          `json:"error,omitempty"`
}

// OutputResult describes the written registry document.
type OutputResult struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Resolver *revision.Resolver
	Pipeline *pipeline.Pipeline
	// Graph is optional; ExportGraphActivity fails without it.
	Graph graph.Repository
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

var errNoDependencies = errors.New("temporal activities: dependencies not set")

// ResolveRevisionsActivity turns revision options into a chronological list.
func ResolveRevisionsActivity(ctx context.Context, opts revision.Options) ([]string, error) {
	if deps == nil || deps.Resolver == nil {
		return nil, errNoDependencies
	}
	revs, err := deps.Resolver.Resolve(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("resolve revisions: %w", err)
	}
	return revs, nil
}

// ExtractRevisionActivity extracts every kind at one revision. Degraded
// kinds are carried in their outcomes; only cancellation fails.
func ExtractRevisionActivity(ctx context.Context, rev string, kinds []sources.Kind) (pipeline.RevisionSnapshots, error) {
	if deps == nil || deps.Pipeline == nil {
		return pipeline.RevisionSnapshots{}, errNoDependencies
	}
	heartbeat(ctx, rev)
	return deps.Pipeline.ExtractRevision(ctx, rev, kinds)
}

// FetchHistoryActivity parses the change history at rev.
func FetchHistoryActivity(ctx context.Context, rev, path, keyword string) (HistoryResult, error) {
	if deps == nil || deps.Pipeline == nil {
		return HistoryResult{}, errNoDependencies
	}
	h, err := deps.Pipeline.History(ctx, rev, path, keyword)
	res := HistoryResult{Revision: rev, History: h}
	if err != nil {
		if ctx.Err() != nil {
			return HistoryResult{}, ctx.Err()
		}
		res.Error = err.Error()
	}
	return res, nil
}

// WriteOutputActivity writes the finished document to path.
func WriteOutputActivity(ctx context.Context, path string, doc *ir.Document) (OutputResult, error) {
	n, err := pipeline.WriteFile(path, doc)
	if err != nil {
		return OutputResult{}, err
	}
	if deps != nil && deps.Pipeline != nil {
		deps.Pipeline.Journal.LogOutput(path, n)
	}
	return OutputResult{Path: path, Size: n}, nil
}

// ExportGraphActivity writes the document to the graph store.
func ExportGraphActivity(ctx context.Context, doc *ir.Document) (int, error) {
	if deps == nil || deps.Graph == nil {
		return 0, errors.New("graph export: no graph repository configured")
	}
	var logger *slog.Logger
	if deps.Pipeline != nil {
		logger = deps.Pipeline.Logger
	}
	stats, err := graph.Export(ctx, deps.Graph, doc, logger)
	if err != nil {
		return 0, err
	}
	return stats.Edges, nil
}

// heartbeat records progress when running inside an activity.
func heartbeat(ctx context.Context, details ...any) {
	if activity.IsActivity(ctx) {
		activity.RecordHeartbeat(ctx, details...)
	}
}
