package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/lineage/internal/pipeline"
	"github.com/efebarandurmaz/lineage/internal/revision"
	"github.com/efebarandurmaz/lineage/internal/sources"
)

// ExtractionInput holds the workflow parameters.
type ExtractionInput struct {
	Revisions  revision.Options
	Kinds      []sources.Kind
	OutputPath string

	// Change history (optional)
	HistoryPath    string
	HistoryKeyword string

	// ExportGraph also writes the result to the worker's graph store.
	ExportGraph bool
}

// ExtractionOutput holds the workflow result.
type ExtractionOutput struct {
	OutputPath string
	Size       int
	Revisions  []string
	Settings   map[string]int

	// Degraded counts kind extractions that did not succeed.
	Degraded        int
	HistoryAttached int
	HistoryError    string
	GraphEdges      int
}

// ExtractionWorkflow runs the registry pipeline as a workflow. Activities run
// one at a time and folding happens here, so the result is the same as a
// local run over the same revisions.
func ExtractionWorkflow(ctx workflow.Context, input ExtractionInput) (*ExtractionOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	if len(input.Kinds) == 0 {
		return nil, temporal.NewNonRetryableApplicationError("no source kinds configured", "Config", nil)
	}

	// Step 1: revisions
	var revs []string
	if err := workflow.ExecuteActivity(ctx, ResolveRevisionsActivity, input.Revisions).Get(ctx, &revs); err != nil {
		return nil, fmt.Errorf("resolve revisions: %w", err)
	}

	// Step 2: extract and fold, oldest first
	kindNames := make([]string, len(input.Kinds))
	for i, k := range input.Kinds {
		kindNames[i] = k.Name
	}
	output := &ExtractionOutput{
		OutputPath: input.OutputPath,
		Revisions:  revs,
		Settings:   make(map[string]int, len(kindNames)),
	}
	b := pipeline.NewBuilder(kindNames)
	for _, rev := range revs {
		var rs pipeline.RevisionSnapshots
		if err := workflow.ExecuteActivity(ctx, ExtractRevisionActivity, rev, input.Kinds).Get(ctx, &rs); err != nil {
			return nil, fmt.Errorf("extract %s: %w", rev, err)
		}
		for _, ks := range rs.Kinds {
			if ks.Outcome.Status.Degraded() {
				output.Degraded++
			}
		}
		b.Add(rs)
	}
	doc := b.Document()
	for _, k := range kindNames {
		reg, _ := doc.Registry(k)
		output.Settings[k] = len(reg.Settings)
	}

	// Step 3: change history at the newest revision
	if input.HistoryPath != "" && len(revs) > 0 {
		var hr HistoryResult
		if err := workflow.ExecuteActivity(ctx, FetchHistoryActivity, doc.Latest(), input.HistoryPath, input.HistoryKeyword).Get(ctx, &hr); err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		output.HistoryError = hr.Error
		output.HistoryAttached = hr.History.Attach(doc)
		if hr.Error != "" {
			logger.Warn("change history unavailable", "revision", hr.Revision, "error", hr.Error)
		}
	}

	// Step 4: output
	var out OutputResult
	if err := workflow.ExecuteActivity(ctx, WriteOutputActivity, input.OutputPath, doc).Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	output.Size = out.Size

	// Step 5: optional graph export
	if input.ExportGraph {
		if err := workflow.ExecuteActivity(ctx, ExportGraphActivity, doc).Get(ctx, &output.GraphEdges); err != nil {
			return nil, fmt.Errorf("export graph: %w", err)
		}
	}

	logger.Info("extraction complete", "revisions", len(revs), "degraded", output.Degraded)
	return output, nil
}
