package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{
		// Extraction activities share one repository checkout.
		MaxConcurrentActivityExecutionSize: 1,
	})

	w.RegisterWorkflow(ExtractionWorkflow)
	w.RegisterActivity(ResolveRevisionsActivity)
	w.RegisterActivity(ExtractRevisionActivity)
	w.RegisterActivity(FetchHistoryActivity)
	w.RegisterActivity(WriteOutputActivity)
	w.RegisterActivity(ExportGraphActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}
