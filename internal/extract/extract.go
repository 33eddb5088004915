// Package extract turns one source kind at one revision into a classified
// snapshot. Every recoverable failure degrades to an empty snapshot with a
// status describing what went wrong.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/efebarandurmaz/lineage/internal/classify"
	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/macro"
	"github.com/efebarandurmaz/lineage/internal/observability"
	"github.com/efebarandurmaz/lineage/internal/snapshot"
	"github.com/efebarandurmaz/lineage/internal/sources"
	"github.com/efebarandurmaz/lineage/internal/vcs"
)

// Status is the outcome class of one extraction.
type Status string

const (
	StatusOK            Status = "ok"
	StatusMissingSource Status = "missing_source"
	StatusMissingBlock  Status = "missing_block"
	StatusParseError    Status = "parse_error"
	StatusFetchError    Status = "fetch_error"
)

// Degraded reports whether the status produced no declarations by failure
// rather than by content.
func (s Status) Degraded() bool { return s != StatusOK }

// Outcome describes a single extraction.
type Outcome struct {
	Revision     string        `json:"revision"`
	Kind         string        `json:"kind"`
	Path         string        `json:"path"`
	Status       Status        `json:"status"`
	Declarations int           `json:"declarations"`
	Skipped      int           `json:"skipped_calls"`
	Duplicates   int           `json:"duplicates"`
	Cached       bool          `json:"cached"`
	Duration     time.Duration `json:"duration_ns"`
	Detail       string        `json:"error,omitempty"`
	Err          error         `json:"-"`
}

// Extractor fetches, parses and classifies declarations. Only Repo is
// required.
type Extractor struct {
	Repo       vcs.Repository
	Classifier *classify.Classifier
	Cache      snapshot.Cache
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Journal    *observability.Journal
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Extract builds the snapshot of kind at rev. The returned snapshot is never
// nil. Names declared more than once keep the last declaration.
func (e *Extractor) Extract(ctx context.Context, rev string, kind sources.Kind) (*ir.Snapshot, Outcome) {
	start := time.Now()
	ctx, span := observability.StartExtractSpan(ctx, rev, kind.Name, kind.Path)
	defer span.End()

	out := Outcome{Revision: rev, Kind: kind.Name, Path: kind.Path}
	snap := ir.NewSnapshot()

	var fetchTime time.Duration
	block, err := e.block(ctx, rev, kind, &out, &fetchTime)
	if err != nil {
		out.Err = err
		out.Detail = err.Error()
		observability.RecordError(span, err)
	}
	if block != nil {
		out.Skipped = block.Skipped
		c := e.Classifier
		if c == nil {
			c = &classify.Classifier{}
		}
		for _, d := range block.Declarations {
			if _, dup := snap.Get(d.Name); dup {
				out.Duplicates++
			}
			snap.Put(c.Classify(d, kind.DocsURL(d.Name)))
		}
	}
	out.Declarations = snap.Len()
	out.Duration = time.Since(start)

	if out.Status.Degraded() {
		e.logger().Warn("extraction degraded",
			"revision", rev, "kind", kind.Name, "path", kind.Path,
			"status", out.Status, "error", out.Err)
	} else {
		e.logger().Debug("extracted",
			"revision", rev, "kind", kind.Name,
			"declarations", out.Declarations, "skipped", out.Skipped, "cached", out.Cached)
	}
	observability.RecordExtractResult(span, string(out.Status), out.Declarations, out.Skipped, out.Cached)
	e.Metrics.ObserveExtraction(kind.Name, string(out.Status), out.Declarations, out.Skipped, fetchTime)
	e.Journal.LogExtract(rev, kind.Name, string(out.Status), out.Declarations, out.Skipped, out.Cached, out.Duration, out.Err)
	return snap, out
}

// block returns the parsed block, consulting the cache first. It sets
// out.Status and out.Cached. A nil block means zero declarations.
func (e *Extractor) block(ctx context.Context, rev string, kind sources.Kind, out *Outcome, fetchTime *time.Duration) (*snapshot.Block, error) {
	fetchStart := time.Now()
	source, err := e.Repo.Fetch(ctx, rev, kind.Path)
	*fetchTime = time.Since(fetchStart)
	switch {
	case errors.Is(err, vcs.ErrNotFound):
		out.Status = StatusMissingSource
		return nil, err
	case err != nil:
		out.Status = StatusFetchError
		return nil, err
	}

	key := snapshot.Key(kind.Macro, kind.Terminator, source)
	if e.Cache != nil {
		b, ok, err := e.Cache.Get(ctx, key)
		if err != nil {
			e.logger().Warn("block cache read failed", "revision", rev, "kind", kind.Name, "error", err)
		}
		e.Metrics.ObserveCacheLookup(ok)
		if ok {
			out.Cached = true
			out.Status = blockStatus(b)
			return b, nil
		}
	}

	b := &snapshot.Block{Key: key, Macro: kind.Macro, CreatedAt: time.Now().UTC()}
	text, found := macro.LocateBlock(source, kind.Macro, kind.Terminator)
	if found {
		parsed, err := macro.ParseDeclarations(text)
		if err != nil {
			out.Status = StatusParseError
			return nil, err
		}
		b.Found = true
		b.Declarations = parsed.Declarations
		b.Skipped = parsed.Skipped
	}
	if e.Cache != nil {
		if err := e.Cache.Put(ctx, b); err != nil {
			e.logger().Warn("block cache write failed", "revision", rev, "kind", kind.Name, "error", err)
		}
	}
	out.Status = blockStatus(b)
	return b, nil
}

func blockStatus(b *snapshot.Block) Status {
	if !b.Found {
		return StatusMissingBlock
	}
	return StatusOK
}
