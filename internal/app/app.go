// Package app assembles the lineage components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/efebarandurmaz/lineage/internal/classify"
	"github.com/efebarandurmaz/lineage/internal/config"
	"github.com/efebarandurmaz/lineage/internal/extract"
	"github.com/efebarandurmaz/lineage/internal/graph"
	graphneo4j "github.com/efebarandurmaz/lineage/internal/graph/neo4j"
	"github.com/efebarandurmaz/lineage/internal/observability"
	"github.com/efebarandurmaz/lineage/internal/pipeline"
	"github.com/efebarandurmaz/lineage/internal/revision"
	"github.com/efebarandurmaz/lineage/internal/snapshot"
	"github.com/efebarandurmaz/lineage/internal/sources"
	"github.com/efebarandurmaz/lineage/internal/vcs"
)

// Version is reported by health endpoints and traces.
const Version = "0.1.0"

// App holds the wired components of one process.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Repo     vcs.Repository
	Sources  *sources.Registry
	Resolver *revision.Resolver
	Pipeline *pipeline.Pipeline
	Metrics  *observability.Metrics
	Journal  *observability.Journal
	Tracing  *observability.TracerProvider

	// Optional collaborators, nil when not configured.
	Redis *snapshot.RedisCache
	Graph graph.Repository
}

// Options adjusts what New wires.
type Options struct {
	// Repo replaces the git repository at cfg.Repo.Path.
	Repo vcs.Repository
	// RunID tags journal events.
	RunID string
	// WithGraph connects to the graph store when one is configured.
	WithGraph bool
}

// New wires every component described by cfg. Optional collaborators that
// fail to connect are logged and left out. The repository, the source kinds,
// the classification table and the journal are required.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Repo: opts.Repo}

	if a.Repo == nil {
		repo, err := vcs.Open(cfg.Repo.Path)
		if err != nil {
			return nil, err
		}
		a.Repo = repo
	}

	a.Sources = sources.NewRegistry()
	for _, k := range cfg.Sources {
		if err := a.Sources.Register(k); err != nil {
			return nil, err
		}
	}

	var table *classify.Table
	if cfg.Categories.File != "" {
		t, err := classify.LoadTable(cfg.Categories.File)
		if err != nil {
			return nil, err
		}
		table = t
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "lineage",
		ServiceVersion: Version,
		Environment:    "production",
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.Tracing = tp
	defer func() {
		if err != nil {
			if cerr := a.release(ctx); cerr != nil {
				logger.Warn("releasing partially wired app", "error", cerr)
			}
		}
	}()

	journal, err := observability.OpenJournal(cfg.Output.Events, opts.RunID)
	if err != nil {
		return nil, err
	}
	a.Journal = journal
	a.Metrics = observability.NewMetrics()

	cache, err := a.blockCache(ctx)
	if err != nil {
		return nil, err
	}

	if opts.WithGraph && cfg.Graph.URI != "" {
		g, err := graphneo4j.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
		if err != nil {
			logger.Warn("graph store unavailable", "uri", cfg.Graph.URI, "error", err)
		} else {
			a.Graph = g
		}
	}

	a.Resolver = &revision.Resolver{Repo: a.Repo, Logger: logger}
	a.Pipeline = &pipeline.Pipeline{
		Extractor: &extract.Extractor{
			Repo:       a.Repo,
			Classifier: &classify.Classifier{Table: table},
			Cache:      cache,
			Logger:     logger,
			Metrics:    a.Metrics,
			Journal:    journal,
		},
		Logger:  logger,
		Metrics: a.Metrics,
		Journal: journal,
	}
	return a, nil
}

// blockCache builds the parsed block cache: an LRU memo in front of Redis
// when configured, else in front of the on-disk store when configured.
func (a *App) blockCache(ctx context.Context) (snapshot.Cache, error) {
	cfg := a.Config.Cache
	var next snapshot.Cache

	switch {
	case cfg.RedisURL != "":
		r, err := snapshot.NewRedisCache(ctx, cfg.RedisURL, 0)
		if err != nil {
			a.Logger.Warn("redis cache unavailable", "error", err)
		} else {
			a.Redis = r
			next = r
		}
	case cfg.Dir != "":
		s, err := snapshot.NewStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open block store: %w", err)
		}
		next = s
	}

	if cfg.MemoSize <= 0 {
		return next, nil
	}
	return snapshot.NewMemo(cfg.MemoSize, next)
}

// RevisionOptions converts the configured revision sources.
func (a *App) RevisionOptions() (revision.Options, error) {
	return a.Config.Revisions.Options()
}

// RunOptions builds pipeline options for revs.
func (a *App) RunOptions(revs []string) pipeline.Options {
	return pipeline.Options{
		Revisions:      revs,
		Kinds:          a.Sources.All(),
		HistoryPath:    a.Config.History.Path,
		HistoryKeyword: a.Config.History.Keyword,
	}
}

// Close flushes metrics and releases every collaborator.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if path := a.Config.Metrics.Textfile; path != "" && a.Metrics != nil {
		if err := a.Metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	errs = append(errs, a.release(ctx))
	return errors.Join(errs...)
}

// release closes whatever collaborators have been opened so far.
func (a *App) release(ctx context.Context) error {
	var errs []error
	if a.Graph != nil {
		errs = append(errs, a.Graph.Close(ctx))
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Tracing != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		errs = append(errs, a.Tracing.Shutdown(shutdownCtx))
		cancel()
	}
	errs = append(errs, a.Journal.Close())
	return errors.Join(errs...)
}
