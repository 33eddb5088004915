package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	temporalclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/lineage/internal/app"
	"github.com/efebarandurmaz/lineage/internal/config"
	"github.com/efebarandurmaz/lineage/internal/explorer"
	"github.com/efebarandurmaz/lineage/internal/graph"
	"github.com/efebarandurmaz/lineage/internal/observability"
	"github.com/efebarandurmaz/lineage/internal/pipeline"
	"github.com/efebarandurmaz/lineage/internal/query"
	"github.com/efebarandurmaz/lineage/internal/server"
	"github.com/efebarandurmaz/lineage/internal/snapshot"
	temporalmod "github.com/efebarandurmaz/lineage/internal/temporal"
)

// setup loads configuration and installs the configured logger as default.
func setup(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		a.Logger.Warn("shutdown incomplete", "error", err)
	}
}

func runExtract(ctx context.Context, configPath string, revs revisionFlags, outputPath, eventsPath string, withGraph, jsonReport bool) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	revs.apply(&cfg.Revisions)
	if outputPath != "" {
		cfg.Output.Path = outputPath
	}
	if eventsPath != "" {
		cfg.Output.Events = eventsPath
	}

	a, err := app.New(ctx, cfg, logger, app.Options{RunID: uuid.NewString(), WithGraph: withGraph})
	if err != nil {
		return err
	}
	defer closeApp(a)

	opts, err := a.RevisionOptions()
	if err != nil {
		return err
	}
	revList, err := a.Resolver.Resolve(ctx, opts)
	if err != nil {
		return err
	}

	res, err := a.Pipeline.Run(ctx, a.RunOptions(revList))
	if err != nil {
		return err
	}

	n, err := pipeline.WriteFile(cfg.Output.Path, res.Document)
	if err != nil {
		return err
	}
	a.Journal.LogOutput(cfg.Output.Path, n)
	res.Run.OutputPath = cfg.Output.Path
	res.Run.OutputSize = n

	if withGraph {
		if a.Graph == nil {
			logger.Warn("graph export skipped: no graph store available")
		} else if _, err := graph.Export(ctx, a.Graph, res.Document, logger); err != nil {
			return fmt.Errorf("graph export: %w", err)
		}
	}

	if jsonReport {
		data, err := res.Run.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		res.Run.PrintSummary(os.Stdout)
	}
	return nil
}

func runVersions(ctx context.Context, w io.Writer, configPath string, revs revisionFlags) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	revs.apply(&cfg.Revisions)

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer closeApp(a)

	opts, err := a.RevisionOptions()
	if err != nil {
		return err
	}
	revList, err := a.Resolver.Resolve(ctx, opts)
	if err != nil {
		return err
	}
	for _, rev := range revList {
		fmt.Fprintln(w, rev)
	}
	return nil
}

func runDiff(w io.Writer, inputPath, kind, from, to string, jsonOutput bool) error {
	doc, err := pipeline.Load(inputPath)
	if err != nil {
		return err
	}
	diff, err := query.Diff(doc, kind, from, to)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	}

	fmt.Fprintf(w, "%s: %s -> %s\n", diff.Kind, diff.From, diff.To)
	for _, sd := range diff.Settings {
		switch sd.Type {
		case snapshot.DiffAdded:
			fmt.Fprintf(w, "  + %-50s default=%s tier=%s\n", sd.Name, sd.New.Default, sd.New.Tier)
		case snapshot.DiffRemoved:
			fmt.Fprintf(w, "  - %s\n", sd.Name)
		case snapshot.DiffModified:
			fmt.Fprintf(w, "  ~ %-50s", sd.Name)
			if sd.DefaultChanged {
				fmt.Fprintf(w, " default %s -> %s", sd.Old.Default, sd.New.Default)
			}
			if sd.TierChanged {
				fmt.Fprintf(w, " tier %s -> %s", sd.Old.Tier, sd.New.Tier)
			}
			if sd.ImportanceChanged {
				fmt.Fprintf(w, " important %t -> %t", sd.Old.Important, sd.New.Important)
			}
			fmt.Fprintln(w)
		}
	}
	s := diff.Summary
	fmt.Fprintf(w, "%d added, %d removed, %d default changes, %d tier changes, %d importance changes\n",
		s.Added, s.Removed, s.DefaultChanged, s.TierChanged, s.ImportanceChanged)
	return nil
}

func runShow(w io.Writer, inputPath, name string) error {
	doc, err := pipeline.Load(inputPath)
	if err != nil {
		return err
	}
	lifecycles, err := query.Lookup(doc, name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(lifecycles)
}

func runServe(ctx context.Context, configPath, inputPath, addr, healthAddr string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	if inputPath == "" {
		inputPath = cfg.Output.Path
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if healthAddr == "" {
		healthAddr = cfg.Server.HealthAddr
	}

	store := explorer.NewStore(inputPath)
	if err := store.Load(); err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	api, err := explorer.New(&explorer.Config{DiffCacheSize: cfg.Server.DiffCacheSize}, store, metrics, logger)
	if err != nil {
		return err
	}

	health := server.NewHealthServer(&server.HealthConfig{Version: app.Version})
	health.RegisterCheck("registry", server.RegistryHealthChecker(store.Info))
	health.SetReady(true)

	n, latest := store.Info()
	logger.Info("serving registry", "path", inputPath, "revisions", n, "latest", latest, "addr", addr, "health_addr", healthAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(gctx, addr, api.Handler()) })
	g.Go(func() error { return server.Serve(gctx, healthAddr, health.Handler()) })
	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func runSubmit(ctx context.Context, w io.Writer, configPath string, revs revisionFlags, outputPath string, withGraph bool) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	revs.apply(&cfg.Revisions)
	if outputPath != "" {
		cfg.Output.Path = outputPath
	}
	opts, err := cfg.Revisions.Options()
	if err != nil {
		return err
	}

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:                       "lineage-" + uuid.NewString(),
		TaskQueue:                cfg.Temporal.TaskQueue,
		WorkflowExecutionTimeout: 6 * time.Hour,
	}, temporalmod.ExtractionWorkflow, temporalmod.ExtractionInput{
		Revisions:      opts,
		Kinds:          cfg.Sources,
		OutputPath:     cfg.Output.Path,
		HistoryPath:    cfg.History.Path,
		HistoryKeyword: cfg.History.Keyword,
		ExportGraph:    withGraph,
	})
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	logger.Info("workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var out temporalmod.ExtractionOutput
	if err := run.Get(ctx, &out); err != nil {
		return fmt.Errorf("workflow %s: %w", run.GetID(), err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
