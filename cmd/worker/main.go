package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/lineage/internal/app"
	"github.com/efebarandurmaz/lineage/internal/config"
	"github.com/efebarandurmaz/lineage/internal/observability"
	"github.com/efebarandurmaz/lineage/internal/server"
	temporalmod "github.com/efebarandurmaz/lineage/internal/temporal"
)

func main() {
	_ = godotenv.Load()

	configPath := "lineage.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, app.Options{RunID: "worker-" + uuid.NewString(), WithGraph: true})
	if err != nil {
		log.Fatalf("wiring: %v", err)
	}

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Resolver: a.Resolver,
		Pipeline: a.Pipeline,
		Graph:    a.Graph,
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	gs := server.NewGracefulServer(&server.HealthConfig{Version: app.Version}, &server.ShutdownConfig{
		Timeout: server.DefaultShutdownConfig().Timeout,
		Signals: server.DefaultShutdownConfig().Signals,
		Logger:  logger,
	})
	gs.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	if a.Redis != nil {
		gs.Health.RegisterCheck("cache", server.CacheHealthChecker(a.Redis.Ping))
	}
	if a.Graph != nil {
		gs.Health.RegisterCheck("graph", server.GraphHealthChecker(a.Graph.Ping))
	}

	gs.Shutdown.Add(server.TemporalWorkerShutdownHook(w.Stop))
	gs.RegisterHook("temporal-client", 30, func(ctx context.Context) error {
		c.Close()
		return nil
	})
	if path := cfg.Metrics.Textfile; path != "" {
		gs.RegisterHook("metrics-textfile", 60, func(ctx context.Context) error {
			return a.Metrics.WriteTextfile(path)
		})
	}
	if a.Redis != nil {
		gs.Shutdown.Add(server.CacheShutdownHook(a.Redis.Close))
	}
	if a.Graph != nil {
		gs.Shutdown.Add(server.GraphShutdownHook(a.Graph.Close))
	}
	gs.Shutdown.Add(server.TracingShutdownHook(a.Tracing.Shutdown))
	gs.Shutdown.Add(server.JournalShutdownHook(a.Journal.Close))

	gs.Start(cfg.Server.HealthAddr)
	fmt.Printf("Worker started on task queue: %s (health on %s)\n", cfg.Temporal.TaskQueue, cfg.Server.HealthAddr)

	gs.Wait()
	fmt.Println("Worker stopped")
}
