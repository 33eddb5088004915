package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/efebarandurmaz/lineage/internal/config"
	"github.com/efebarandurmaz/lineage/internal/snapshot"
	"github.com/efebarandurmaz/lineage/internal/sources"
	"github.com/efebarandurmaz/lineage/internal/vcs"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryRepo() *vcs.Memory {
	repo := vcs.NewMemory()
	repo.Commit("v1", time.Unix(100, 0), map[string]string{
		sources.Defaults()[0].Path: "#define COMMON_SETTINGS(DECLARE, ALIAS) \\\n" +
			"    DECLARE(UInt64, max_threads, 0, \"Threads.\", 0) \\\n\n" +
			"#define OBSOLETE_SETTINGS(M, ALIAS) \\\n",
	})
	return repo
}

func TestNew_RunsPipelineAndWritesTextfile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Cache.Dir = filepath.Join(dir, "blocks")
	cfg.Metrics.Textfile = filepath.Join(dir, "lineage.prom")
	cfg.Output.Events = filepath.Join(dir, "events.jsonl")

	ctx := context.Background()
	a, err := New(ctx, cfg, quietLogger(), Options{Repo: memoryRepo(), RunID: "test-run"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := a.Pipeline.Extractor.Cache.(*snapshot.Memo); !ok {
		t.Fatalf("expected memo block cache, got %T", a.Pipeline.Extractor.Cache)
	}

	res, err := a.Pipeline.Run(ctx, a.RunOptions([]string{"v1"}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	reg, _ := res.Document.Registry("settings")
	if _, ok := reg.Lookup("max_threads"); !ok {
		t.Fatal("max_threads missing")
	}

	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	if err != nil {
		t.Fatalf("textfile: %v", err)
	}
	if !strings.Contains(string(prom), "lineage_extractions_total") {
		t.Error("textfile missing extraction counter")
	}
	events, err := os.ReadFile(cfg.Output.Events)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(string(events), "test-run") {
		t.Error("journal missing run id")
	}
}

func TestNew_NoMemo(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.MemoSize = 0

	a, err := New(context.Background(), cfg, quietLogger(), Options{Repo: memoryRepo()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())
	if a.Pipeline.Extractor.Cache != nil {
		t.Fatalf("expected no block cache, got %T", a.Pipeline.Extractor.Cache)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		repo   vcs.Repository
	}{
		{"not a repository", func(c *config.Config) { c.Repo.Path = t.TempDir() }, nil},
		{"invalid source kind", func(c *config.Config) { c.Sources = []sources.Kind{{Name: "settings"}} }, memoryRepo()},
		{"missing categories", func(c *config.Config) { c.Categories.File = filepath.Join(t.TempDir(), "none.yaml") }, memoryRepo()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			if _, err := New(context.Background(), cfg, quietLogger(), Options{Repo: tt.repo}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_FailureShutsDownTracing(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"journal", func(c *config.Config) { c.Output.Events = filepath.Join(blocker, "events.jsonl") }},
		{"block store", func(c *config.Config) { c.Cache.Dir = blocker }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Tracing.Endpoint = "127.0.0.1:1"
			tt.mutate(cfg)

			ctx := context.Background()
			if _, err := New(ctx, cfg, quietLogger(), Options{Repo: memoryRepo()}); err == nil {
				t.Fatal("expected error")
			}
			_, span := otel.Tracer("test").Start(ctx, "after-failure")
			defer span.End()
			if span.IsRecording() {
				t.Error("tracer provider still recording after failed New")
			}
		})
	}
}

func TestNew_UnreachableRedisIsSkipped(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.RedisURL = "redis://127.0.0.1:1/0"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, err := New(ctx, cfg, quietLogger(), Options{Repo: memoryRepo()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())
	if a.Redis != nil {
		t.Fatal("expected redis to be left out")
	}
}
