package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultShutdownConfig(t *testing.T) {
	cfg := DefaultShutdownConfig()
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(cfg.Signals))
	}
}

func TestShutdownHandler_HookPriority(t *testing.T) {
	h := NewShutdownHandler(nil)

	h.RegisterHook("low", 100, func(ctx context.Context) error { return nil })
	h.RegisterHook("high", 10, func(ctx context.Context) error { return nil })
	h.Add(JournalShutdownHook(func() error { return nil }))
	h.Add(TemporalWorkerShutdownHook(func() {}))

	want := []string{"high", "temporal-worker", "journal", "low"}
	for i, hook := range h.hooks {
		if hook.Name != want[i] {
			t.Fatalf("hook %d: expected %s, got %s", i, want[i], hook.Name)
		}
	}
}

func TestShutdownHandler_RunsHooksInOrder(t *testing.T) {
	var buf bytes.Buffer
	h := NewShutdownHandler(&ShutdownConfig{
		Timeout: 5 * time.Second,
		Logger:  slog.New(slog.NewTextHandler(&buf, nil)),
	})

	var mu sync.Mutex
	var order []string
	record := func(name string, err error) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}

	h.Add(GraphShutdownHook(record("graph", nil)))
	h.Add(TracingShutdownHook(record("tracing", errors.New("exporter unreachable"))))
	h.Add(TemporalWorkerShutdownHook(func() { record("temporal-worker", nil)(context.Background()) }))
	h.Add(CacheShutdownHook(func() error { return record("block-cache", nil)(context.Background()) }))

	h.Start()
	h.Shutdown()
	h.Shutdown() // second call is a no-op

	if !h.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown timed out")
	}

	want := []string{"temporal-worker", "block-cache", "tracing", "graph"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, order)
	}
	if !strings.Contains(buf.String(), "hook=tracing") {
		t.Fatalf("expected failed hook to be logged, got %q", buf.String())
	}
}

func TestShutdownHandler_ShutdownBeforeStart(t *testing.T) {
	h := NewShutdownHandler(nil)
	h.Shutdown()
	if h.WaitWithTimeout(50 * time.Millisecond) {
		t.Fatal("expected no shutdown before Start")
	}
}

func TestGracefulServer_RegisterHook(t *testing.T) {
	g := NewGracefulServer(&HealthConfig{Version: "test"}, nil)
	g.RegisterHook("custom", 50, func(ctx context.Context) error { return nil })

	if len(g.Shutdown.hooks) != 2 {
		t.Fatalf("expected health hook plus custom, got %d", len(g.Shutdown.hooks))
	}
	if g.Shutdown.hooks[0].Name != "health-server" {
		t.Fatalf("expected health-server first, got %s", g.Shutdown.hooks[0].Name)
	}
}
