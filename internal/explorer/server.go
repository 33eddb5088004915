// Package explorer serves a registry document over HTTP.
package explorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/observability"
	"github.com/efebarandurmaz/lineage/internal/query"
	"github.com/efebarandurmaz/lineage/internal/snapshot"
)

// Config holds explorer configuration.
type Config struct {
	// DiffCacheSize bounds the number of cached diffs (default: 128)
	DiffCacheSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{DiffCacheSize: 128}
}

type diffKey struct {
	generation uint64
	kind       string
	from       string
	to         string
}

// Explorer is the registry HTTP API.
type Explorer struct {
	store   *Store
	diffs   *lru.Cache[diffKey, *snapshot.RegistryDiff]
	metrics *observability.Metrics
	logger  *slog.Logger
	router  chi.Router
}

// New creates a fully wired explorer. metrics may be nil.
func New(config *Config, store *Store, metrics *observability.Metrics, logger *slog.Logger) (*Explorer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	size := config.DiffCacheSize
	if size <= 0 {
		size = DefaultConfig().DiffCacheSize
	}
	diffs, err := lru.New[diffKey, *snapshot.RegistryDiff](size)
	if err != nil {
		return nil, fmt.Errorf("creating diff cache: %w", err)
	}

	e := &Explorer{
		store:   store,
		diffs:   diffs,
		metrics: metrics,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(e.observe)

	r.Route("/api", func(r chi.Router) {
		r.Get("/versions", e.handleVersions)
		r.Get("/settings/{kind}", e.handleSettings)
		r.Get("/settings/{kind}/{name}", e.handleSetting)
		r.Get("/settings/{kind}/{name}/current", e.handleCurrent)
		r.Get("/lookup/{name}", e.handleLookup)
		r.Get("/diff", e.handleDiff)
		r.Post("/reload", e.handleReload)
	})
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}
	e.router = r

	return e, nil
}

// Handler returns the HTTP handler.
func (e *Explorer) Handler() http.Handler {
	return e.router
}

// document returns the loaded document or writes 503.
func (e *Explorer) document(w http.ResponseWriter) (*ir.Document, uint64, bool) {
	doc, gen := e.store.Document()
	if doc == nil {
		respondError(w, http.StatusServiceUnavailable, "no registry loaded")
		return nil, 0, false
	}
	return doc, gen, true
}

// handleVersions handles GET /api/versions
func (e *Explorer) handleVersions(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := e.document(w)
	if !ok {
		return
	}

	latest := doc.Latest()
	resp := VersionsResponse{
		Versions:    doc.Versions,
		GeneratedBy: doc.GeneratedBy,
		LoadedAt:    e.store.LoadedAt(),
	}
	for _, kind := range doc.Kinds() {
		reg, _ := doc.Registry(kind)
		summary := KindSummary{Kind: kind, Settings: len(reg.Settings)}
		for _, s := range reg.Settings {
			if s.PresentIn(latest) {
				summary.Live++
			}
		}
		resp.Kinds = append(resp.Kinds, summary)
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleSettings handles GET /api/settings/{kind}. The optional present_in
// parameter keeps only settings declared at that revision.
func (e *Explorer) handleSettings(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := e.document(w)
	if !ok {
		return
	}

	kind := chi.URLParam(r, "kind")
	reg, found := doc.Registry(kind)
	if !found {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no registry for kind %q", kind))
		return
	}

	settings := reg.Settings
	if rev := r.URL.Query().Get("present_in"); rev != "" {
		settings = make([]*ir.Setting, 0, len(reg.Settings))
		for _, s := range reg.Settings {
			if s.PresentIn(rev) {
				settings = append(settings, s)
			}
		}
	}
	respondJSON(w, http.StatusOK, SettingsResponse{Kind: kind, Count: len(settings), Settings: settings})
}

// handleSetting handles GET /api/settings/{kind}/{name}
func (e *Explorer) handleSetting(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := e.document(w)
	if !ok {
		return
	}

	kind := chi.URLParam(r, "kind")
	reg, found := doc.Registry(kind)
	if !found {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no registry for kind %q", kind))
		return
	}
	name := chi.URLParam(r, "name")
	s, found := reg.Lookup(name)
	if !found {
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown setting %s/%s", kind, name))
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// handleCurrent handles GET /api/settings/{kind}/{name}/current
func (e *Explorer) handleCurrent(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := e.document(w)
	if !ok {
		return
	}

	kind := chi.URLParam(r, "kind")
	if _, found := doc.Registry(kind); !found {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no registry for kind %q", kind))
		return
	}
	st, err := query.Current(doc, kind, chi.URLParam(r, "name"))
	if errors.Is(err, query.ErrUnknownSetting) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleLookup handles GET /api/lookup/{name}
func (e *Explorer) handleLookup(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := e.document(w)
	if !ok {
		return
	}

	lifecycles, err := query.Lookup(doc, chi.URLParam(r, "name"))
	if errors.Is(err, query.ErrUnknownSetting) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, lifecycles)
}

// handleDiff handles GET /api/diff?kind=&from=&to=
func (e *Explorer) handleDiff(w http.ResponseWriter, r *http.Request) {
	doc, gen, ok := e.document(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	key := diffKey{generation: gen, kind: q.Get("kind"), from: q.Get("from"), to: q.Get("to")}
	if key.kind == "" || key.from == "" || key.to == "" {
		respondError(w, http.StatusBadRequest, "kind, from and to are required")
		return
	}

	if diff, hit := e.diffs.Get(key); hit {
		e.metrics.ObserveCacheLookup(true)
		respondJSON(w, http.StatusOK, diff)
		return
	}
	e.metrics.ObserveCacheLookup(false)

	if _, found := doc.Registry(key.kind); !found {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no registry for kind %q", key.kind))
		return
	}
	diff, err := query.Diff(doc, key.kind, key.from, key.to)
	if errors.Is(err, snapshot.ErrUnknownRevision) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	e.diffs.Add(key, diff)
	respondJSON(w, http.StatusOK, diff)
}

// handleReload handles POST /api/reload - re-reads the registry from disk
func (e *Explorer) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := e.store.Load(); err != nil {
		e.logger.Warn("registry reload failed", "error", err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("reload failed: %v", err))
		return
	}
	e.diffs.Purge()

	n, latest := e.store.Info()
	e.logger.Info("registry reloaded", "revisions", n, "latest", latest)
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"revisions": n,
		"latest":    latest,
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe logs each request and counts it by route pattern and status.
func (e *Explorer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = strings.TrimSuffix(p, "/")
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		e.metrics.ObserveRequest(route, status)
		e.logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", status, "duration", time.Since(start))
	})
}
