package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/efebarandurmaz/lineage/internal/changes"
	"github.com/efebarandurmaz/lineage/internal/revision"
	"github.com/efebarandurmaz/lineage/internal/sources"
)

// Config holds all application configuration.
type Config struct {
	Repo       RepoConfig       `mapstructure:"repo"`
	Revisions  RevisionsConfig  `mapstructure:"revisions"`
	Categories CategoriesConfig `mapstructure:"categories"`
	Output     OutputConfig     `mapstructure:"output"`
	Sources    []sources.Kind   `mapstructure:"sources"`
	History    HistoryConfig    `mapstructure:"history"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Server     ServerConfig     `mapstructure:"server"`
}

type RepoConfig struct {
	Path string `mapstructure:"path"`
}

type RevisionsConfig struct {
	Explicit            []string `mapstructure:"explicit"`
	File                string   `mapstructure:"file"`
	Changelog           string   `mapstructure:"changelog"`
	Minors              int      `mapstructure:"minors"`
	Channel             string   `mapstructure:"channel"`
	AnnouncementPattern string   `mapstructure:"announcement_pattern"`
	TagPattern          string   `mapstructure:"tag_pattern"`
}

// Options converts the revision settings into resolver options.
func (r RevisionsConfig) Options() (revision.Options, error) {
	ch, err := revision.ParseChannel(r.Channel)
	if err != nil {
		return revision.Options{}, err
	}
	return revision.Options{
		Explicit:     r.Explicit,
		VersionsFile: r.File,
		Changelog:    r.Changelog,
		Minors:       r.Minors,
		Channel:      ch,
		Announcement: r.AnnouncementPattern,
		TagPattern:   r.TagPattern,
	}, nil
}

type CategoriesConfig struct {
	File string `mapstructure:"file"`
}

type OutputConfig struct {
	Path string `mapstructure:"path"`
	// Events is an optional JSON-lines run journal.
	Events string `mapstructure:"events"`
}

type HistoryConfig struct {
	Path    string `mapstructure:"path"`
	Keyword string `mapstructure:"keyword"`
}

type CacheConfig struct {
	Dir      string `mapstructure:"dir"`
	RedisURL string `mapstructure:"redis_url"`
	// MemoSize bounds the in-process parsed block cache.
	MemoSize int `mapstructure:"memo_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	HealthAddr    string `mapstructure:"health_addr"`
	DiffCacheSize int    `mapstructure:"diff_cache_size"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Repo:      RepoConfig{Path: "."},
		Revisions: RevisionsConfig{Channel: string(revision.ChannelBoth)},
		Output:    OutputConfig{Path: "settings.json"},
		Sources:   sources.Defaults(),
		History:   HistoryConfig{Path: changes.DefaultPath, Keyword: changes.DefaultKeyword},
		Cache:     CacheConfig{MemoSize: 256},
		Log:       LogConfig{Level: "info", Format: "text"},
		Tracing:   TracingConfig{SampleRate: 1.0},
		Temporal:  TemporalConfig{Host: "localhost:7233", Namespace: "default", TaskQueue: "lineage"},
		Server:    ServerConfig{Addr: ":8080", HealthAddr: ":8081", DiffCacheSize: 128},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("repo.path", d.Repo.Path)
	v.SetDefault("revisions.channel", d.Revisions.Channel)
	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.keyword", d.History.Keyword)
	v.SetDefault("cache.memo_size", d.Cache.MemoSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("temporal.host", d.Temporal.Host)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.health_addr", d.Server.HealthAddr)
	v.SetDefault("server.diff_cache_size", d.Server.DiffCacheSize)

	// Keys without a default still need registering for env overrides.
	for _, key := range []string{
		"revisions.file", "revisions.changelog", "revisions.announcement_pattern",
		"revisions.tag_pattern", "categories.file", "output.events", "cache.dir",
		"cache.redis_url", "tracing.endpoint", "metrics.textfile", "graph.uri",
		"graph.username", "graph.password",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("revisions.minors", 0)
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if _, err := revision.ParseChannel(c.Revisions.Channel); err != nil {
		warnings = append(warnings, fmt.Sprintf("revisions.channel: %v", err))
	}
	if c.Revisions.Minors < 0 {
		warnings = append(warnings, fmt.Sprintf("revisions.minors %d is negative", c.Revisions.Minors))
	}
	if c.Revisions.Minors > 0 && c.Revisions.Changelog == "" {
		warnings = append(warnings, "revisions.minors is set but revisions.changelog is empty")
	}

	if len(c.Sources) == 0 {
		warnings = append(warnings, "no sources configured; nothing will be extracted")
	}
	seen := make(map[string]bool)
	for _, k := range c.Sources {
		if err := k.Validate(); err != nil {
			warnings = append(warnings, err.Error())
		}
		if seen[k.Name] {
			warnings = append(warnings, fmt.Sprintf("source kind %q is configured twice", k.Name))
		}
		seen[k.Name] = true
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}
	if c.Graph.URI != "" && c.Graph.Username == "" {
		warnings = append(warnings, fmt.Sprintf("graph uri '%s' is configured but username is empty", c.Graph.URI))
	}
	if c.Cache.MemoSize < 0 {
		warnings = append(warnings, fmt.Sprintf("cache memo_size %d is negative", c.Cache.MemoSize))
	}

	return warnings
}

// Load reads configuration from file and environment. An empty path, or a
// path that does not exist, yields defaults overlaid with environment
// variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LINEAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Warning: config file %s not found, using defaults\n", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if !v.IsSet("sources") {
		cfg.Sources = sources.Defaults()
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
