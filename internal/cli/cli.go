// Package cli implements the ghdisco command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ghdisco/pkg/buildinfo"
	"github.com/matzehuels/ghdisco/pkg/cache"
	"github.com/matzehuels/ghdisco/pkg/config"
	"github.com/matzehuels/ghdisco/pkg/credentials"
	"github.com/matzehuels/ghdisco/pkg/integrations"
	"github.com/matzehuels/ghdisco/pkg/integrations/github"
	"github.com/matzehuels/ghdisco/pkg/observability"
	"github.com/matzehuels/ghdisco/pkg/sink"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "ghdisco"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	flags globalFlags
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	tokens     []string
	tokenFile  string
	noCache    bool
	refresh    bool
	output     string
	format     string
	tui        bool
	statusAddr string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "ghdisco finds every repository that uses a library on GitHub",
		Long: `ghdisco enumerates GitHub code search exhaustively, working around the
1000-result cap by splitting queries on file size, sort order and extra
terms. It then enriches the repositories it finds with metadata and
contributor identities.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.configPath, "config", "c", "", "config file (default "+config.DefaultFile+" when present)")
	pf.StringArrayVar(&c.flags.tokens, "token", nil, "GitHub token (repeatable; adds to tokens from the environment)")
	pf.StringVar(&c.flags.tokenFile, "token-file", "", "file with one GitHub token per line")
	pf.BoolVar(&c.flags.noCache, "no-cache", false, "disable the response cache")
	pf.BoolVar(&c.flags.refresh, "refresh", false, "bypass cached responses and refetch")
	pf.StringVarP(&c.flags.output, "output", "o", "", "output file (stdout for csv/jsonl when empty)")
	pf.StringVarP(&c.flags.format, "format", "f", "", "output format: csv, jsonl, sqlite or mongo")
	pf.BoolVar(&c.flags.tui, "tui", false, "show a live progress view")
	pf.StringVar(&c.flags.statusAddr, "status-addr", "", "serve /healthz and /stats on this address")

	root.AddCommand(c.searchCommand())
	root.AddCommand(c.augmentCommand())
	root.AddCommand(c.contributorsCommand())
	root.AddCommand(c.credentialsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runtime - wiring shared by the pipeline commands
// =============================================================================

// runtime bundles what a pipeline command needs.
type runtime struct {
	cfg      config.Config
	cache    cache.Cache
	github   *github.Client
	alloc    *credentials.Allocator
	counters *observability.Counters
	runID    string
}

func (r *runtime) Close() error {
	observability.Reset()
	return r.cache.Close()
}

// loadConfig reads the config file and applies flag overrides.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.flags.configPath)
	if err != nil {
		return cfg, err
	}
	if c.flags.format != "" {
		cfg.Output.Format = c.flags.format
	}
	if c.flags.noCache {
		cfg.Cache.Backend = cache.BackendNone
	}
	return cfg, cfg.Validate()
}

// newRuntime loads config and credentials and builds the API client.
func (c *CLI) newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	pool, err := credentials.Load(credentials.LoadOptions{
		EnvPrefix: cfg.Credentials.EnvPrefix,
		EnvFile:   cfg.Credentials.EnvFile,
		File:      firstNonEmpty(c.flags.tokenFile, cfg.Credentials.File),
		Tokens:    c.flags.tokens,
	})
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("credentials loaded", "count", pool.Size(), "names", pool.Names())

	ch, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	httpClient := integrations.NewHTTPClient(integrations.HTTPOptions{
		Timeout:    cfg.HTTP.Timeout.Duration,
		MinDelay:   cfg.HTTP.MinDelay.Duration,
		Retries:    cfg.HTTP.Retries,
		RetryCodes: cfg.HTTP.RetryCodes,
		UserAgent:  firstNonEmpty(cfg.HTTP.UserAgent, buildinfo.UserAgent()),
	})
	keyer := cache.NewDefaultKeyer()
	if cfg.HTTP.BaseURL != "" {
		keyer = cache.NewScopedKeyer(cfg.HTTP.BaseURL)
	}
	gh, err := github.NewClient(github.Options{
		HTTP:     httpClient,
		Cache:    ch,
		CacheTTL: cfg.Cache.TTL.Duration,
		Keyer:    keyer,
		BaseURL:  cfg.HTTP.BaseURL,
		Refresh:  c.flags.refresh,
	})
	if err != nil {
		ch.Close()
		return nil, err
	}

	counters := observability.NewCounters()
	observability.Register(counters)

	return &runtime{
		cfg:      cfg,
		cache:    ch,
		github:   gh,
		alloc:    credentials.NewAllocator(pool),
		counters: counters,
		runID:    sink.NewRunID(),
	}, nil
}

// sinkOptions describes the configured output for one kind of row.
func (rt *runtime) sinkOptions(kind string, columns []string, output string) sink.Options {
	return sink.Options{
		Format:        rt.cfg.Output.Format,
		Kind:          kind,
		Columns:       columns,
		RunID:         rt.runID,
		Path:          output,
		MongoURI:      rt.cfg.Output.MongoURI,
		MongoDatabase: rt.cfg.Output.MongoDatabase,
	}
}

// openSink opens the configured output for one kind of row.
func (c *CLI) openSink(ctx context.Context, rt *runtime, kind string, columns []string, output string) (sink.Sink, error) {
	opts := rt.sinkOptions(kind, columns, output)
	c.Logger.Debug("opening output", "kind", kind, "to", sink.Destination(opts))
	return sink.Open(ctx, opts)
}

// observe starts the status server and progress view requested by flags.
// The returned function stops both and may be called more than once.
func (c *CLI) observe(ctx context.Context, rt *runtime, title string) (stop func()) {
	var stops []func()
	if c.flags.statusAddr != "" {
		srv, err := startStatusServer(ctx, c.flags.statusAddr, rt.counters, rt.runID, c.Logger)
		if err != nil {
			c.Logger.Warn("status server not started", "err", err)
		} else {
			c.Logger.Info("status server listening", "addr", srv.Addr())
			stops = append(stops, srv.Stop)
		}
	}
	if c.flags.tui {
		level := c.Logger.GetLevel()
		c.Logger.SetLevel(log.ErrorLevel)
		p := startProgress(title, rt.counters, os.Stderr)
		stops = append(stops, func() {
			p.Stop()
			c.Logger.SetLevel(level)
		})
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(stops) - 1; i >= 0; i-- {
				stops[i]()
			}
		})
	}
}

func newCache(ctx context.Context, cfg config.Cache) (cache.Cache, error) {
	dir := cfg.Dir
	if dir == "" && (cfg.Backend == "" || cfg.Backend == cache.BackendFile) {
		d, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ch, err := cache.Open(ctx, cache.Options{Backend: cfg.Backend, Dir: dir, RedisAddr: cfg.RedisAddr})
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Backend, err)
	}
	return ch, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/ghdisco/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
