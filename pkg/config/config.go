// Package config loads ghdisco's TOML configuration.
//
// Values are resolved in order: [Defaults], the TOML file, then command-line
// flags applied by the CLI. Unknown keys in the file are rejected so typos
// do not silently fall back to defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/ghdisco/pkg/cache"
	"github.com/matzehuels/ghdisco/pkg/credentials"
	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
	"github.com/matzehuels/ghdisco/pkg/httputil"
	"github.com/matzehuels/ghdisco/pkg/search"
	"github.com/matzehuels/ghdisco/pkg/sink"
)

// DefaultFile is read when present and no --config is given.
const DefaultFile = "ghdisco.toml"

// Duration is a time.Duration that decodes from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Config is the full configuration.
type Config struct {
	Search      Search      `toml:"search"`
	HTTP        HTTP        `toml:"http"`
	Credentials Credentials `toml:"credentials"`
	Cache       Cache       `toml:"cache"`
	Output      Output      `toml:"output"`
}

// Search configures the partition planner.
type Search struct {
	PageSize   int    `toml:"page_size"`
	MaxResults int    `toml:"max_results"`
	SizeFrom   int    `toml:"size_from"`
	SizeTo     int    `toml:"size_to"`
	Sort       string `toml:"sort"`
	Workers    int    `toml:"workers"`
}

// HTTP configures the shared transport.
type HTTP struct {
	Timeout    Duration `toml:"timeout"`
	MinDelay   Duration `toml:"min_delay"`
	Retries    int      `toml:"retries"`
	RetryCodes []int    `toml:"retry_codes"`
	UserAgent  string   `toml:"user_agent"`
	BaseURL    string   `toml:"base_url"`
}

// Credentials configures token loading.
type Credentials struct {
	EnvPrefix string `toml:"env_prefix"`
	EnvFile   string `toml:"env_file"`
	File      string `toml:"file"`
}

// Cache configures the response cache.
type Cache struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
}

// Output configures sinks.
type Output struct {
	Format        string `toml:"format"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Search: Search{
			PageSize:   search.DefaultPageSize,
			MaxResults: search.DefaultCap,
			SizeFrom:   0,
			SizeTo:     search.DefaultSizeTo,
			Sort:       search.DefaultSort,
			Workers:    search.DefaultWorkers,
		},
		HTTP: HTTP{
			Timeout:    Duration{30 * time.Second},
			MinDelay:   Duration{2 * time.Second},
			Retries:    10,
			RetryCodes: slices.Clone(httputil.DefaultRetryCodes),
			UserAgent:  "ghdisco",
		},
		Credentials: Credentials{
			EnvPrefix: credentials.DefaultEnvPrefix,
			EnvFile:   ".env",
		},
		Cache: Cache{
			Backend:   cache.BackendFile,
			RedisAddr: "localhost:6379",
			TTL:       Duration{24 * time.Hour},
		},
		Output: Output{
			Format:        sink.FormatCSV,
			MongoURI:      sink.DefaultMongoURI,
			MongoDatabase: sink.DefaultMongoDatabase,
		},
	}
}

// Load returns Defaults overlaid with the file at path. An empty path reads
// DefaultFile if it exists.
func Load(path string) (Config, error) {
	cfg := Defaults()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return cfg, ierrors.Wrap(ierrors.ErrCodeFileNotFound, err, "config file %s", path)
		}
		return cfg, ierrors.Wrap(ierrors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, ierrors.New(ierrors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return ierrors.New(ierrors.ErrCodeInvalidConfig, format, args...)
	}
	s := c.Search
	switch {
	case s.PageSize < 1 || s.PageSize > 100:
		return invalid("search.page_size must be in 1..100, got %d", s.PageSize)
	case s.MaxResults < s.PageSize:
		return invalid("search.max_results must be at least page_size, got %d", s.MaxResults)
	case s.SizeFrom < 0 || s.SizeTo < s.SizeFrom:
		return invalid("search size range %d..%d is invalid", s.SizeFrom, s.SizeTo)
	case s.Workers < 1:
		return invalid("search.workers must be positive, got %d", s.Workers)
	case s.Sort == "":
		return invalid("search.sort cannot be empty")
	}
	if c.HTTP.Timeout.Duration <= 0 {
		return invalid("http.timeout must be positive")
	}
	if c.HTTP.MinDelay.Duration < 0 {
		return invalid("http.min_delay cannot be negative")
	}
	for _, code := range c.HTTP.RetryCodes {
		if code < 100 || code > 599 {
			return invalid("http.retry_codes: %d is not an HTTP status", code)
		}
		if code == 404 {
			return invalid("http.retry_codes: 404 is never retried")
		}
	}
	switch c.Cache.Backend {
	case cache.BackendFile, cache.BackendRedis, cache.BackendNone:
	default:
		return invalid("cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == cache.BackendRedis && c.Cache.RedisAddr == "" {
		return invalid("cache.redis_addr is required for the redis backend")
	}
	if !slices.Contains(sink.Formats, c.Output.Format) {
		return invalid("output.format must be one of %s, got %q", strings.Join(sink.Formats, ", "), c.Output.Format)
	}
	return nil
}

// String renders the configuration as TOML.
func (c Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return b.String()
}
