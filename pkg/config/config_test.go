package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ghdisco.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[search]
page_size = 50
workers = 8

[http]
timeout = "10s"
min_delay = "500ms"
retry_codes = [502, 503]

[cache]
backend = "redis"
ttl = "1h"

[output]
format = "sqlite"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.PageSize != 50 || cfg.Search.Workers != 8 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Search.MaxResults != 1000 || cfg.Search.Sort != "indexed" {
		t.Errorf("defaults not kept: %+v", cfg.Search)
	}
	if cfg.HTTP.Timeout.Duration != 10*time.Second || cfg.HTTP.MinDelay.Duration != 500*time.Millisecond {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if len(cfg.HTTP.RetryCodes) != 2 {
		t.Errorf("retry codes = %v", cfg.HTTP.RetryCodes)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.TTL.Duration != time.Hour || cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Output.Format != "sqlite" {
		t.Errorf("output = %+v", cfg.Output)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code ierrors.Code
	}{
		{"unknown key", "[search]\npagesize = 10\n", ierrors.ErrCodeInvalidConfig},
		{"bad duration", "[http]\ntimeout = \"soon\"\n", ierrors.ErrCodeInvalidConfig},
		{"page size", "[search]\npage_size = 500\n", ierrors.ErrCodeInvalidConfig},
		{"size range", "[search]\nsize_from = 10\nsize_to = 5\n", ierrors.ErrCodeInvalidConfig},
		{"retry 404", "[http]\nretry_codes = [404]\n", ierrors.ErrCodeInvalidConfig},
		{"backend", "[cache]\nbackend = \"memcached\"\n", ierrors.ErrCodeInvalidConfig},
		{"format", "[output]\nformat = \"xml\"\n", ierrors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !ierrors.Is(err, tt.code) {
				t.Errorf("Load() = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); !ierrors.Is(err, ierrors.ErrCodeFileNotFound) {
		t.Errorf("explicit missing file: %v", err)
	}

	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("implicit missing file: %v", err)
	}
	if cfg.Search.PageSize != 100 {
		t.Errorf("want defaults, got %+v", cfg.Search)
	}
}

func TestString(t *testing.T) {
	s := Defaults().String()
	for _, want := range []string{"[search]", `timeout = "30s"`, `backend = "file"`} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q:\n%s", want, s)
		}
	}
}

func TestLoadExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "examples", "ghdisco.toml"))
	if err != nil {
		t.Fatalf("Load(example) error: %v", err)
	}
	if cfg.Search.MaxResults != 1000 || cfg.HTTP.MinDelay.Duration != 2*time.Second {
		t.Errorf("example config = %+v", cfg)
	}
}
