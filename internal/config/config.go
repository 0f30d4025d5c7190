// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Ingest error granularity.
const (
	// PolicyFile aborts the whole load on any non-geometry parse error.
	PolicyFile = "file"
	// PolicyRow skips rows with non-geometry parse errors and keeps going.
	PolicyRow = "row"
)

type Config struct {
	DatabaseURL string `yaml:"database_url"`
	Port        string `yaml:"port"`

	Log       Log       `yaml:"log"`
	Data      Data      `yaml:"data"`
	Ingest    Ingest    `yaml:"ingest"`
	Redis     Redis     `yaml:"redis"`
	RateLimit RateLimit `yaml:"rate_limit"`

	AllowedOrigins []string `yaml:"allowed_origins"`
	// LoaderKeyHash is a bcrypt hash. When set, /load-* requires X-Loader-Key.
	LoaderKeyHash string `yaml:"loader_key_hash"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Data locates the source files. Relative file names resolve against Dir.
type Data struct {
	Dir    string `yaml:"dir"`
	Cities string `yaml:"cities"`
	Dmas   string `yaml:"dmas"`
	Pipes  string `yaml:"pipes"`
}

type Ingest struct {
	Policy       string `yaml:"policy"`
	AdvisoryLock bool   `yaml:"advisory_lock"`
	BatchSize    int    `yaml:"batch_size"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port: "5050",
		Log:  Log{Level: "info", Format: "console"},
		Data: Data{
			Dir:    ".",
			Cities: "us_cities.csv",
			Dmas:   "output.csv",
			Pipes:  "output_pipes.csv",
		},
		Ingest: Ingest{Policy: PolicyFile, AdvisoryLock: true, BatchSize: 500},
		Redis:  Redis{TTL: "10m"},
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:5174",
		},
	}
}

// Load reads path (a missing file is not an error), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	str("DATABASE_URL", &c.DatabaseURL)
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("DATA_DIR", &c.Data.Dir)
	str("CITIES_CSV", &c.Data.Cities)
	str("DMAS_CSV", &c.Data.Dmas)
	str("PIPES_CSV", &c.Data.Pipes)
	str("INGEST_POLICY", &c.Ingest.Policy)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("CACHE_TTL", &c.Redis.TTL)
	str("LOADER_KEY_HASH", &c.LoaderKeyHash)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	if v := os.Getenv("INGEST_ADVISORY_LOCK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("INGEST_ADVISORY_LOCK: %w", err)
		}
		c.Ingest.AdvisoryLock = b
	}
	if v := os.Getenv("INGEST_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INGEST_BATCH_SIZE: %w", err)
		}
		c.Ingest.BatchSize = n
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.Redis.DB = n
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimit.RPS = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimit.Burst = n
	}
	return nil
}

// Validate checks settings that would otherwise fail later and less clearly.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	switch c.Ingest.Policy {
	case PolicyFile, PolicyRow:
	default:
		return fmt.Errorf("invalid ingest policy %q (want %s or %s)", c.Ingest.Policy, PolicyFile, PolicyRow)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest batch size must be positive, got %d", c.Ingest.BatchSize)
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	return nil
}

// CacheTTL parses Redis.TTL. An empty value means no expiry.
func (c Config) CacheTTL() (time.Duration, error) {
	if c.Redis.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Redis.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", c.Redis.TTL, err)
	}
	return d, nil
}

// SourcePath resolves a data file name against Data.Dir.
func (c Config) SourcePath(name string) string {
	if filepath.IsAbs(name) || c.Data.Dir == "" {
		return name
	}
	return filepath.Join(c.Data.Dir, name)
}
