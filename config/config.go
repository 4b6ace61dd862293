/*
Package config loads server configuration and builds the logger.

SOURCES (later wins):
  1. Built-in defaults
  2. A .env file in the working directory (optional, via godotenv)
  3. Process environment
  4. Command-line flags

KEYS:
  PORT              HTTP port (default 8080)
  DB_PATH           SQLite path, ":memory:" allowed (default targets.db)
  LOG_LEVEL         logrus level name (default info)
  LOG_FORMAT        json | text (default json)
  REGENERATE_MODE   replace | preserve_overrides (default replace)
  SEED_FILE         optional reference-data JSON applied at startup
  CORS_ORIGINS      comma-separated allowed origins (default *)
  PARALLELISM       per-branch fan-out for leaderboards and backfills (default 4)
  SNAPSHOT_MAX_AGE  age after which a cached daily snapshot is recomputed on read (default 15m)
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ovenline/sales-targets/targets"
)

type Config struct {
	Port           int
	DBPath         string
	LogLevel       string
	LogFormat      string
	RegenerateMode targets.RegenerateMode
	SeedFile       string
	CORSOrigins    []string
	Parallelism    int
	SnapshotMaxAge time.Duration
}

// Load reads .env (when present), then the environment, then args.
func Load(args []string) (*Config, error) {
	return LoadFrom(".env", args)
}

// LoadFrom is Load with an explicit .env path. A missing file is not an error.
func LoadFrom(envFile string, args []string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	port, err := envInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	parallelism, err := envInt("PARALLELISM", 4)
	if err != nil {
		return nil, err
	}
	maxAge, err := envDuration("SNAPSHOT_MAX_AGE", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	fset := flag.NewFlagSet("server", flag.ContinueOnError)
	fPort := fset.Int("port", port, "HTTP server port")
	fDB := fset.String("db", getEnv("DB_PATH", "targets.db"), "SQLite database path (\":memory:\" for in-memory)")
	fLevel := fset.String("log-level", getEnv("LOG_LEVEL", "info"), "log level")
	fFormat := fset.String("log-format", getEnv("LOG_FORMAT", "json"), "log format: json or text")
	fMode := fset.String("regenerate-mode", getEnv("REGENERATE_MODE", string(targets.RegenerateReplace)), "replace or preserve_overrides")
	fSeed := fset.String("seed", getEnv("SEED_FILE", ""), "reference-data JSON applied at startup")
	fCORS := fset.String("cors-origins", getEnv("CORS_ORIGINS", "*"), "comma-separated allowed origins")
	fPar := fset.Int("parallelism", parallelism, "per-branch fan-out")
	fAge := fset.Duration("snapshot-max-age", maxAge, "recompute cached snapshots older than this")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	mode, err := targets.ParseRegenerateMode(*fMode)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           *fPort,
		DBPath:         *fDB,
		LogLevel:       *fLevel,
		LogFormat:      strings.ToLower(*fFormat),
		RegenerateMode: mode,
		SeedFile:       *fSeed,
		CORSOrigins:    splitList(*fCORS),
		Parallelism:    *fPar,
		SnapshotMaxAge: *fAge,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log format %q: want json or text", c.LogFormat)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// =============================================================================
// ENV HELPERS
// =============================================================================

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return v, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, raw)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
