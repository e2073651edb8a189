// Package config loads zeno settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/stevemurr/zeno/store"
	"github.com/stevemurr/zeno/zeno"
)

type Config struct {
	Table    string `yaml:"table"`
	Backend  string `yaml:"backend"`
	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`
}

func Default() Config {
	return Config{
		Table:    zeno.DefaultTable,
		Backend:  "memory",
		DataDir:  "./data",
		LogLevel: "info",
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads path when it is non-empty, then applies ZENO_* environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.Table = env("ZENO_TABLE", cfg.Table)
	cfg.Backend = env("ZENO_BACKEND", cfg.Backend)
	cfg.DataDir = env("ZENO_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = env("ZENO_LOG_LEVEL", cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Table == "" {
		return errors.New("table must not be empty")
	}
	if !slices.Contains(store.Backends, c.Backend) {
		return fmt.Errorf("unknown backend %q (supported: %v)", c.Backend, store.Backends)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// Logger builds a production logger at the configured level, or a
// development logger when the level is debug.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Options maps the config onto zeno.Options.
func (c Config) Options(logger *zap.Logger) zeno.Options {
	return zeno.Options{
		Table:   c.Table,
		Backend: c.Backend,
		DataDir: c.DataDir,
		Logger:  logger,
	}
}
