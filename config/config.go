// Package config loads composition files: logging and layering settings plus
// an optional declaration of modules that can be inspected without running
// any provider body.
//
// Values are read in this order, later sources winning:
//  1. built-in defaults
//  2. the YAML file
//  3. .env files (through godotenv, never overriding variables already set)
//  4. HEXY_* environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	hexy "github.com/regd25/hexy-sub004"
)

// Environment variables overriding file values.
const (
	EnvLogLevel       = "HEXY_LOG_LEVEL"
	EnvLogDevelopment = "HEXY_LOG_DEVELOPMENT"
	EnvStrictLayers   = "HEXY_STRICT_LAYERS"
)

type Config struct {
	Log     LogConfig    `yaml:"log"`
	Layers  LayerConfig  `yaml:"layers"`
	Modules []ModuleSpec `yaml:"modules"`
}

type LogConfig struct {
	Level       string `yaml:"level"` // debug | info | warn | error
	Development bool   `yaml:"development"`
}

// LayerConfig controls layer validation. A nil Policy means
// hexy.DefaultLayerPolicy.
type LayerConfig struct {
	Strict bool                `yaml:"strict"`
	Policy map[string][]string `yaml:"policy"`
}

// ModuleSpec declares a module by name. Imports and Reexports name other
// modules of the same file.
type ModuleSpec struct {
	Name      string         `yaml:"name"`
	Layer     string         `yaml:"layer"`
	Imports   []string       `yaml:"imports"`
	Providers []ProviderSpec `yaml:"providers"`
	Exports   []string       `yaml:"exports"`
	Reexports []string       `yaml:"reexports"`
}

// ProviderSpec declares a provider for a named token.
type ProviderSpec struct {
	Token    string   `yaml:"token"`
	Deps     []string `yaml:"deps"`
	Lifetime string   `yaml:"lifetime"` // singleton (default) | transient
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Log: LogConfig{Level: "info"}}
}

// Load reads the YAML file at path (skipped when path is empty), then the
// env files (".env" when none is given; missing files are ignored), and
// applies HEXY_* overrides.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(payload); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes a YAML document on top of Default.
func Parse(payload []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(payload, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		// .env files are optional.
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogDevelopment); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogDevelopment, err)
		}
		c.Log.Development = b
	}
	if v := os.Getenv(EnvStrictLayers); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStrictLayers, err)
		}
		c.Layers.Strict = b
	}
	return nil
}

// Validate checks the log level and the module declarations.
func (c *Config) Validate() error {
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	var errs []error
	seen := make(map[string]struct{}, len(c.Modules))
	for i, m := range c.Modules {
		if strings.TrimSpace(m.Name) == "" {
			errs = append(errs, fmt.Errorf("modules[%d]: name is empty", i))
			continue
		}
		if _, dup := seen[m.Name]; dup {
			errs = append(errs, fmt.Errorf("module %s: declared twice", m.Name))
		}
		seen[m.Name] = struct{}{}

		for j, p := range m.Providers {
			if strings.TrimSpace(p.Token) == "" {
				errs = append(errs, fmt.Errorf("module %s: providers[%d]: token is empty", m.Name, j))
			}
			if _, err := hexy.ParseLifetime(p.Lifetime); err != nil {
				errs = append(errs, fmt.Errorf("module %s: provider %s: %w", m.Name, p.Token, err))
			}
		}
	}
	return errors.Join(errs...)
}

// LayerPolicy returns the configured policy or hexy.DefaultLayerPolicy.
func (c *Config) LayerPolicy() hexy.LayerPolicy {
	if len(c.Layers.Policy) == 0 {
		return hexy.DefaultLayerPolicy()
	}
	return hexy.LayerPolicy(c.Layers.Policy)
}

// NewLogger builds a zap logger from the log settings.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
