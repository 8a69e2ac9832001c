package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"

	"crumbtrail/pkg/confkit"
	"crumbtrail/pkg/track"
)

// Config drives the records inspection CLI.
type Config struct {
	// Env indicates the running environment: test | dev | prod.
	Env string `json:",default=dev"`
	// RecordsDir is scanned for record files when no paths are given.
	RecordsDir string `json:",default=records"`
	// MaxPreviewChars truncates parameter previews in summaries.
	MaxPreviewChars int `json:",default=120"`

	// Profile optionally points at a shared tracking profile; the CLI
	// validates it so broken profiles are caught before a training run.
	Profile confkit.Section[track.Profile] `json:",optional"`

	mainPath string
	baseDir  string
}

// IsTestEnv reports whether the CLI runs in the test environment.
func (c *Config) IsTestEnv() bool {
	return c.Env == "test"
}

// MustLoad is like Load but panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads and validates the CLI configuration.
func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}

	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Profile.Hydrate(cfg.baseDir, track.LoadProfile); err != nil {
		return nil, fmt.Errorf("load tracking profile: %w", err)
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "", "test", "dev", "prod":
		if strings.TrimSpace(c.Env) == "" {
			c.Env = "dev"
		}
	default:
		return errors.New("config: env must be one of test|dev|prod")
	}
	if strings.TrimSpace(c.RecordsDir) == "" {
		return errors.New("config: recordsDir is required")
	}
	if c.MaxPreviewChars <= 0 {
		return errors.New("config: maxPreviewChars must be positive")
	}
	return nil
}
