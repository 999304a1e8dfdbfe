// Package config loads sentence-eval settings from defaults, an optional
// YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/sentence-eval/internal/codec"
	"github.com/danielpatrickdp/sentence-eval/internal/criteria"
	"github.com/danielpatrickdp/sentence-eval/internal/eval"
	"github.com/danielpatrickdp/sentence-eval/internal/orchestrator"
)

// #region defaults

const (
	DefaultBackend    = BackendGemini
	DefaultDBPath     = "sentence_eval.db"
	DefaultLogLevel   = "info"
	DefaultModel      = "flash"
	DefaultRemoteAddr = "localhost:50061"
	DefaultServeAddr  = ":50061"
)

// Backends.
const (
	BackendGemini  = "gemini"
	BackendRemote  = "remote"
	BackendOffline = "offline"
)

// Environment variables read by Load.
const (
	EnvConfig     = "SENTENCE_EVAL_CONFIG"
	EnvAPIKey     = "GEMINI_API_KEY"
	EnvDB         = "SENTENCE_EVAL_DB"
	EnvBackend    = "SENTENCE_EVAL_BACKEND"
	EnvRemoteAddr = "SENTENCE_EVAL_REMOTE_ADDR"
	EnvLogLevel   = "SENTENCE_EVAL_LOG_LEVEL"
)

// #endregion defaults

// #region config

// Config is the resolved configuration.
type Config struct {
	Backend      string              `yaml:"backend" validate:"oneof=gemini remote offline"`
	APIKey       string              `yaml:"-"`
	RemoteAddr   string              `yaml:"remote_addr" validate:"required_if=Backend remote"`
	ServeAddr    string              `yaml:"serve_addr" validate:"required"`
	DBPath       string              `yaml:"db_path" validate:"required"`
	LogLevel     string              `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogJSON      bool                `yaml:"log_json"`
	Model        string              `yaml:"model" validate:"oneof=flash pro legacy"`
	Batch        orchestrator.Config `yaml:"batch"`
	Profiles     codec.Profiles      `yaml:"profiles" validate:"dive"`
	CriteriaFile string              `yaml:"criteria_file"`
	Criteria     []eval.Criterion    `yaml:"criteria"`
}

// New returns a Config with every default populated.
func New() *Config {
	return &Config{
		Backend:    DefaultBackend,
		RemoteAddr: DefaultRemoteAddr,
		ServeAddr:  DefaultServeAddr,
		DBPath:     DefaultDBPath,
		LogLevel:   DefaultLogLevel,
		Model:      DefaultModel,
		Batch:      orchestrator.DefaultConfig(),
		Profiles:   codec.DefaultProfiles(),
	}
}

// #endregion config

// #region load

// Load resolves configuration. path names a YAML file; when empty,
// $SENTENCE_EVAL_CONFIG is used, and when that is unset too only defaults
// and the environment apply. A named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		mergeConfig(cfg, &fileCfg)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	if src.Backend != "" {
		dst.Backend = src.Backend
	}
	if src.RemoteAddr != "" {
		dst.RemoteAddr = src.RemoteAddr
	}
	if src.ServeAddr != "" {
		dst.ServeAddr = src.ServeAddr
	}
	if src.DBPath != "" {
		dst.DBPath = src.DBPath
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogJSON {
		dst.LogJSON = true
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.CriteriaFile != "" {
		dst.CriteriaFile = src.CriteriaFile
	}
	dst.Criteria = append(dst.Criteria, src.Criteria...)

	// Batch
	b := &src.Batch
	if b.MaxInFlight != 0 {
		dst.Batch.MaxInFlight = b.MaxInFlight
	}
	if b.MaxAttempts != 0 {
		dst.Batch.MaxAttempts = b.MaxAttempts
	}
	if b.BackoffBase != 0 {
		dst.Batch.BackoffBase = b.BackoffBase
	}
	if b.BackoffMax != 0 {
		dst.Batch.BackoffMax = b.BackoffMax
	}
	if b.RequestsPerSecond != 0 {
		dst.Batch.RequestsPerSecond = b.RequestsPerSecond
	}
	if b.CallTimeout != 0 {
		dst.Batch.CallTimeout = b.CallTimeout
	}
	if b.Level != "" {
		dst.Batch.Level = b.Level
	}

	// Profiles merge field by field so a file can tune one knob.
	for choice, p := range src.Profiles {
		cur := dst.Profiles[choice]
		if p.Label != "" {
			cur.Label = p.Label
		}
		if p.Model != "" {
			cur.Model = p.Model
		}
		if p.Temperature != 0 {
			cur.Temperature = p.Temperature
		}
		if p.MaxOutputTokens != 0 {
			cur.MaxOutputTokens = p.MaxOutputTokens
		}
		dst.Profiles[choice] = cur
	}
}

func applyEnv(cfg *Config) {
	cfg.APIKey = envOr(EnvAPIKey, cfg.APIKey)
	cfg.DBPath = envOr(EnvDB, cfg.DBPath)
	cfg.Backend = strings.ToLower(envOr(EnvBackend, cfg.Backend))
	cfg.RemoteAddr = envOr(EnvRemoteAddr, cfg.RemoteAddr)
	cfg.LogLevel = strings.ToLower(envOr(EnvLogLevel, cfg.LogLevel))
}

// #endregion load

// #region validate

var validate = validator.New()

// Validate checks field constraints and that every profile names a known
// model choice.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for choice := range c.Profiles {
		if !choice.Valid() {
			return fmt.Errorf("invalid config: profile for unknown model %q", choice)
		}
	}
	for _, choice := range eval.ModelChoices {
		if _, err := c.Profiles.Lookup(choice); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// ModelChoice returns the configured default model.
func (c *Config) ModelChoice() eval.ModelChoice {
	return eval.ModelChoice(c.Model)
}

// #endregion validate

// #region registry

// Registry builds the criterion registry: the default catalog plus any
// criteria from the config file and CriteriaFile.
func (c *Config) Registry() (*criteria.Registry, error) {
	extra := append([]eval.Criterion(nil), c.Criteria...)
	if c.CriteriaFile != "" {
		more, err := criteria.LoadFile(c.CriteriaFile)
		if err != nil {
			return nil, err
		}
		extra = append(extra, more...)
	}
	if len(extra) == 0 {
		return criteria.Default(), nil
	}
	reg, err := criteria.Default().Extend(extra...)
	if err != nil {
		return nil, fmt.Errorf("extend criteria: %w", err)
	}
	return reg, nil
}

// #endregion registry

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers
