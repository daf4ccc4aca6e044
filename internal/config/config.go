// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/manohar-125/ThalAI-App/internal/common"
)

// Configuration keys.
const (
	KeyDataPath          = "data.path"
	KeyArtifactPath      = "artifact.path"
	KeyDatabasePath      = "database.path"
	KeyTestRatio         = "training.test_ratio"
	KeySeed              = "training.seed"
	KeyTrees             = "training.trees"
	KeyServerAddr        = "server.addr"
	KeyRecordPredictions = "server.record_predictions"
	KeyRateLimit         = "server.rate_limit"
	KeyLogLevel          = "logging.level"
	KeyLogFormat         = "logging.format"
)

// EnvPrefix is prepended to every environment override, e.g.
// THALAI_ARTIFACT_PATH.
const EnvPrefix = "THALAI"

// Config is the resolved application configuration.
type Config struct {
	DataPath          string
	ArtifactPath      string
	DatabasePath      string
	ServerAddr        string
	TestRatio         float64
	RateLimit         float64
	Seed              int64
	Trees             int
	RecordPredictions bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataPath, "data/Hackathon Data.csv")
	v.SetDefault(KeyArtifactPath, "model_pipeline.gob")
	v.SetDefault(KeyDatabasePath, "$HOME/.local/share/thalai/thalai.db")
	v.SetDefault(KeyTestRatio, 0.2)
	v.SetDefault(KeySeed, 42)
	v.SetDefault(KeyTrees, 200)
	v.SetDefault(KeyServerAddr, ":8000")
	v.SetDefault(KeyRecordPredictions, false)
	v.SetDefault(KeyRateLimit, 0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// BindEnv makes every key overridable from THALAI_* variables. Dots in keys
// become underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load resolves configuration from v, expanding paths.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DataPath:          ExpandPath(v.GetString(KeyDataPath)),
		ArtifactPath:      ExpandPath(v.GetString(KeyArtifactPath)),
		DatabasePath:      ExpandPath(v.GetString(KeyDatabasePath)),
		ServerAddr:        v.GetString(KeyServerAddr),
		TestRatio:         v.GetFloat64(KeyTestRatio),
		Seed:              v.GetInt64(KeySeed),
		Trees:             v.GetInt(KeyTrees),
		RecordPredictions: v.GetBool(KeyRecordPredictions),
		RateLimit:         v.GetFloat64(KeyRateLimit),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.ArtifactPath == "" {
		return fmt.Errorf("%w: %s", common.ErrMissingConfig, KeyArtifactPath)
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		return fmt.Errorf("%w: %s must be in (0, 1), got %v", common.ErrInvalidConfig, KeyTestRatio, c.TestRatio)
	}
	if c.Trees < 1 {
		return fmt.Errorf("%w: %s must be positive, got %d", common.ErrInvalidConfig, KeyTrees, c.Trees)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: %s must not be negative", common.ErrInvalidConfig, KeyRateLimit)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
