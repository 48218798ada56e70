package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	// Load secrets from environment
	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// Parse decodes TOML, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	// Decode over the baseline so an explicit zero survives
	cfg := baseline()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Additional input security validation
	if err := cfg.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := baseline()
	applyDefaults(&cfg)
	return &cfg
}

// baseline holds defaults for fields where zero is a meaningful setting
func baseline() Config {
	var cfg Config
	cfg.Reward.OverlongBuffer.PenaltyFactor = 1.0
	cfg.Reward.LengthCurve.MinReward = 0.1
	cfg.Judge.RejectThreshold = 40
	return cfg
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Reward defaults
	if cfg.Reward.CompletionMarker == "" {
		cfg.Reward.CompletionMarker = "<|im_end|>"
	}
	if cfg.Reward.OverlongBuffer.Enabled {
		if cfg.Reward.OverlongBuffer.Length == 0 {
			cfg.Reward.OverlongBuffer.Length = 4096
		}
	}
	if cfg.Reward.LengthCurve.Soft == 0 {
		cfg.Reward.LengthCurve.Soft = 4096
	}
	if cfg.Reward.LengthCurve.Hard == 0 {
		cfg.Reward.LengthCurve.Hard = 8192
	}
	if cfg.Reward.LengthCurve.Max == 0 {
		cfg.Reward.LengthCurve.Max = 24 * 1024
	}

	if cfg.Pool.Width == 0 {
		cfg.Pool.Width = 128
	}

	// Judge defaults. Temperature is left at 0.0 for deterministic decoding.
	if cfg.Judge.BaseURL == "" {
		cfg.Judge.BaseURL = "http://127.0.0.1:5053/v1"
	}
	if cfg.Judge.ModelName == "" {
		cfg.Judge.ModelName = "WiNGPT-Verifier"
	}
	if cfg.Judge.MaxOutputTokens == 0 {
		cfg.Judge.MaxOutputTokens = 2048
	}
	if cfg.Judge.TimeoutSeconds == 0 {
		cfg.Judge.TimeoutSeconds = 240
	}
	if cfg.Judge.BaseRetryDelayMS == 0 {
		cfg.Judge.BaseRetryDelayMS = 2000
	}
	if cfg.Judge.PromptTemplate == "" {
		cfg.Judge.PromptTemplate = GetDefaultJudgeTemplate()
	}

	// Logging defaults
	if cfg.Logging.LogDir == "" {
		cfg.Logging.LogDir = "log_date"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	// Server defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 60
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 256 << 20
	}

	// Stats defaults mirror a 128-prompt batch with 8 generations each
	if cfg.Stats.EpochSteps == 0 {
		cfg.Stats.EpochSteps = 76
	}
	if cfg.Stats.BatchSize == 0 {
		cfg.Stats.BatchSize = 128
	}
	if cfg.Stats.NumGenerations == 0 {
		cfg.Stats.NumGenerations = 8
	}
}
