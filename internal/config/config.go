package config

import (
	"fmt"
	"os"
	"strings"
)

// Config represents the complete application configuration
type Config struct {
	Reward   RewardConfig   `toml:"reward"`
	Pool     PoolConfig     `toml:"pool"`
	Judge    JudgeConfig    `toml:"judge"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
	Tokenize TokenizeConfig `toml:"tokenizer"`
	Stats    StatsConfig    `toml:"stats"`
}

// RewardConfig holds per-sample reward shaping settings
type RewardConfig struct {
	CompletionMarker  string               `toml:"completion_marker"`   // End-of-turn token that marks a finished response
	MaxResponseLength int                  `toml:"max_response_length"` // Required when the overlong buffer is enabled
	OverlongBuffer    OverlongBufferConfig `toml:"overlong_buffer"`
	LengthCurve       LengthCurveConfig    `toml:"length_curve"`
	ReportThinkFormat bool                 `toml:"report_think_format"` // Emit a think_format sub-score for every sample
}

// OverlongBufferConfig configures the linear overlong penalty
type OverlongBufferConfig struct {
	Enabled       bool    `toml:"enabled"`
	Length        int     `toml:"len"`
	PenaltyFactor float64 `toml:"penalty_factor"`
	Log           bool    `toml:"log"` // Return structured scores (acc, overlong_reward, overlong)
}

// LengthCurveConfig configures the multiplicative length-reward curve
type LengthCurveConfig struct {
	Enabled   bool    `toml:"enabled"`
	Soft      int     `toml:"soft"`
	Hard      int     `toml:"hard"`
	Max       int     `toml:"max"`
	MinReward float64 `toml:"min_reward"`
}

// PoolConfig sizes the per-batch worker pool
type PoolConfig struct {
	Width int `toml:"width"`
}

// JudgeConfig describes the remote verifier endpoint
type JudgeConfig struct {
	BaseURL            string  `toml:"base_url"`
	ModelName          string  `toml:"model_name"`
	Temperature        float64 `toml:"temperature"`
	MaxOutputTokens    int     `toml:"max_output_tokens"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`       // Per-request HTTP timeout (default 240)
	MaxRetries         int     `toml:"max_retries"`           // 0 = single attempt
	BaseRetryDelayMS   int     `toml:"base_retry_delay_ms"`   // Backoff base when retries are enabled (default 2000)
	RateLimitPerMinute int     `toml:"rate_limit_per_minute"` // 0 = unlimited
	RejectThreshold    float64 `toml:"reject_threshold"`      // Judge scores at or below this collapse to 0 (default 40)
	CacheSize          int     `toml:"cache_size"`            // LRU verdict cache entries, 0 = disabled
	PromptTemplate     string  `toml:"prompt_template"`
}

// LoggingConfig holds log destinations
type LoggingConfig struct {
	LogDir string `toml:"log_dir"` // Directory for the date-stamped training and verifier logs
	Level  string `toml:"level"`   // debug, info, warn, error
}

// ServerConfig holds the reward service settings
type ServerConfig struct {
	Addr               string `toml:"addr"`
	ReadTimeoutSeconds int    `toml:"read_timeout_seconds"`
	MaxBodyBytes       int64  `toml:"max_body_bytes"`
}

// TokenizeConfig selects the tokenizer used to decode response ids.
// With neither set, samples must carry response_text.
type TokenizeConfig struct {
	Path     string `toml:"path"`     // Policy model tokenizer.json, read offline
	Encoding string `toml:"encoding"` // tiktoken encoding name, fetched on first load
}

// StatsConfig holds epoch-statistics parameters
type StatsConfig struct {
	EpochSteps     int `toml:"epoch_steps"`
	BatchSize      int `toml:"batch_size"`
	NumGenerations int `toml:"num_generations"`
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	JudgeAPIKey string
}

const (
	// MaxPoolWidth is the maximum allowed worker pool width
	MaxPoolWidth = 4096
	// MaxJudgeTimeoutSeconds bounds the per-request judge timeout
	MaxJudgeTimeoutSeconds = 3600
)

var validLevels = []string{"debug", "info", "warn", "error"}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Reward.CompletionMarker == "" {
		return fmt.Errorf("reward.completion_marker is required")
	}
	if c.Reward.MaxResponseLength < 0 {
		return fmt.Errorf("reward.max_response_length must not be negative (got %d)", c.Reward.MaxResponseLength)
	}

	ob := c.Reward.OverlongBuffer
	if ob.Enabled {
		if c.Reward.MaxResponseLength == 0 {
			return fmt.Errorf("reward.max_response_length must be provided when reward.overlong_buffer is enabled")
		}
		if ob.Length < 1 {
			return fmt.Errorf("reward.overlong_buffer.len must be at least 1")
		}
		if ob.Length > c.Reward.MaxResponseLength {
			return fmt.Errorf("reward.overlong_buffer.len (%d) must not exceed reward.max_response_length (%d)",
				ob.Length, c.Reward.MaxResponseLength)
		}
		if ob.PenaltyFactor < 0 {
			return fmt.Errorf("reward.overlong_buffer.penalty_factor must not be negative (got %.2f)", ob.PenaltyFactor)
		}
	}

	lc := c.Reward.LengthCurve
	if lc.Enabled {
		if !(0 < lc.Soft && lc.Soft < lc.Hard && lc.Hard < lc.Max) {
			return fmt.Errorf("reward.length_curve requires 0 < soft < hard < max (got %d, %d, %d)", lc.Soft, lc.Hard, lc.Max)
		}
		if lc.MinReward < 0 || lc.MinReward > 1 {
			return fmt.Errorf("reward.length_curve.min_reward must be between 0 and 1 (got %.2f)", lc.MinReward)
		}
	}

	if c.Pool.Width < 1 {
		return fmt.Errorf("pool.width must be at least 1")
	}
	if c.Pool.Width > MaxPoolWidth {
		return fmt.Errorf("pool.width must not exceed %d (got %d)", MaxPoolWidth, c.Pool.Width)
	}

	if err := validateJudgeConfig(c.Judge); err != nil {
		return err
	}

	if c.Logging.LogDir == "" {
		return fmt.Errorf("logging.log_dir is required")
	}
	if !isValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %s (got %s)", strings.Join(validLevels, ", "), c.Logging.Level)
	}

	if c.Tokenize.Path != "" && c.Tokenize.Encoding != "" {
		return fmt.Errorf("tokenizer.path and tokenizer.encoding are mutually exclusive")
	}

	if c.Stats.EpochSteps < 1 || c.Stats.BatchSize < 1 || c.Stats.NumGenerations < 1 {
		return fmt.Errorf("stats.epoch_steps, stats.batch_size and stats.num_generations must be at least 1")
	}

	return nil
}

func validateJudgeConfig(jc JudgeConfig) error {
	if jc.BaseURL == "" {
		return fmt.Errorf("judge.base_url is required")
	}
	if jc.ModelName == "" {
		return fmt.Errorf("judge.model_name is required")
	}
	if jc.Temperature < 0 || jc.Temperature > 2 {
		return fmt.Errorf("judge.temperature must be between 0 and 2")
	}
	if jc.MaxOutputTokens < 1 {
		return fmt.Errorf("judge.max_output_tokens must be at least 1")
	}
	if jc.TimeoutSeconds < 1 || jc.TimeoutSeconds > MaxJudgeTimeoutSeconds {
		return fmt.Errorf("judge.timeout_seconds must be between 1 and %d (got %d)", MaxJudgeTimeoutSeconds, jc.TimeoutSeconds)
	}
	if jc.MaxRetries < 0 || jc.MaxRetries > 10 {
		return fmt.Errorf("judge.max_retries must be between 0 and 10 (got %d)", jc.MaxRetries)
	}
	if jc.RateLimitPerMinute < 0 {
		return fmt.Errorf("judge.rate_limit_per_minute must not be negative")
	}
	if jc.RejectThreshold < 0 || jc.RejectThreshold > 100 {
		return fmt.Errorf("judge.reject_threshold must be between 0 and 100 (got %.2f)", jc.RejectThreshold)
	}
	if jc.CacheSize < 0 {
		return fmt.Errorf("judge.cache_size must not be negative")
	}
	if jc.PromptTemplate == "" {
		return fmt.Errorf("judge.prompt_template is required")
	}
	return nil
}

func isValidLevel(level string) bool {
	for _, l := range validLevels {
		if level == l {
			return true
		}
	}
	return false
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{}

	// Judge-specific key wins over the generic one
	if key := os.Getenv("JUDGE_API_KEY"); key != "" {
		secrets.JudgeAPIKey = key
	} else if key := os.Getenv("API_KEY"); key != "" {
		secrets.JudgeAPIKey = key
	}

	return secrets, nil
}
