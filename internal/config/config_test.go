package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "<|im_end|>", cfg.Reward.CompletionMarker)
	assert.Equal(t, 128, cfg.Pool.Width)
	assert.Equal(t, 240, cfg.Judge.TimeoutSeconds)
	assert.Equal(t, 2048, cfg.Judge.MaxOutputTokens)
	assert.Equal(t, 0.0, cfg.Judge.Temperature)
	assert.Equal(t, 0, cfg.Judge.MaxRetries)
	assert.Equal(t, 40.0, cfg.Judge.RejectThreshold)
	assert.Equal(t, "log_date", cfg.Logging.LogDir)
	assert.Equal(t, 4096, cfg.Reward.LengthCurve.Soft)
	assert.Equal(t, 8192, cfg.Reward.LengthCurve.Hard)
	assert.Equal(t, 24576, cfg.Reward.LengthCurve.Max)
	assert.False(t, cfg.Reward.OverlongBuffer.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "overlong buffer without max length",
			mutate: func(c *Config) {
				c.Reward.OverlongBuffer = OverlongBufferConfig{Enabled: true, Length: 512, PenaltyFactor: 1}
			},
			wantErr: true,
		},
		{
			name: "overlong buffer longer than max length",
			mutate: func(c *Config) {
				c.Reward.MaxResponseLength = 256
				c.Reward.OverlongBuffer = OverlongBufferConfig{Enabled: true, Length: 512, PenaltyFactor: 1}
			},
			wantErr: true,
		},
		{
			name: "valid overlong buffer",
			mutate: func(c *Config) {
				c.Reward.MaxResponseLength = 2048
				c.Reward.OverlongBuffer = OverlongBufferConfig{Enabled: true, Length: 512, PenaltyFactor: 1}
			},
			wantErr: false,
		},
		{
			name: "unordered length curve",
			mutate: func(c *Config) {
				c.Reward.LengthCurve.Enabled = true
				c.Reward.LengthCurve.Hard = c.Reward.LengthCurve.Soft
			},
			wantErr: true,
		},
		{
			name:    "zero pool width",
			mutate:  func(c *Config) { c.Pool.Width = 0 },
			wantErr: true,
		},
		{
			name:    "pool width too large",
			mutate:  func(c *Config) { c.Pool.Width = MaxPoolWidth + 1 },
			wantErr: true,
		},
		{
			name:    "missing judge url",
			mutate:  func(c *Config) { c.Judge.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Judge.MaxRetries = -1 },
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name: "tokenizer path and encoding",
			mutate: func(c *Config) {
				c.Tokenize = TokenizeConfig{Path: "tokenizer.json", Encoding: "cl100k_base"}
			},
			wantErr: true,
		},
		{
			name:    "empty marker",
			mutate:  func(c *Config) { c.Reward.CompletionMarker = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateInputs(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ValidateInputs())

	cfg.Judge.BaseURL = "ftp://judge.internal"
	assert.Error(t, cfg.ValidateInputs())

	cfg = Default()
	cfg.Judge.ModelName = "bad\x00name"
	assert.Error(t, cfg.ValidateInputs())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[reward]
max_response_length = 8192

[reward.overlong_buffer]
enabled = true
len = 1024
penalty_factor = 0.5

[pool]
width = 16

[judge]
base_url = "http://judge.internal:5053/v1"
model_name = "verifier"

[logging]
log_dir = "/tmp/rewards"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("JUDGE_API_KEY", "secret")

	cfg, secrets, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8192, cfg.Reward.MaxResponseLength)
	assert.True(t, cfg.Reward.OverlongBuffer.Enabled)
	assert.Equal(t, 1024, cfg.Reward.OverlongBuffer.Length)
	assert.Equal(t, 0.5, cfg.Reward.OverlongBuffer.PenaltyFactor)
	assert.Equal(t, 16, cfg.Pool.Width)
	assert.Equal(t, "verifier", cfg.Judge.ModelName)
	assert.Equal(t, "/tmp/rewards", cfg.Logging.LogDir)
	assert.Equal(t, "secret", secrets.JudgeAPIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadSecrets_FallsBackToGenericKey(t *testing.T) {
	t.Setenv("JUDGE_API_KEY", "")
	t.Setenv("API_KEY", "generic")

	secrets, err := LoadSecrets()
	require.NoError(t, err)
	assert.Equal(t, "generic", secrets.JudgeAPIKey)
}

func TestParse_ExplicitZerosKept(t *testing.T) {
	cfg, err := Parse([]byte(`
[reward]
max_response_length = 2048

[reward.overlong_buffer]
enabled = true
len = 512
penalty_factor = 0.0

[reward.length_curve]
min_reward = 0.0

[judge]
reject_threshold = 0
`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Reward.OverlongBuffer.PenaltyFactor)
	assert.Equal(t, 0.0, cfg.Reward.LengthCurve.MinReward)
	assert.Equal(t, 0.0, cfg.Judge.RejectThreshold)
}

func TestParse_OmittedFieldsDefaulted(t *testing.T) {
	cfg, err := Parse([]byte(`
[reward]
max_response_length = 2048

[reward.overlong_buffer]
enabled = true
len = 1024
`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Reward.OverlongBuffer.PenaltyFactor)
	assert.Equal(t, 2048, cfg.Reward.MaxResponseLength)
	assert.Equal(t, 0.1, cfg.Reward.LengthCurve.MinReward)
	assert.Equal(t, 40.0, cfg.Judge.RejectThreshold)
	assert.Empty(t, cfg.Tokenize.Path)
	assert.Empty(t, cfg.Tokenize.Encoding)
}
