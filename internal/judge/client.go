package judge

import (
	"context"
	"log/slog"
	"time"

	"github.com/lamim/grporeward/internal/api"
	"github.com/lamim/grporeward/internal/config"
	"github.com/lamim/grporeward/internal/metrics"
	"github.com/lamim/grporeward/internal/util"
)

// Completer returns the judge's reply to a conversation, or "" on failure
type Completer interface {
	Complete(ctx context.Context, messages []api.Message) string
}

// Client sends judge prompts to an OpenAI-compatible endpoint
type Client struct {
	cfg       config.JudgeConfig
	apiKey    string
	apiClient *api.Client
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewClient creates a judge client
func NewClient(cfg config.JudgeConfig, secrets *config.Secrets, apiClient *api.Client, collector *metrics.Collector, logger *slog.Logger) *Client {
	var key string
	if secrets != nil {
		key = secrets.JudgeAPIKey
	}
	return &Client{
		cfg:       cfg,
		apiKey:    key,
		apiClient: apiClient,
		metrics:   collector,
		logger:    logger.With("component", "judge"),
	}
}

// Complete never fails: transport, status and decoding errors are logged and
// reported as an empty reply
func (c *Client) Complete(ctx context.Context, messages []api.Message) string {
	start := time.Now()
	resp, err := c.apiClient.ChatCompletion(ctx, c.cfg, c.apiKey, messages)
	if c.metrics != nil {
		c.metrics.RecordJudgeRequest(time.Since(start), err == nil)
	}
	if err != nil {
		c.logger.Warn("Judge request failed",
			"error", err,
			"model", c.cfg.ModelName,
			"duration", time.Since(start))
		return ""
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("Received judge response", "length", len(content), "first_200_chars", util.TruncateString(content, 200))
	return content
}
