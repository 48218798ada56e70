package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lamim/grporeward/internal/config"
	"github.com/lamim/grporeward/internal/metrics"
	"github.com/lamim/grporeward/internal/penalty"
	"github.com/lamim/grporeward/internal/rules"
	"github.com/lamim/grporeward/internal/tokenizer"
	"github.com/lamim/grporeward/internal/util"
	"github.com/lamim/grporeward/pkg/models"
)

// ErrTruncated marks a response that does not end with the completion marker
var ErrTruncated = errors.New("response does not end with the completion marker")

// Structured score keys
const (
	KeyAccuracy       = "acc"
	KeyOverlongReward = "overlong_reward"
	KeyOverlong       = "overlong"
	KeyThinkFormat    = "think_format"
)

// Outcome is the result of scoring one sample. Score is always usable; Err
// records why it collapsed to zero, if it did.
type Outcome struct {
	Index       int
	Task        models.TaskKind
	Score       models.Score
	Output      string
	Messages    []models.Message
	GroundTruth string
	ValidLength int
	Err         error
}

// Dispatcher scores a single sample
type Dispatcher struct {
	tokenizer   tokenizer.Tokenizer
	rules       *rules.Set
	marker      string
	overlong    penalty.Overlong
	overlongLog bool
	curve       *penalty.Curve
	reportThink bool
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher from the reward settings. tok may be nil
// when every sample carries its response text.
func NewDispatcher(cfg config.RewardConfig, tok tokenizer.Tokenizer, set *rules.Set, collector *metrics.Collector, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		tokenizer: tok,
		rules:     set,
		marker:    cfg.CompletionMarker,
		overlong: penalty.Overlong{
			Enabled:           cfg.OverlongBuffer.Enabled,
			BufferLength:      cfg.OverlongBuffer.Length,
			PenaltyFactor:     cfg.OverlongBuffer.PenaltyFactor,
			MaxResponseLength: cfg.MaxResponseLength,
		},
		overlongLog: cfg.OverlongBuffer.Enabled && cfg.OverlongBuffer.Log,
		reportThink: cfg.ReportThinkFormat,
		metrics:     collector,
		logger:      logger.With("component", "dispatcher"),
	}
	if cfg.LengthCurve.Enabled {
		d.curve = &penalty.Curve{
			Soft:  cfg.LengthCurve.Soft,
			Hard:  cfg.LengthCurve.Hard,
			Max:   cfg.LengthCurve.Max,
			Floor: cfg.LengthCurve.MinReward,
		}
	}
	return d
}

// Dispatch decodes, checks for truncation, routes to the task rule and
// applies length shaping. It never fails: every error yields a zero reward.
func (d *Dispatcher) Dispatch(ctx context.Context, index int, sample *models.Sample) (out Outcome) {
	out = Outcome{
		Index:       index,
		Task:        sample.Task,
		Messages:    sample.Messages,
		GroundTruth: sample.GroundTruth,
		ValidLength: sample.ValidResponseLength(),
	}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic while scoring sample %d: %v", index, r)
			out.Score = d.shape(0, 0, out.Output, false)
		}
		d.observe(out)
	}()

	text, err := d.decode(sample, out.ValidLength)
	if err != nil {
		out.Err = err
		out.Score = d.shape(0, 0, "", false)
		return out
	}
	out.Output = strings.TrimSpace(text)

	base, err := d.accuracy(ctx, out.Output, sample)
	out.Err = err

	if d.curve != nil {
		base *= d.curve.Reward(out.ValidLength)
	}
	out.Score = d.shape(base, d.overlong.Adjust(out.ValidLength), out.Output, true)
	return out
}

func (d *Dispatcher) decode(sample *models.Sample, valid int) (string, error) {
	if sample.ResponseText != "" {
		return sample.ResponseText, nil
	}
	if d.tokenizer == nil {
		return "", fmt.Errorf("no tokenizer configured to decode %d response tokens", valid)
	}
	if valid > len(sample.Responses) {
		return "", fmt.Errorf("valid length %d exceeds %d response tokens", valid, len(sample.Responses))
	}
	text, err := d.tokenizer.Decode(sample.Responses[:valid])
	if err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return text, nil
}

// accuracy is the task score of a finished response
func (d *Dispatcher) accuracy(ctx context.Context, output string, sample *models.Sample) (float64, error) {
	if !strings.HasSuffix(output, d.marker) {
		return 0, ErrTruncated
	}
	answer := strings.TrimSpace(strings.ReplaceAll(output, d.marker, ""))

	score, err := d.rules.For(sample.Task).Score(ctx, rules.Input{
		Messages:  sample.Messages,
		Output:    answer,
		Reference: sample.GroundTruth,
		Limits:    sample.Limits,
	})
	if err != nil {
		return 0, err
	}
	return score.Value, nil
}

// shape combines the base score with the overlong penalty and builds the
// structured form when any diagnostic is enabled
func (d *Dispatcher) shape(base, overlong float64, output string, penalise bool) models.Score {
	if !penalise {
		overlong = 0
	}
	final := base + overlong

	if !d.overlongLog && !d.reportThink {
		return models.Scalar(final)
	}

	extra := make(map[string]float64, 4)
	if d.overlongLog {
		extra[KeyAccuracy] = base
		extra[KeyOverlongReward] = overlong
		extra[KeyOverlong] = boolFloat(overlong < 0)
	}
	if d.reportThink {
		answer := strings.TrimSpace(strings.ReplaceAll(output, d.marker, ""))
		extra[KeyThinkFormat] = boolFloat(util.HasThinkFormat(answer))
	}
	return models.Structured(final, extra)
}

func (d *Dispatcher) observe(out Outcome) {
	outcome := "scored"
	switch {
	case errors.Is(out.Err, ErrTruncated):
		outcome = "truncated"
	case out.Err != nil:
		outcome = "failed"
		d.logger.Debug("Sample scored as zero", "index", out.Index, "task", out.Task.String(), "error", out.Err)
	}
	if d.metrics == nil {
		return
	}
	d.metrics.RecordSample(out.Task.String(), outcome, out.Score.Value)
	if d.overlong.Adjust(out.ValidLength) < 0 {
		d.metrics.IncOverlongPenalty()
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
