// Package judge scores open-ended answers with a remote verifier model.
package judge

import (
	"context"
	"log/slog"

	"github.com/lamim/grporeward/internal/api"
	"github.com/lamim/grporeward/internal/config"
	"github.com/lamim/grporeward/internal/metrics"
	"github.com/lamim/grporeward/internal/rules"
	"github.com/lamim/grporeward/pkg/models"
)

// VerifierSink receives one diagnostic record per judged answer
type VerifierSink interface {
	AppendVerifier(rec models.VerifierRecord) error
}

// Scorer is the open-ended scoring rule
type Scorer struct {
	completer Completer
	template  string
	threshold float64
	cache     *verdictCache
	sink      VerifierSink
	metrics   *metrics.Collector
	logger    *slog.Logger
}

var _ rules.Rule = (*Scorer)(nil)

// NewScorer creates the open-ended rule. sink and collector may be nil.
func NewScorer(cfg config.JudgeConfig, completer Completer, sink VerifierSink, collector *metrics.Collector, logger *slog.Logger) *Scorer {
	return &Scorer{
		completer: completer,
		template:  cfg.PromptTemplate,
		threshold: cfg.RejectThreshold,
		cache:     newVerdictCache(cfg.CacheSize),
		sink:      sink,
		metrics:   collector,
		logger:    logger.With("component", "judge_scorer"),
	}
}

// Score renders the prompt, asks the judge and extracts the verdict
func (s *Scorer) Score(ctx context.Context, in rules.Input) (models.Score, error) {
	prompt, err := BuildPrompt(s.template, in.Messages, in.Reference, in.Output)
	if err != nil {
		return models.Scalar(0), &rules.Failure{Kind: rules.ErrParse, Task: models.TaskOpenEnded, Err: err}
	}

	reply, cached := s.cache.get(prompt.Text)
	if cached {
		if s.metrics != nil {
			s.metrics.IncJudgeCacheHit()
		}
	} else {
		reply = s.completer.Complete(ctx, []api.Message{{Role: "user", Content: prompt.Text}})
		s.cache.add(prompt.Text, reply)
	}

	reward := ExtractScore(reply, s.threshold)
	s.record(models.VerifierRecord{
		Question:    prompt.Question,
		Solution:    in.Reference,
		Output:      in.Output,
		Generated:   reply,
		RewardScore: reward,
	})

	if reply == "" {
		return models.Scalar(0), &rules.Failure{Kind: rules.ErrJudgeEmpty, Task: models.TaskOpenEnded}
	}
	return models.Scalar(reward), nil
}

func (s *Scorer) record(rec models.VerifierRecord) {
	if s.sink == nil {
		return
	}
	if err := s.sink.AppendVerifier(rec); err != nil {
		s.logger.Warn("Failed to write verifier log", "error", err)
		if s.metrics != nil {
			s.metrics.IncLogSinkError("verifier")
		}
	}
}
