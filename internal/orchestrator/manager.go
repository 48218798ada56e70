// Package orchestrator turns a training batch into a reward tensor.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lamim/grporeward/internal/metrics"
	"github.com/lamim/grporeward/internal/writer"
	"github.com/lamim/grporeward/pkg/models"
)

// ErrInvalidBatch wraps every batch shape error returned by Compute
var ErrInvalidBatch = errors.New("invalid batch")

// Manager computes batch rewards
type Manager struct {
	dispatcher *Dispatcher
	poolWidth  int
	sink       writer.TrainingSink
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// NewManager creates a batch manager. sink may be nil to disable the training log.
func NewManager(dispatcher *Dispatcher, poolWidth int, sink writer.TrainingSink, collector *metrics.Collector, logger *slog.Logger) *Manager {
	return &Manager{
		dispatcher: dispatcher,
		poolWidth:  poolWidth,
		sink:       sink,
		metrics:    collector,
		logger:     logger.With("component", "reward_manager"),
	}
}

// ComputeTensor returns only the reward tensor
func (m *Manager) ComputeTensor(ctx context.Context, batch *models.Batch) (*models.RewardTensor, error) {
	result, err := m.Compute(ctx, batch)
	if err != nil {
		return nil, err
	}
	return result.RewardTensor, nil
}

// Compute scores every sample of the batch. A precomputed rm_scores tensor
// is returned unchanged. Errors are reserved for malformed batches and pool
// construction; per-sample failures score zero.
func (m *Manager) Compute(ctx context.Context, batch *models.Batch) (*models.RewardResult, error) {
	if batch.RMScores != nil {
		if m.metrics != nil {
			m.metrics.IncCachedBatch()
		}
		m.logger.Debug("Using precomputed reward tensor")
		return &models.RewardResult{RewardTensor: batch.RMScores}, nil
	}

	if err := validateBatch(batch, m.dispatcher.tokenizer == nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}

	start := time.Now()
	results := make([]Outcome, len(batch.Samples))

	var sequential, parallel []int
	for i := range batch.Samples {
		if batch.Samples[i].Task.Sequential() {
			sequential = append(sequential, i)
		} else {
			parallel = append(parallel, i)
		}
	}

	seqStart := time.Now()
	for _, i := range sequential {
		results[i] = m.dispatcher.Dispatch(ctx, i, &batch.Samples[i])
	}
	m.recordStage("sequential", seqStart)

	if len(parallel) > 0 {
		parStart := time.Now()
		if err := m.runParallel(ctx, batch, parallel, results); err != nil {
			return nil, err
		}
		m.recordStage("parallel", parStart)
	}

	result := m.assemble(batch, append(sequential, parallel...), results)
	m.recordStage("total", start)

	m.logger.Info("Computed batch rewards",
		"samples", len(batch.Samples),
		"sequential", len(sequential),
		"parallel", len(parallel),
		"duration", time.Since(start))

	return result, nil
}

func (m *Manager) runParallel(ctx context.Context, batch *models.Batch, indices []int, results []Outcome) error {
	width := m.poolWidth
	if width > len(indices) {
		width = len(indices)
	}
	pool, err := createScoringPool(width)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, idx := range indices {
		param := scoreSampleParamPool.Get().(*scoreSampleParam)
		param.idx = idx
		param.ctx = ctx
		param.sample = &batch.Samples[idx]
		param.dispatcher = m.dispatcher
		param.metrics = m.metrics
		param.results = results
		param.wg = &wg

		wg.Add(1)
		if err := pool.Invoke(param); err != nil {
			wg.Done()
			param.reset()
			scoreSampleParamPool.Put(param)
			m.logger.Warn("Failed to submit sample, scoring inline", "index", idx, "error", err)
			results[idx] = m.dispatcher.Dispatch(ctx, idx, &batch.Samples[idx])
		}
	}
	wg.Wait()
	return nil
}

// assemble writes the tensor and extra info in result order (sequential
// group first, then parallel) and emits the training log
func (m *Manager) assemble(batch *models.Batch, order []int, results []Outcome) *models.RewardResult {
	tensor := models.NewRewardTensor(len(batch.Samples), batch.ResponseLength())
	extra := models.ExtraInfo{}
	records := make([]Record, 0, len(order))

	for _, i := range order {
		out := results[i]

		if out.Score.IsStructured() {
			for _, key := range out.Score.Keys() {
				extra[key] = append(extra[key], out.Score.Extra[key])
			}
		}

		if out.ValidLength < 1 {
			m.logger.Warn("Skipping sample with empty response", "index", i)
		} else if err := tensor.Set(i, out.ValidLength-1, float32(out.Score.Value)); err != nil {
			m.logger.Warn("Failed to place reward", "index", i, "error", err)
		}

		records = append(records, Record{
			Question:   batch.Samples[i].Question(),
			Completion: out.Output,
			Solution:   out.GroundTruth,
			Score:      out.Score.Value,
		})
	}

	m.writeTrainingLog(records)

	result := &models.RewardResult{RewardTensor: tensor}
	if len(extra) > 0 {
		result.RewardExtraInfo = extra
	}
	return result
}

// writeTrainingLog is best-effort: failures are logged and counted only
func (m *Manager) writeTrainingLog(records []Record) {
	if m.sink == nil {
		return
	}
	entries := GroupByQuestion(records)
	if err := m.sink.AppendTraining(entries); err != nil {
		m.logger.Warn("Failed to write training log", "error", err, "entries", len(entries))
		if m.metrics != nil {
			m.metrics.IncLogSinkError("train")
		}
	}
}

func (m *Manager) recordStage(stage string, start time.Time) {
	if m.metrics != nil {
		m.metrics.RecordBatchStage(stage, time.Since(start))
	}
}
