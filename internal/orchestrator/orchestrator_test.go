package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/grporeward/internal/config"
	"github.com/lamim/grporeward/internal/metrics"
	"github.com/lamim/grporeward/internal/rules"
	"github.com/lamim/grporeward/internal/tokenizer"
	"github.com/lamim/grporeward/internal/writer"
	"github.com/lamim/grporeward/pkg/models"
)

const marker = "<|im_end|>"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingRule returns a fixed score and counts invocations
type countingRule struct {
	calls atomic.Int32
	score float64
}

func (r *countingRule) Score(context.Context, rules.Input) (models.Score, error) {
	r.calls.Add(1)
	return models.Scalar(r.score), nil
}

// scriptedRule scores by looking the answer up in a table
type scriptedRule struct {
	scores map[string]float64
}

func (r scriptedRule) Score(_ context.Context, in rules.Input) (models.Score, error) {
	return models.Scalar(r.scores[in.Output]), nil
}

type countingVerifier struct {
	calls atomic.Int32
	ok    bool
	err   error
}

func (v *countingVerifier) Verify(output, reference string) (bool, error) {
	v.calls.Add(1)
	return v.ok, v.err
}

type memorySink struct {
	mu      sync.Mutex
	entries []models.LogEntry
	err     error
}

func (s *memorySink) AppendTraining(entries []models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return s.err
}

func noTokenizer() tokenizer.Tokenizer {
	return tokenizer.Func(func(ids []int) (string, error) {
		return "", errors.New("tokenizer not expected")
	})
}

// makeSample builds a sample whose response has valid real tokens out of width
func makeSample(task models.TaskKind, question, text string, valid, width int) models.Sample {
	mask := []int{1, 1}
	for i := 0; i < width; i++ {
		if i < valid {
			mask = append(mask, 1)
		} else {
			mask = append(mask, 0)
		}
	}
	return models.Sample{
		Messages:      []models.Message{{Role: "user", Content: question}},
		Prompts:       []int{101, 102},
		Responses:     make([]int, width),
		AttentionMask: mask,
		Task:          task,
		GroundTruth:   "gold",
		ResponseText:  text,
	}
}

func newTestManager(cfg config.RewardConfig, verifier rules.MathVerifier, openEnded rules.Rule, sink *memorySink, width int) *Manager {
	set := rules.NewSet(verifier, openEnded)
	d := NewDispatcher(cfg, noTokenizer(), set, metrics.NewCollector(), testLogger())
	var trainingSink writer.TrainingSink
	if sink != nil {
		trainingSink = sink
	}
	return NewManager(d, width, trainingSink, metrics.NewCollector(), testLogger())
}

func defaultReward() config.RewardConfig {
	return config.Default().Reward
}

func TestCompute_PrecomputedScoresShortCircuit(t *testing.T) {
	verifier := &countingVerifier{ok: true}
	judge := &countingRule{score: 1}
	sink := &memorySink{}
	m := newTestManager(defaultReward(), verifier, judge, sink, 4)

	pre := models.NewRewardTensor(2, 3)
	require.NoError(t, pre.Set(0, 1, 0.5))
	require.NoError(t, pre.Set(1, 2, -1))

	batch := &models.Batch{
		Samples: []models.Sample{
			makeSample(models.TaskMath, "q1", "\\boxed{1}"+marker, 2, 3),
			makeSample(models.TaskOpenEnded, "q2", "text"+marker, 3, 3),
		},
		RMScores: pre,
	}

	result, err := m.Compute(context.Background(), batch)
	require.NoError(t, err)
	assert.Same(t, pre, result.RewardTensor)
	assert.Nil(t, result.RewardExtraInfo)
	assert.Equal(t, int32(0), verifier.calls.Load())
	assert.Equal(t, int32(0), judge.calls.Load())
	assert.Empty(t, sink.entries)
}

func TestCompute_TruncatedScoresZero(t *testing.T) {
	judge := &countingRule{score: 1}
	verifier := &countingVerifier{ok: true}
	m := newTestManager(defaultReward(), verifier, judge, nil, 4)

	batch := &models.Batch{Samples: []models.Sample{
		makeSample(models.TaskOpenEnded, "q1", "cut off mid sentence", 4, 4),
		makeSample(models.TaskMath, "q2", "\\boxed{2} and then", 4, 4),
		makeSample(models.TaskChoice, "q3", marker+" \\boxed{A}", 4, 4),
	}}

	tensor, err := m.ComputeTensor(context.Background(), batch)
	require.NoError(t, err)
	for row := 0; row < 3; row++ {
		assert.Equal(t, 0, tensor.NonZeroCount(row), "row %d", row)
	}
	assert.Equal(t, int32(0), judge.calls.Load())
	assert.Equal(t, int32(0), verifier.calls.Load())
}

func TestCompute_OneNonZeroPerRow(t *testing.T) {
	judge := &countingRule{score: 0.75}
	m := newTestManager(defaultReward(), &countingVerifier{ok: true}, judge, nil, 2)

	valid := []int{1, 3, 5, 8}
	tasks := []models.TaskKind{models.TaskOpenEnded, models.TaskMath, models.TaskOpenEnded, models.TaskMath}
	batch := &models.Batch{}
	for i, v := range valid {
		batch.Samples = append(batch.Samples, makeSample(tasks[i], fmt.Sprintf("q%d", i), "\\boxed{1}"+marker, v, 8))
	}

	tensor, err := m.ComputeTensor(context.Background(), batch)
	require.NoError(t, err)

	rows, cols := tensor.Shape()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 8, cols)
	for i, v := range valid {
		assert.Equal(t, 1, tensor.NonZeroCount(i), "row %d", i)
		assert.NotZero(t, tensor.At(i, v-1), "row %d", i)
	}
	assert.Equal(t, float32(0.75), tensor.At(0, 0))
	assert.Equal(t, float32(1), tensor.At(1, 2))
}

func TestCompute_ParallelGroupKeepsIndices(t *testing.T) {
	answers := map[string]float64{}
	batch := &models.Batch{}
	for i := 0; i < 300; i++ {
		text := fmt.Sprintf("answer %d", i)
		answers[text] = float64(i%10+1) / 10
		batch.Samples = append(batch.Samples, makeSample(models.TaskOpenEnded, fmt.Sprintf("q%d", i), text+marker, 2, 2))
	}
	m := newTestManager(defaultReward(), &countingVerifier{}, scriptedRule{scores: answers}, nil, 16)

	tensor, err := m.ComputeTensor(context.Background(), batch)
	require.NoError(t, err)
	for i := 0; i < 300; i++ {
		assert.InDelta(t, float64(i%10+1)/10, float64(tensor.At(i, 1)), 1e-6, "row %d", i)
	}
}

func TestCompute_LogOrderSequentialFirst(t *testing.T) {
	sink := &memorySink{}
	m := newTestManager(defaultReward(), &countingVerifier{ok: true}, &countingRule{score: 0.5}, sink, 4)

	batch := &models.Batch{Samples: []models.Sample{
		makeSample(models.TaskOpenEnded, "open", "x"+marker, 1, 2),
		makeSample(models.TaskMath, "math", "\\boxed{1}"+marker, 1, 2),
		makeSample(models.TaskMedCalc, "calc", "\\boxed{1}"+marker, 1, 2),
		makeSample(models.TaskChoice, "choice", "\\boxed{A}"+marker, 1, 2),
	}}
	batch.Samples[2].Limits = &models.Interval{Low: 0, High: 2}

	_, err := m.Compute(context.Background(), batch)
	require.NoError(t, err)

	var questions []string
	for _, e := range sink.entries {
		questions = append(questions, e.Question)
	}
	assert.Equal(t, []string{"math", "calc", "open", "choice"}, questions)
	assert.Equal(t, "\\boxed{1}"+marker, sink.entries[0].Completion)
	assert.Equal(t, "gold", sink.entries[0].Solution)
}

func TestCompute_GroupsByQuestion(t *testing.T) {
	sink := &memorySink{}
	rule := scriptedRule{scores: map[string]float64{"weak": 0.3, "strong": 0.9}}
	m := newTestManager(defaultReward(), &countingVerifier{}, rule, sink, 4)

	batch := &models.Batch{Samples: []models.Sample{
		makeSample(models.TaskOpenEnded, "same question", "weak"+marker, 2, 2),
		makeSample(models.TaskOpenEnded, "same question", "strong"+marker, 2, 2),
	}}

	_, err := m.Compute(context.Background(), batch)
	require.NoError(t, err)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	assert.Equal(t, "same question", entry.Question)
	assert.Equal(t, "strong"+marker, entry.Completion)
	assert.Equal(t, []float64{0.3, 0.9}, entry.RewardScore)
}

func TestCompute_LogFailureSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	m := newTestManager(defaultReward(), &countingVerifier{ok: true}, &countingRule{score: 1}, sink, 4)

	batch := &models.Batch{Samples: []models.Sample{
		makeSample(models.TaskMath, "q", "\\boxed{1}"+marker, 2, 2),
	}}

	tensor, err := m.ComputeTensor(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, float32(1), tensor.At(0, 1))
}

func TestCompute_StructuredExtraInfo(t *testing.T) {
	cfg := defaultReward()
	cfg.MaxResponseLength = 4
	cfg.OverlongBuffer = config.OverlongBufferConfig{Enabled: true, Length: 2, PenaltyFactor: 1, Log: true}
	m := newTestManager(cfg, &countingVerifier{ok: true}, &countingRule{score: 1}, nil, 4)

	batch := &models.Batch{Samples: []models.Sample{
		makeSample(models.TaskMath, "q1", "\\boxed{1}"+marker, 1, 4),
		makeSample(models.TaskOpenEnded, "q2", "answer"+marker, 3, 4),
		makeSample(models.TaskOpenEnded, "q3", "truncated", 4, 4),
	}}

	result, err := m.Compute(context.Background(), batch)
	require.NoError(t, err)

	extra := result.RewardExtraInfo
	require.NotNil(t, extra)
	for _, key := range []string{models.ScoreKey, KeyAccuracy, KeyOverlongReward, KeyOverlong} {
		assert.Len(t, extra[key], 3, key)
	}
	// math first, then the parallel group in index order
	assert.Equal(t, []float64{1, 0.5, -1}, extra[models.ScoreKey])
	assert.Equal(t, []float64{1, 1, 0}, extra[KeyAccuracy])
	assert.Equal(t, []float64{0, -0.5, -1}, extra[KeyOverlongReward])
	assert.Equal(t, []float64{0, 1, 1}, extra[KeyOverlong])

	assert.Equal(t, float32(1), result.RewardTensor.At(0, 0))
	assert.Equal(t, float32(0.5), result.RewardTensor.At(1, 2))
	assert.Equal(t, float32(-1), result.RewardTensor.At(2, 3))
}

func TestCompute_EmptyResponseSkipped(t *testing.T) {
	sink := &memorySink{}
	m := newTestManager(defaultReward(), &countingVerifier{ok: true}, &countingRule{score: 1}, sink, 4)

	batch := &models.Batch{Samples: []models.Sample{
		makeSample(models.TaskOpenEnded, "q1", marker, 0, 3),
		makeSample(models.TaskOpenEnded, "q2", "ok"+marker, 3, 3),
	}}

	tensor, err := m.ComputeTensor(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, tensor.NonZeroCount(0))
	assert.Equal(t, float32(1), tensor.At(1, 2))
	assert.Len(t, sink.entries, 2)
}

func TestCompute_InvalidBatch(t *testing.T) {
	m := newTestManager(defaultReward(), &countingVerifier{}, &countingRule{}, nil, 4)

	_, err := m.Compute(context.Background(), &models.Batch{})
	assert.ErrorIs(t, err, ErrInvalidBatch)

	ragged := &models.Batch{Samples: []models.Sample{
		makeSample(models.TaskMath, "q1", marker, 2, 2),
		makeSample(models.TaskMath, "q2", marker, 2, 3),
	}}
	_, err = m.Compute(context.Background(), ragged)
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

func TestCompute_TextOnlyRequiresResponseText(t *testing.T) {
	set := rules.NewSet(&countingVerifier{}, &countingRule{score: 1})
	m := NewManager(NewDispatcher(defaultReward(), nil, set, nil, testLogger()), 4, nil, nil, testLogger())

	withText := &models.Batch{Samples: []models.Sample{
		makeSample(models.TaskOpenEnded, "q1", "ok"+marker, 2, 2),
	}}
	tensor, err := m.ComputeTensor(context.Background(), withText)
	require.NoError(t, err)
	assert.Equal(t, float32(1), tensor.At(0, 1))

	idsOnly := &models.Batch{Samples: []models.Sample{
		makeSample(models.TaskOpenEnded, "q1", "ok"+marker, 2, 2),
		makeSample(models.TaskOpenEnded, "q2", "", 2, 2),
	}}
	_, err = m.Compute(context.Background(), idsOnly)
	assert.ErrorIs(t, err, ErrInvalidBatch)
	assert.Contains(t, err.Error(), "sample 1")
}

func TestDispatch_RuleErrorCollapsesToZero(t *testing.T) {
	set := rules.NewSet(&countingVerifier{err: errors.New("unparseable")}, &countingRule{})
	d := NewDispatcher(defaultReward(), noTokenizer(), set, nil, testLogger())

	sample := makeSample(models.TaskMath, "q", "\\boxed{?}"+marker, 2, 2)
	out := d.Dispatch(context.Background(), 7, &sample)

	assert.Equal(t, 7, out.Index)
	assert.Equal(t, 0.0, out.Score.Value)
	assert.ErrorIs(t, out.Err, rules.ErrParse)
	assert.Equal(t, 2, out.ValidLength)
}

func TestDispatch_PanicCollapsesToZero(t *testing.T) {
	panicky := rules.RuleFunc(func(context.Context, rules.Input) (models.Score, error) {
		panic("boom")
	})
	d := NewDispatcher(defaultReward(), noTokenizer(), rules.NewSet(&countingVerifier{}, panicky), nil, testLogger())

	sample := makeSample(models.TaskOpenEnded, "q", "answer"+marker, 2, 2)
	out := d.Dispatch(context.Background(), 0, &sample)

	assert.Equal(t, 0.0, out.Score.Value)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "boom")
}

func TestDispatch_DecodesValidTokensOnly(t *testing.T) {
	vocab := map[int]string{1: "<think>\n", 2: "ok\n", 3: "</think>\n", 4: "\\boxed{B}", 5: marker, 0: "<pad>"}
	var seen []int
	tok := tokenizer.Func(func(ids []int) (string, error) {
		seen = ids
		var b strings.Builder
		for _, id := range ids {
			b.WriteString(vocab[id])
		}
		return "  " + b.String() + "\n", nil
	})

	cfg := defaultReward()
	cfg.ReportThinkFormat = true
	d := NewDispatcher(cfg, tok, rules.NewSet(&countingVerifier{}, &countingRule{}), nil, testLogger())

	sample := makeSample(models.TaskChoice, "q", "", 5, 7)
	sample.GroundTruth = "\\boxed{B}"
	sample.Responses = []int{1, 2, 3, 4, 5, 0, 0}

	out := d.Dispatch(context.Background(), 0, &sample)
	require.NoError(t, out.Err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
	assert.Equal(t, "<think>\nok\n</think>\n\\boxed{B}"+marker, out.Output)
	assert.Equal(t, 1.0, out.Score.Value)
	assert.Equal(t, 1.0, out.Score.Extra[KeyThinkFormat])
}

func TestDispatch_DecodeFailure(t *testing.T) {
	tok := tokenizer.Func(func(ids []int) (string, error) {
		return "", errors.New("unknown token")
	})
	d := NewDispatcher(defaultReward(), tok, rules.NewSet(&countingVerifier{}, &countingRule{score: 1}), nil, testLogger())

	sample := makeSample(models.TaskOpenEnded, "q", "", 2, 2)
	out := d.Dispatch(context.Background(), 0, &sample)
	assert.Error(t, out.Err)
	assert.Equal(t, 0.0, out.Score.Value)
}

func TestDispatch_OverlongPenaltyAppliesToTruncated(t *testing.T) {
	cfg := defaultReward()
	cfg.MaxResponseLength = 8
	cfg.OverlongBuffer = config.OverlongBufferConfig{Enabled: true, Length: 4, PenaltyFactor: 1}
	d := NewDispatcher(cfg, noTokenizer(), rules.NewSet(&countingVerifier{}, &countingRule{score: 1}), nil, testLogger())

	truncated := makeSample(models.TaskOpenEnded, "q", "no marker", 8, 8)
	out := d.Dispatch(context.Background(), 0, &truncated)
	assert.ErrorIs(t, out.Err, ErrTruncated)
	assert.Equal(t, -1.0, out.Score.Value)
	assert.False(t, out.Score.IsStructured())

	finished := makeSample(models.TaskOpenEnded, "q", "done"+marker, 6, 8)
	out = d.Dispatch(context.Background(), 0, &finished)
	require.NoError(t, out.Err)
	assert.Equal(t, 0.5, out.Score.Value)
}

func TestDispatch_LengthCurve(t *testing.T) {
	cfg := defaultReward()
	cfg.LengthCurve.Enabled = true
	d := NewDispatcher(cfg, noTokenizer(), rules.NewSet(&countingVerifier{}, &countingRule{score: 1}), nil, testLogger())

	sample := makeSample(models.TaskOpenEnded, "q", "long answer"+marker, 6144, 6144)
	out := d.Dispatch(context.Background(), 0, &sample)
	require.NoError(t, out.Err)
	assert.InDelta(t, 0.95, out.Score.Value, 1e-9)
}

func TestGroupByQuestion(t *testing.T) {
	entries := GroupByQuestion([]Record{
		{Question: "b", Completion: "b1", Solution: "sb", Score: 0.3},
		{Question: "a", Completion: "a1", Solution: "sa", Score: 0},
		{Question: "b", Completion: "b2", Solution: "sb", Score: 0.9},
		{Question: "a", Completion: "a2", Solution: "sa", Score: 0},
		{Question: "b", Completion: "b3", Solution: "sb", Score: 0.9},
	})

	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Question)
	assert.Equal(t, "b2", entries[0].Completion)
	assert.Equal(t, []float64{0.3, 0.9, 0.9}, entries[0].RewardScore)

	assert.Equal(t, "a", entries[1].Question)
	assert.Equal(t, "a1", entries[1].Completion, "ties keep the first completion")
	assert.Equal(t, []float64{0, 0}, entries[1].RewardScore)
}

func TestGroupByQuestion_Empty(t *testing.T) {
	assert.Empty(t, GroupByQuestion(nil))
}
