// Package analytics summarizes training logs across epochs.
package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/lamim/grporeward/pkg/models"
)

// FormatViolationScore is the reward a format-violating generation receives
const FormatViolationScore = -1.0

// Options controls epoch splitting
type Options struct {
	EpochSteps     int
	BatchSize      int
	NumGenerations int
	Marker         string
	// ResponseLengths holds the mean response length per training step, if known
	ResponseLengths []float64
}

// Overall counts questions across the whole log
type Overall struct {
	Total        int     `json:"total"`
	CorrectAny   int     `json:"correct_any"`
	CorrectAll   int     `json:"correct_all"`
	IncorrectAll int     `json:"incorrect_all"`
	TruncatedAll int     `json:"truncated_all"`
	Accuracy     float64 `json:"accuracy"`
}

// Comparison contrasts questions seen in two consecutive epochs
type Comparison struct {
	Prev                int      `json:"prev_epoch"`
	Next                int      `json:"next_epoch"`
	Repeated            int      `json:"repeated"`
	RepeatedSteps       int      `json:"repeated_steps"`
	MeanLengthPrev      *float64 `json:"mean_length_prev,omitempty"`
	MeanLengthNext      *float64 `json:"mean_length_next,omitempty"`
	AvgScorePrev        float64  `json:"avg_score_prev"`
	AvgScoreNext        float64  `json:"avg_score_next"`
	Improved            int      `json:"improved"`
	Declined            int      `json:"declined"`
	CorrectRatioPrev    float64  `json:"correct_ratio_prev"`
	CorrectRatioNext    float64  `json:"correct_ratio_next"`
	AllCorrectPrev      int      `json:"all_correct_prev"`
	AllCorrectNext      int      `json:"all_correct_next"`
	AllIncorrectPrev    int      `json:"all_incorrect_prev"`
	AllIncorrectNext    int      `json:"all_incorrect_next"`
	FormatViolationPrev float64  `json:"format_violation_prev"`
	FormatViolationNext float64  `json:"format_violation_next"`
}

// Report is the full statistics output
type Report struct {
	Overall     Overall      `json:"overall"`
	Epochs      int          `json:"epochs"`
	Comparisons []Comparison `json:"comparisons"`
}

// FilterGrouped keeps entries that aggregated more than one generation
func FilterGrouped(entries []models.LogEntry) []models.LogEntry {
	out := make([]models.LogEntry, 0, len(entries))
	for _, e := range entries {
		if len(e.RewardScore) > 1 {
			out = append(out, e)
		}
	}
	return out
}

// Summarize computes the whole-log counts
func Summarize(entries []models.LogEntry, marker string) Overall {
	o := Overall{Total: len(entries)}
	for _, e := range entries {
		if len(e.RewardScore) == 0 {
			continue
		}
		hi, lo := slices.Max(e.RewardScore), slices.Min(e.RewardScore)
		if hi > 0 {
			o.CorrectAny++
		}
		if lo > 0 {
			o.CorrectAll++
		}
		if hi < 0 {
			o.IncorrectAll++
		}
		if !strings.Contains(e.Completion, marker) {
			o.TruncatedAll++
		}
	}
	if o.Total > 0 {
		// Whole percent, ties to even
		o.Accuracy = math.RoundToEven(float64(o.CorrectAny) / float64(o.Total) * 100)
	}
	return o
}

// SplitEpochs cuts items into consecutive chunks of size
func SplitEpochs[T any](items []T, size int) [][]T {
	if size <= 0 {
		return nil
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// CompareEpochs contrasts the questions of next that also appear in prev
func CompareEpochs(prev, next []models.LogEntry, numGenerations, batchSize int) Comparison {
	seen := make(map[string][]float64, len(prev))
	for _, e := range prev {
		seen[e.Question] = e.RewardScore
	}

	var c Comparison
	var sumPrev, sumNext float64
	var violationsPrev, violationsNext int
	for _, e := range next {
		before, ok := seen[e.Question]
		if !ok || len(before) == 0 || len(e.RewardScore) == 0 {
			continue
		}
		after := e.RewardScore
		c.Repeated++

		sp, sn := sum(before), sum(after)
		sumPrev += sp
		sumNext += sn
		if sn > sp {
			c.Improved++
		} else if sn < sp {
			c.Declined++
		}

		if slices.Max(before) > 0 {
			c.CorrectRatioPrev++
		}
		if slices.Max(after) > 0 {
			c.CorrectRatioNext++
		}
		if slices.Min(before) > 0 {
			c.AllCorrectPrev++
		}
		if slices.Min(after) > 0 {
			c.AllCorrectNext++
		}
		if slices.Max(before) == FormatViolationScore {
			c.AllIncorrectPrev++
		}
		if slices.Max(after) == FormatViolationScore {
			c.AllIncorrectNext++
		}
		violationsPrev += count(before, FormatViolationScore)
		violationsNext += count(after, FormatViolationScore)
	}

	if c.Repeated == 0 {
		return c
	}
	n := float64(c.Repeated)
	c.AvgScorePrev = sumPrev / n
	c.AvgScoreNext = sumNext / n
	c.CorrectRatioPrev /= n
	c.CorrectRatioNext /= n
	if batchSize > 0 {
		c.RepeatedSteps = c.Repeated / batchSize
	}
	if numGenerations > 0 {
		c.FormatViolationPrev = float64(violationsPrev) / (n * float64(numGenerations))
		c.FormatViolationNext = float64(violationsNext) / (n * float64(numGenerations))
	}
	return c
}

// Analyze runs the full report over a training log
func Analyze(entries []models.LogEntry, opts Options) (Report, error) {
	if opts.EpochSteps < 1 || opts.BatchSize < 1 {
		return Report{}, fmt.Errorf("epoch steps and batch size must be positive")
	}

	grouped := FilterGrouped(entries)
	report := Report{Overall: Summarize(grouped, opts.Marker)}

	epochs := SplitEpochs(grouped, opts.EpochSteps*opts.BatchSize)
	report.Epochs = len(epochs)
	lengths := SplitEpochs(opts.ResponseLengths, opts.EpochSteps)

	for i := 0; i+1 < len(epochs); i++ {
		c := CompareEpochs(epochs[i], epochs[i+1], opts.NumGenerations, opts.BatchSize)
		c.Prev, c.Next = i+1, i+2
		c.MeanLengthPrev = meanAt(lengths, i)
		c.MeanLengthNext = meanAt(lengths, i+1)
		report.Comparisons = append(report.Comparisons, c)
	}
	return report, nil
}

// LoadResponseLengths reads the per-step mean response length from an
// exported scalar file of the form {"response_length/mean": [{"value": ...}]}
func LoadResponseLengths(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scalar export: %w", err)
	}

	var export map[string][]struct {
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse scalar export: %w", err)
	}

	points, ok := export["response_length/mean"]
	if !ok {
		return nil, fmt.Errorf("scalar export has no response_length/mean series")
	}
	lengths := make([]float64, len(points))
	for i, p := range points {
		lengths[i] = p.Value
	}
	return lengths, nil
}

func meanAt(chunks [][]float64, i int) *float64 {
	if i >= len(chunks) || len(chunks[i]) == 0 {
		return nil
	}
	m := math.Round(sum(chunks[i])/float64(len(chunks[i]))*100) / 100
	return &m
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func count(values []float64, target float64) int {
	n := 0
	for _, v := range values {
		if v == target {
			n++
		}
	}
	return n
}
