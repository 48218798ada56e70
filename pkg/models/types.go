package models

import (
	"encoding/json"
	"fmt"
)

// TaskKind identifies which scoring rule applies to a sample
type TaskKind int

const (
	// TaskOpenEnded is scored by the remote judge (any unrecognised task string)
	TaskOpenEnded TaskKind = iota
	// TaskMath is scored by math-equivalence verification
	TaskMath
	// TaskChoice is scored by matching boxed option letters (A-G)
	TaskChoice
	// TaskQualityControl is scored by matching true/false sequences
	TaskQualityControl
	// TaskMedCalc is scored by checking a numeric answer against an interval
	TaskMedCalc
)

// AllTaskKinds lists every task kind, in declaration order
var AllTaskKinds = []TaskKind{TaskOpenEnded, TaskMath, TaskChoice, TaskQualityControl, TaskMedCalc}

// ParseTaskKind maps the wire name of a task to its kind.
// Unknown names fall back to TaskOpenEnded.
func ParseTaskKind(s string) TaskKind {
	switch s {
	case "math":
		return TaskMath
	case "choice":
		return TaskChoice
	case "quality-control":
		return TaskQualityControl
	case "MedCalc-Bench":
		return TaskMedCalc
	default:
		return TaskOpenEnded
	}
}

func (k TaskKind) String() string {
	switch k {
	case TaskMath:
		return "math"
	case TaskChoice:
		return "choice"
	case TaskQualityControl:
		return "quality-control"
	case TaskMedCalc:
		return "MedCalc-Bench"
	default:
		return "open-ended"
	}
}

// Sequential reports whether samples of this kind are scored on the calling
// goroutine instead of the worker pool
func (k TaskKind) Sequential() bool {
	return k == TaskMath || k == TaskMedCalc
}

// MarshalJSON encodes the kind as its wire name
func (k TaskKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a wire name into a kind
func (k *TaskKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("task kind must be a string: %w", err)
	}
	*k = ParseTaskKind(s)
	return nil
}

// Message is a single conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Interval is an inclusive numeric range [Low, High]
type Interval struct {
	Low  float64
	High float64
}

// Contains reports whether v lies within the interval, bounds included
func (iv Interval) Contains(v float64) bool {
	return iv.Low <= v && v <= iv.High
}

// MarshalJSON encodes the interval as a two-element array
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{iv.Low, iv.High})
}

// UnmarshalJSON decodes a two-element array
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("interval must be a numeric array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("interval must have exactly 2 bounds, got %d", len(pair))
	}
	iv.Low, iv.High = pair[0], pair[1]
	return nil
}

// Sample is one generated response within a training batch
type Sample struct {
	Messages      []Message `json:"messages"`
	Prompts       []int     `json:"prompts"`
	Responses     []int     `json:"responses"`
	AttentionMask []int     `json:"attention_mask"`
	Task          TaskKind  `json:"data_task"`
	GroundTruth   string    `json:"ground_truth"`
	Limits        *Interval `json:"limits,omitempty"`
	// ResponseText bypasses the tokenizer when the caller already decoded the response
	ResponseText string `json:"response_text,omitempty"`
}

// ValidResponseLength counts the attention mask over the response span
func (s *Sample) ValidResponseLength() int {
	promptLen := len(s.Prompts)
	if promptLen > len(s.AttentionMask) {
		return 0
	}
	n := 0
	for _, m := range s.AttentionMask[promptLen:] {
		n += m
	}
	if n > len(s.Responses) && len(s.Responses) > 0 {
		n = len(s.Responses)
	}
	return n
}

// Question returns the content of the last turn, or "" for an empty history
func (s *Sample) Question() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1].Content
}

// Batch is the unit handed over by the training loop
type Batch struct {
	Samples []Sample `json:"samples"`
	// RMScores is a precomputed reward tensor; when present it is returned as-is
	RMScores *RewardTensor `json:"rm_scores,omitempty"`
}

// ResponseLength returns the padded response width of the batch
func (b *Batch) ResponseLength() int {
	width := 0
	for i := range b.Samples {
		if n := len(b.Samples[i].Responses); n > width {
			width = n
		}
	}
	return width
}

// RewardResult bundles the reward tensor with per-metric diagnostics
type RewardResult struct {
	RewardTensor    *RewardTensor `json:"reward_tensor"`
	RewardExtraInfo ExtraInfo     `json:"reward_extra_info,omitempty"`
}

// ExtraInfo maps a metric name to one value per structured-score sample
type ExtraInfo map[string][]float64

// LogEntry is one line of the training log, grouped by question
type LogEntry struct {
	Question    string    `json:"question"`
	Completion  string    `json:"completion"`
	Solution    string    `json:"solution"`
	RewardScore []float64 `json:"reward_score"`
	RunID       string    `json:"run_id,omitempty"`
}

// VerifierRecord is one line of the judge diagnostic log
type VerifierRecord struct {
	Question    string  `json:"question"`
	Solution    string  `json:"solution"`
	Output      string  `json:"output"`
	Generated   string  `json:"generated"`
	RewardScore float64 `json:"reward_score"`
	RunID       string  `json:"run_id,omitempty"`
}
