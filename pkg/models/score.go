package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ScoreKey is the structured-score key that carries the tensor-bound reward
const ScoreKey = "score"

// Score is either a scalar reward or a structured set of named sub-scores
type Score struct {
	Value float64
	Extra map[string]float64
}

// Scalar wraps a plain reward
func Scalar(v float64) Score {
	return Score{Value: v}
}

// Structured builds a structured score; the "score" key is forced to value
func Structured(value float64, extra map[string]float64) Score {
	fields := make(map[string]float64, len(extra)+1)
	for k, v := range extra {
		fields[k] = v
	}
	fields[ScoreKey] = value
	return Score{Value: value, Extra: fields}
}

// IsStructured reports whether the score carries sub-scores
func (s Score) IsStructured() bool {
	return s.Extra != nil
}

// Keys returns the structured keys in sorted order
func (s Score) Keys() []string {
	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes a scalar as a number and a structured score as an object
func (s Score) MarshalJSON() ([]byte, error) {
	if s.IsStructured() {
		return json.Marshal(s.Extra)
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON accepts either a number or an object with a "score" key
func (s *Score) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*s = Scalar(v)
		return nil
	}
	var fields map[string]float64
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("score must be a number or an object: %w", err)
	}
	value, ok := fields[ScoreKey]
	if !ok {
		return fmt.Errorf("structured score is missing %q", ScoreKey)
	}
	*s = Score{Value: value, Extra: fields}
	return nil
}
