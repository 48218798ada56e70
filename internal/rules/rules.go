// Package rules holds the per-task scoring rules applied to a finished response.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/lamim/grporeward/pkg/models"
)

var (
	// ErrParse means no answer could be extracted from the output or reference
	ErrParse = errors.New("failed to parse answer")
	// ErrMissingLimits means a MedCalc-Bench sample carried no interval
	ErrMissingLimits = errors.New("missing limits")
	// ErrJudgeEmpty means the judge returned no usable reply
	ErrJudgeEmpty = errors.New("judge returned an empty reply")
)

// Input is everything a rule may look at
type Input struct {
	Messages  []models.Message
	Output    string
	Reference string
	Limits    *models.Interval
}

// Rule scores one finished response
type Rule interface {
	Score(ctx context.Context, in Input) (models.Score, error)
}

// RuleFunc adapts a function to the Rule interface
type RuleFunc func(ctx context.Context, in Input) (models.Score, error)

// Score calls f
func (f RuleFunc) Score(ctx context.Context, in Input) (models.Score, error) {
	return f(ctx, in)
}

// Failure records why a rule could not produce a score. Kind is one of the
// package sentinels so callers can match with errors.Is.
type Failure struct {
	Kind error
	Task models.TaskKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s rule: %v: %v", f.Task, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s rule: %v", f.Task, f.Kind)
}

// Unwrap exposes both the kind and the underlying cause
func (f *Failure) Unwrap() []error {
	if f.Err != nil {
		return []error{f.Kind, f.Err}
	}
	return []error{f.Kind}
}

func fail(task models.TaskKind, kind, err error) *Failure {
	return &Failure{Kind: kind, Task: task, Err: err}
}

// MathVerifier decides mathematical equivalence of two answer texts
type MathVerifier interface {
	Verify(output, reference string) (bool, error)
}

// Set resolves the rule for each task kind
type Set struct {
	math      Rule
	choice    Rule
	quality   Rule
	medCalc   Rule
	openEnded Rule
}

// NewSet wires the built-in rules around the given collaborators
func NewSet(verifier MathVerifier, openEnded Rule) *Set {
	return &Set{
		math:      Math(verifier),
		choice:    Choice(),
		quality:   QualityControl(),
		medCalc:   MedCalc(),
		openEnded: openEnded,
	}
}

// For returns the rule for kind
func (s *Set) For(kind models.TaskKind) Rule {
	switch kind {
	case models.TaskMath:
		return s.math
	case models.TaskChoice:
		return s.choice
	case models.TaskQualityControl:
		return s.quality
	case models.TaskMedCalc:
		return s.medCalc
	case models.TaskOpenEnded:
		return s.openEnded
	default:
		panic(fmt.Sprintf("rules: unhandled task kind %d", int(kind)))
	}
}

func binary(ok bool) models.Score {
	if ok {
		return models.Scalar(1.0)
	}
	return models.Scalar(0.0)
}
