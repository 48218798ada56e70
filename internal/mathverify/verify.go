// Package mathverify decides whether a model answer is mathematically
// equivalent to a reference answer.
package mathverify

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Knetic/govaluate"
)

// ErrNoAnswer is returned when no answer can be extracted from a text
var ErrNoAnswer = errors.New("no answer found")

// DefaultTolerance is the relative tolerance for numeric comparison
const DefaultTolerance = 1e-6

var functions = map[string]govaluate.ExpressionFunction{
	"sqrt": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("sqrt takes one argument")
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("sqrt argument is not numeric")
		}
		return math.Sqrt(v), nil
	},
}

var constants = map[string]interface{}{
	"pi":  math.Pi,
	"inf": math.Inf(1),
}

// Answer is a parsed answer
type Answer struct {
	Raw        string
	Normalized string
	Value      float64
	Numeric    bool
}

// Verifier compares parsed answers
type Verifier struct {
	Tolerance float64
}

// New returns a verifier with the default tolerance
func New() *Verifier {
	return &Verifier{Tolerance: DefaultTolerance}
}

// Parse extracts the final answer from text: the last boxed expression when
// present, otherwise the whole text when it is a bare expression, otherwise
// the last number
func (v *Verifier) Parse(text string) (Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Answer{}, ErrNoAnswer
	}

	if boxed, ok := LastBoxed(text); ok {
		return parseExpression(boxed)
	}

	if ans, err := parseExpression(text); err == nil && ans.Numeric {
		return ans, nil
	}
	if num, ok := lastNumber(text); ok {
		return parseExpression(num)
	}
	if !strings.ContainsAny(text, " \n") {
		return parseExpression(text)
	}
	return Answer{}, ErrNoAnswer
}

func parseExpression(raw string) (Answer, error) {
	norm := normalize(raw)
	if norm == "" {
		return Answer{}, ErrNoAnswer
	}
	ans := Answer{Raw: raw, Normalized: norm}
	if value, ok := evaluate(norm); ok {
		ans.Value = value
		ans.Numeric = true
	}
	return ans, nil
}

func evaluate(expr string) (float64, bool) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return 0, false
	}
	result, err := e.Evaluate(constants)
	if err != nil {
		return 0, false
	}
	f, ok := result.(float64)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Equivalent reports whether two parsed answers are the same value
func (v *Verifier) Equivalent(a, b Answer) bool {
	if a.Numeric && b.Numeric {
		if a.Value == b.Value {
			return true
		}
		tol := v.Tolerance
		if tol <= 0 {
			tol = DefaultTolerance
		}
		return math.Abs(a.Value-b.Value) <= tol*math.Max(1, math.Abs(b.Value))
	}
	return canonical(a.Normalized) == canonical(b.Normalized)
}

// Verify parses both texts and compares them
func (v *Verifier) Verify(output, reference string) (bool, error) {
	gold, err := v.Parse(reference)
	if err != nil {
		return false, fmt.Errorf("failed to parse reference: %w", err)
	}
	answer, err := v.Parse(output)
	if err != nil {
		return false, fmt.Errorf("failed to parse answer: %w", err)
	}
	return v.Equivalent(answer, gold), nil
}

func canonical(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
