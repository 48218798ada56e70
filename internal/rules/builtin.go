package rules

import (
	"context"
	"regexp"
	"slices"

	"github.com/lamim/grporeward/internal/mathverify"
	"github.com/lamim/grporeward/internal/util"
	"github.com/lamim/grporeward/pkg/models"
)

var (
	truthRegex  = regexp.MustCompile(`(true|false)`)
	choiceRegex = regexp.MustCompile(`\\boxed\{(?:\\text\{)?([ABCDEFG])(?:\..*)?(?:\})?\}`)
)

// QualityControl scores 1 when the ordered true/false tokens of the output
// equal those of the reference
func QualityControl() Rule {
	return RuleFunc(func(_ context.Context, in Input) (models.Score, error) {
		got := truthRegex.FindAllString(in.Output, -1)
		want := truthRegex.FindAllString(in.Reference, -1)
		return binary(slices.Equal(got, want)), nil
	})
}

// Choice scores 1 when the ordered boxed option letters match
func Choice() Rule {
	return RuleFunc(func(_ context.Context, in Input) (models.Score, error) {
		return binary(slices.Equal(boxedLetters(in.Output), boxedLetters(in.Reference))), nil
	})
}

func boxedLetters(s string) []string {
	matches := choiceRegex.FindAllStringSubmatch(s, -1)
	letters := make([]string, 0, len(matches))
	for _, m := range matches {
		letters = append(letters, m[1])
	}
	return letters
}

// Math scores 1 when the verifier finds the answers equivalent
func Math(verifier MathVerifier) Rule {
	return RuleFunc(func(_ context.Context, in Input) (models.Score, error) {
		ok, err := verifier.Verify(in.Output, in.Reference)
		if err != nil {
			return models.Scalar(0), fail(models.TaskMath, ErrParse, err)
		}
		return binary(ok), nil
	})
}

// MedCalc scores 1 when the first number of the answer lies inside the
// sample's inclusive limits
func MedCalc() Rule {
	return RuleFunc(func(_ context.Context, in Input) (models.Score, error) {
		if in.Limits == nil {
			return models.Scalar(0), fail(models.TaskMedCalc, ErrMissingLimits, nil)
		}
		value, err := mathverify.FirstNumber(util.StripThinkTags(in.Output))
		if err != nil {
			return models.Scalar(0), fail(models.TaskMedCalc, ErrParse, err)
		}
		return binary(in.Limits.Contains(value)), nil
	})
}
