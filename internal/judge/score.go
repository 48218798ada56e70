package judge

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	boxedRegex       = regexp.MustCompile(`\\boxed\{([^}]*)\}`)
	plainScoreRegex  = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,2})?)\s*(?:分)?\b`)
	equalsScoreRegex = regexp.MustCompile(`=\s*(\d{1,3}(?:\.\d{1,2})?)\b`)
)

// ExtractScore reads the 0-100 score from the last \boxed{} of a judge reply
// and maps it to [0, 1]. Scores at or below threshold become 0; anything
// unparseable is 0. Full-width forms are read as their ASCII equivalents.
func ExtractScore(reply string, threshold float64) float64 {
	// Full-width digits and braces fold to ASCII so the patterns see them
	reply = width.Fold.String(reply)
	boxes := boxedRegex.FindAllStringSubmatch(reply, -1)
	if len(boxes) == 0 {
		return 0
	}
	last := strings.TrimSpace(boxes[len(boxes)-1][1])

	if m := plainScoreRegex.FindStringSubmatch(last); m != nil {
		return scale(m[1], threshold)
	}
	if m := equalsScoreRegex.FindStringSubmatch(last); m != nil {
		return scale(m[1], threshold)
	}
	return 0
}

func scale(raw string, threshold float64) float64 {
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || score <= threshold {
		return 0
	}
	return math.Min(score/100, 1)
}
