package mathverify

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRegex        = regexp.MustCompile(`-?\d+(?:,\d{3})*(?:\.\d+)?`)
	thousandsRegex     = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	textCommandRegex   = regexp.MustCompile(`\\(?:text|mathrm|textbf|mathbf|operatorname)\s*\{([^{}]*)\}`)
	implicitMulRegex   = regexp.MustCompile(`(\d|\))\s*([a-zA-Z(])`)
	trailingUnitsRegex = regexp.MustCompile(`(\d)\s+[a-zA-Z]+(?:\s*/\s*[a-zA-Z]+)*$`)
)

var boxCommands = []string{`\boxed`, `\fbox`}

// LastBoxed returns the content of the last \boxed{...} (or \fbox{...}) in
// text, honouring nested braces. ok is false when no complete box exists.
func LastBoxed(text string) (string, bool) {
	start := -1
	for _, cmd := range boxCommands {
		if idx := strings.LastIndex(text, cmd); idx > start {
			start = idx
		}
	}
	for start >= 0 {
		if content, ok := boxedAt(text, start); ok {
			return content, true
		}
		// An unterminated box; fall back to an earlier one
		prev := -1
		for _, cmd := range boxCommands {
			if idx := strings.LastIndex(text[:start], cmd); idx > prev {
				prev = idx
			}
		}
		start = prev
	}
	return "", false
}

func boxedAt(text string, start int) (string, bool) {
	rest := text[start:]
	open := strings.IndexByte(rest, '{')
	if open < 0 {
		return "", false
	}
	// Only whitespace may separate the command from its argument
	for _, cmd := range boxCommands {
		if strings.HasPrefix(rest, cmd) && strings.TrimSpace(rest[len(cmd):open]) != "" {
			return "", false
		}
	}
	depth := 0
	for i := open; i < len(rest); i++ {
		switch rest[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[open+1 : i], true
			}
		}
	}
	return "", false
}

// FirstNumber returns the numeric answer of text. A boxed answer is evaluated
// as an expression first, then searched for its first literal; unboxed text
// yields its first literal.
func FirstNumber(text string) (float64, error) {
	if boxed, ok := LastBoxed(text); ok {
		norm := normalize(boxed)
		if v, ok := evaluate(norm); ok {
			return v, nil
		}
		if v, err := firstNumberIn(norm); err == nil {
			return v, nil
		}
	}
	return firstNumberIn(text)
}

func firstNumberIn(text string) (float64, error) {
	match := numberRegex.FindString(text)
	if match == "" {
		return 0, ErrNoAnswer
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, ErrNoAnswer
	}
	return v, nil
}

// lastNumber is the fallback answer for unboxed free text
func lastNumber(text string) (string, bool) {
	matches := numberRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1], true
}

// normalize rewrites a LaTeX answer into a form govaluate can evaluate
func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "$")

	for textCommandRegex.MatchString(s) {
		s = textCommandRegex.ReplaceAllString(s, "$1")
	}

	replacer := strings.NewReplacer(
		`\left`, "",
		`\right`, "",
		`\!`, "",
		`\,`, "",
		`\;`, "",
		`\:`, "",
		`\ `, "",
		`\displaystyle`, "",
		`^\circ`, "",
		`^{\circ}`, "",
		`\%`, "",
		`%`, "",
		`\dfrac`, `\frac`,
		`\tfrac`, `\frac`,
		`\cdot`, "*",
		`\times`, "*",
		`\div`, "/",
		`\pi`, "pi",
		`\infty`, "inf",
	)
	s = replacer.Replace(s)

	// x = 5 -> 5
	if idx := strings.LastIndex(s, "="); idx >= 0 {
		s = s[idx+1:]
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	s = trailingUnitsRegex.ReplaceAllString(s, "$1")

	if thousandsRegex.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}

	s = rewriteFracs(s)
	s = rewriteSqrts(s)

	s = strings.NewReplacer("{", "(", "}", ")", "^", "**", `\`, "").Replace(s)
	s = implicitMulRegex.ReplaceAllString(s, "$1*$2")
	return strings.TrimSpace(s)
}

// rewriteFracs turns \frac{a}{b} into ((a)/(b)), innermost first
func rewriteFracs(s string) string {
	for {
		idx := strings.LastIndex(s, `\frac`)
		if idx < 0 {
			return s
		}
		num, afterNum, ok := braceGroup(s, idx+len(`\frac`))
		if !ok {
			return s
		}
		den, afterDen, ok := braceGroup(s, afterNum)
		if !ok {
			return s
		}
		s = s[:idx] + "((" + num + ")/(" + den + "))" + s[afterDen:]
	}
}

// rewriteSqrts turns \sqrt{a} into sqrt(a)
func rewriteSqrts(s string) string {
	for {
		idx := strings.LastIndex(s, `\sqrt`)
		if idx < 0 {
			return s
		}
		arg, after, ok := braceGroup(s, idx+len(`\sqrt`))
		if !ok {
			return s
		}
		s = s[:idx] + "sqrt(" + arg + ")" + s[after:]
	}
}

// braceGroup reads a {...} group (or a single character) starting at pos
func braceGroup(s string, pos int) (string, int, bool) {
	for pos < len(s) && s[pos] == ' ' {
		pos++
	}
	if pos >= len(s) {
		return "", pos, false
	}
	if s[pos] != '{' {
		return s[pos : pos+1], pos + 1, true
	}
	depth := 0
	for i := pos; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[pos+1 : i], i + 1, true
			}
		}
	}
	return "", pos, false
}
