package writer

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var logDateRegex = regexp.MustCompile(`^\d{8}$`)

// ValidateLogDate validates a YYYYMMDD stamp before it is joined into a path.
// This prevents CWE-22 (Improper Limitation of a Pathname to a Restricted Directory)
func ValidateLogDate(date string) error {
	if date == "" {
		return fmt.Errorf("log date cannot be empty")
	}

	// Check for path traversal attempts
	if strings.Contains(date, "..") || strings.ContainsAny(date, "/\\") {
		return fmt.Errorf("invalid log date: contains path elements")
	}

	if !logDateRegex.MatchString(date) {
		return fmt.Errorf("invalid log date format: expected 'YYYYMMDD', got '%s'", date)
	}

	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid log date: %w", err)
	}

	return nil
}
