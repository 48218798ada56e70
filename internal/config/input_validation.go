package config

import (
	"fmt"
	"net/url"
	"unicode"
)

const (
	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB

	// MaxMarkerLength bounds the completion marker
	MaxMarkerLength = 64
)

// ValidateInputs performs additional security validation on user-controllable fields.
func (c *Config) ValidateInputs() error {
	if len(c.Reward.CompletionMarker) > MaxMarkerLength {
		return fmt.Errorf("reward.completion_marker exceeds maximum length of %d (got %d)",
			MaxMarkerLength, len(c.Reward.CompletionMarker))
	}

	if err := validateModelName(c.Judge.ModelName); err != nil {
		return err
	}

	if err := validateBaseURL(c.Judge.BaseURL); err != nil {
		return err
	}

	if len(c.Judge.PromptTemplate) > MaxTemplateSize {
		return fmt.Errorf("judge.prompt_template exceeds maximum size of %d bytes (got %d)",
			MaxTemplateSize, len(c.Judge.PromptTemplate))
	}

	return nil
}

// validateModelName checks model name for security issues
func validateModelName(modelName string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("judge.model_name exceeds maximum length of %d (got %d)",
			MaxModelNameLength, len(modelName))
	}

	if containsControlChars(modelName) {
		return fmt.Errorf("judge.model_name contains invalid control characters")
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("judge.base_url is invalid: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("judge.base_url must use http or https scheme (got %s)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("judge.base_url must have a host")
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
