package util

import (
	"regexp"
	"strings"
)

var (
	// Matches various think/reasoning tag formats
	thinkTagRegex = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	// Matches Chinese reasoning tags (some Chinese models use these)
	chineseThinkTagRegex = regexp.MustCompile(`(?i)<思考>([\s\S]*?)</思考>`)
	// A single reasoning block followed by a non-empty answer
	thinkFormatRegex = regexp.MustCompile(`(?s)^<think>\n.*\n</think>\n.+$`)
)

// ContainsThinkTags checks if the response contains think/reasoning tags
func ContainsThinkTags(response string) bool {
	return thinkTagRegex.MatchString(response) || chineseThinkTagRegex.MatchString(response)
}

// StripThinkTags removes think/reasoning tags and their content from response
func StripThinkTags(response string) string {
	result := thinkTagRegex.ReplaceAllString(response, "")
	result = chineseThinkTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// HasThinkFormat reports whether content is exactly one <think> block
// followed by an answer, with each tag appearing once
func HasThinkFormat(content string) bool {
	if !thinkFormatRegex.MatchString(content) {
		return false
	}
	return strings.Count(content, "<think>") == 1 && strings.Count(content, "</think>") == 1
}
