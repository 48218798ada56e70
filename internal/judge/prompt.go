package judge

import (
	"fmt"
	"strings"

	"github.com/lamim/grporeward/internal/util"
	"github.com/lamim/grporeward/pkg/models"
)

const emptyHistory = "无"

// Prompt is a rendered judge prompt and the question it embeds
type Prompt struct {
	Text     string
	Question string
}

// BuildPrompt renders the verifier template. With three or more turns the
// earlier turns become the history and the last turn the question; shorter
// conversations have no history and every turn forms the question.
func BuildPrompt(tmpl string, messages []models.Message, reference, output string) (Prompt, error) {
	history := emptyHistory
	var question string
	if len(messages) >= 3 {
		history = renderTurns(messages[:len(messages)-1])
		question = "user：" + strings.TrimSpace(messages[len(messages)-1].Content)
	} else {
		question = renderTurns(messages)
	}
	question = strings.TrimSpace(question)

	text, err := util.RenderTemplate(tmpl, map[string]interface{}{
		"History":   history,
		"Question":  question,
		"Reference": strings.TrimSpace(reference),
		"Candidate": strings.TrimSpace(output),
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to render judge template: %w", err)
	}
	return Prompt{Text: strings.TrimSpace(text), Question: question}, nil
}

func renderTurns(messages []models.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+"："+strings.TrimSpace(m.Content))
	}
	return strings.Join(lines, "\n")
}
