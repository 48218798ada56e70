package orchestrator

import (
	"fmt"

	"github.com/lamim/grporeward/pkg/models"
)

// validateBatch checks that every sample shares the batch response width and
// carries a mask covering its prompt. Without a tokenizer every sample must
// carry its response text.
func validateBatch(batch *models.Batch, textOnly bool) error {
	if len(batch.Samples) == 0 {
		return fmt.Errorf("batch has no samples")
	}

	width := batch.ResponseLength()
	for i := range batch.Samples {
		s := &batch.Samples[i]
		if len(s.Responses) != width {
			return fmt.Errorf("sample %d has %d response tokens, batch width is %d", i, len(s.Responses), width)
		}
		if len(s.AttentionMask) < len(s.Prompts) {
			return fmt.Errorf("sample %d attention mask (%d) is shorter than its prompt (%d)", i, len(s.AttentionMask), len(s.Prompts))
		}
		if textOnly && s.ResponseText == "" {
			return fmt.Errorf("sample %d has no response_text and no tokenizer is configured", i)
		}
	}
	if width == 0 {
		return fmt.Errorf("batch has no response tokens")
	}
	return nil
}
