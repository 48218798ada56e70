package orchestrator

import "github.com/lamim/grporeward/pkg/models"

// Record is one scored completion before grouping
type Record struct {
	Question   string
	Completion string
	Solution   string
	Score      float64
}

// GroupByQuestion merges records sharing a question into one entry per
// question, in first-seen order. Each entry keeps the highest-scoring
// completion (the earliest on ties) and every score in record order.
func GroupByQuestion(records []Record) []models.LogEntry {
	index := make(map[string]int)
	var entries []models.LogEntry
	best := make([]float64, 0)

	for _, r := range records {
		i, ok := index[r.Question]
		if !ok {
			index[r.Question] = len(entries)
			entries = append(entries, models.LogEntry{
				Question:    r.Question,
				Completion:  r.Completion,
				Solution:    r.Solution,
				RewardScore: []float64{r.Score},
			})
			best = append(best, r.Score)
			continue
		}

		entries[i].RewardScore = append(entries[i].RewardScore, r.Score)
		if r.Score > best[i] {
			best[i] = r.Score
			entries[i].Completion = r.Completion
			entries[i].Solution = r.Solution
		}
	}
	return entries
}
