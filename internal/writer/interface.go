package writer

import "github.com/lamim/grporeward/pkg/models"

// TrainingSink receives the grouped per-question entries of a batch
type TrainingSink interface {
	AppendTraining(entries []models.LogEntry) error
}

// VerifierSink receives one record per judged answer
type VerifierSink interface {
	AppendVerifier(rec models.VerifierRecord) error
}
