package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/lamim/grporeward/pkg/models"
)

// jsonlAppender appends JSON lines to a file, opening it per call so the file
// may be rotated or removed between batches
type jsonlAppender struct {
	path string
	mu   sync.Mutex
}

func (a *jsonlAppender) appendRecords(records []any) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // keep <|im_end|> readable
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", a.path, err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write %s: %w", a.path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", a.path, err)
	}
	return nil
}

// TrainingLog appends grouped entries to the date-stamped training log
type TrainingLog struct {
	appender jsonlAppender
	runID    string
}

// NewTrainingLog creates the training log sink for a session
func NewTrainingLog(s *Session) *TrainingLog {
	return &TrainingLog{appender: jsonlAppender{path: s.TrainingLogPath()}, runID: s.RunID()}
}

// AppendTraining writes one line per entry
func (l *TrainingLog) AppendTraining(entries []models.LogEntry) error {
	records := make([]any, 0, len(entries))
	for _, e := range entries {
		e.RunID = l.runID
		records = append(records, e)
	}
	return l.appender.appendRecords(records)
}

// VerifierLog appends judge diagnostics to the date-stamped verifier log
type VerifierLog struct {
	appender jsonlAppender
	runID    string
}

// NewVerifierLog creates the verifier log sink for a session
func NewVerifierLog(s *Session) *VerifierLog {
	return &VerifierLog{appender: jsonlAppender{path: s.VerifierLogPath()}, runID: s.RunID()}
}

// AppendVerifier writes a single record
func (l *VerifierLog) AppendVerifier(rec models.VerifierRecord) error {
	rec.RunID = l.runID
	return l.appender.appendRecords([]any{rec})
}

// ReadTrainingLog loads every entry of a training log file
func ReadTrainingLog(path string) ([]models.LogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read training log: %w", err)
	}

	var entries []models.LogEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	for line := 1; dec.More(); line++ {
		var e models.LogEntry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to parse training log entry %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
