package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the prefix format of every date-stamped log file
const DateLayout = "20060102"

// Session owns the log directory and the date stamp shared by every log file
// written by this process. The date is resolved once at startup.
type Session struct {
	logDir string
	date   string
	runID  string
	logger *slog.Logger
}

// NewSession creates the log directory if needed and fixes the date stamp
func NewSession(logDir string, now time.Time, logger *slog.Logger) (*Session, error) {
	if logDir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	s := &Session{
		logDir: logDir,
		date:   now.Format(DateLayout),
		runID:  uuid.NewString(),
		logger: logger,
	}
	logger.Info("Using log directory", "path", logDir, "date", s.date, "run_id", s.runID)
	return s, nil
}

// LogDir returns the log directory
func (s *Session) LogDir() string {
	return s.logDir
}

// Date returns the YYYYMMDD stamp used for this process
func (s *Session) Date() string {
	return s.date
}

// RunID identifies this process in every log line it writes
func (s *Session) RunID() string {
	return s.runID
}

// TrainingLogPath returns <log_dir>/<date>-log_train.json
func (s *Session) TrainingLogPath() string {
	return filepath.Join(s.logDir, s.date+"-log_train.json")
}

// VerifierLogPath returns <log_dir>/<date>-model_verifier.json
func (s *Session) VerifierLogPath() string {
	return filepath.Join(s.logDir, s.date+"-model_verifier.json")
}

// LogPath returns the path of the structured process log
func (s *Session) LogPath() string {
	return filepath.Join(s.logDir, "reward.log")
}

// TrainingLogPathFor returns the training log of another day in the same directory
func (s *Session) TrainingLogPathFor(date string) (string, error) {
	if err := ValidateLogDate(date); err != nil {
		return "", err
	}
	return filepath.Join(s.logDir, date+"-log_train.json"), nil
}
