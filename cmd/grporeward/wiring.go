package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lamim/grporeward/internal/api"
	"github.com/lamim/grporeward/internal/config"
	"github.com/lamim/grporeward/internal/judge"
	"github.com/lamim/grporeward/internal/mathverify"
	"github.com/lamim/grporeward/internal/metrics"
	"github.com/lamim/grporeward/internal/orchestrator"
	"github.com/lamim/grporeward/internal/rules"
	"github.com/lamim/grporeward/internal/tokenizer"
	"github.com/lamim/grporeward/internal/writer"
)

// app holds everything a scoring command needs
type app struct {
	cfg     *config.Config
	session *writer.Session
	logger  *slog.Logger
	logFile *os.File
	manager *orchestrator.Manager
}

func (r *app) Close() {
	if r.logFile != nil {
		_ = r.logFile.Sync()
		_ = r.logFile.Close()
	}
}

func logLevel(cfg *config.Config) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	level, err := writer.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// buildApp wires session, logging, judge, rules and the batch manager
func buildApp(cfg *config.Config, secrets *config.Secrets) (*app, error) {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg)}))

	session, err := writer.NewSession(cfg.Logging.LogDir, time.Now(), bootstrap)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger, logFile, err := writer.SetupLogger(session, os.Stderr, logLevel(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	tok, err := tokenizer.FromConfig(cfg.Tokenize, cfg.Reward.CompletionMarker)
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	if tok == nil {
		logger.Warn("No tokenizer configured; samples must carry response_text")
	}

	collector := metrics.NewCollector()
	apiClient := api.NewClient(logger)

	judgeClient := judge.NewClient(cfg.Judge, secrets, apiClient, collector, logger)
	scorer := judge.NewScorer(cfg.Judge, judgeClient, writer.NewVerifierLog(session), collector, logger)
	set := rules.NewSet(mathverify.New(), scorer)

	dispatcher := orchestrator.NewDispatcher(cfg.Reward, tok, set, collector, logger)
	manager := orchestrator.NewManager(dispatcher, cfg.Pool.Width, writer.NewTrainingLog(session), collector, logger)

	logger.Info("grporeward starting",
		"version", Version,
		"config", configPath,
		"log_dir", session.LogDir(),
		"judge", cfg.Judge.BaseURL,
		"pool_width", cfg.Pool.Width)

	return &app{
		cfg:     cfg,
		session: session,
		logger:  logger,
		logFile: logFile,
		manager: manager,
	}, nil
}
