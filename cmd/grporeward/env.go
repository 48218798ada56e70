package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lamim/grporeward/internal/config"
)

// loadEnvFile loads KEY=VALUE pairs into the environment
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.FieldsFunc(string(data), func(r rune) bool { return r == '\n' || r == '\r' }) {
		line = strings.TrimSpace(line)
		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if err := os.Setenv(strings.TrimSpace(key), trimQuotes(strings.TrimSpace(value))); err != nil {
			return err
		}
	}
	return nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// loadConfig reads the env file and configuration. A missing config file at
// the default path falls back to built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, *config.Secrets, error) {
	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		} else if err == nil && verbose {
			fmt.Fprintf(os.Stderr, "Loaded env file: %s\n", envFile)
		}
	}

	cfg, secrets, err := config.Load(configPath)
	if err == nil {
		return cfg, secrets, nil
	}
	if _, statErr := os.Stat(configPath); errors.Is(statErr, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		secrets, err := config.LoadSecrets()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
		}
		return config.Default(), secrets, nil
	}
	return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
}
