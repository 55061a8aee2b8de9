package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvLoader loads environment variables from a .env file so secrets
// (Postgres DSN, Kafka SASL credentials, gateway URL) come from one place.
type EnvLoader struct {
	loaded bool
	path   string
}

// NewEnvLoader creates an environment loader
func NewEnvLoader() *EnvLoader {
	return &EnvLoader{}
}

// Load loads environment variables from .env file in project root
// This ensures all secrets come from a single source
func (e *EnvLoader) Load() error {
	if e.loaded {
		return nil // Already loaded
	}

	// Try to find .env file in current directory or parent directories
	envPath, err := findEnvFile()
	if err != nil {
		return fmt.Errorf("failed to find .env file: %w\nPlease create .env from .env.example", err)
	}

	e.path = envPath

	// Load .env file
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	e.loaded = true
	return nil
}

// MustLoad loads .env or prints setup hints and exits with status 1 (use for CLI commands)
func (e *EnvLoader) MustLoad() {
	if err := e.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nQuick setup:\n")
		fmt.Fprintf(os.Stderr, "  1. cp .env.example .env\n")
		fmt.Fprintf(os.Stderr, "  2. Edit .env and add your INGESTD_POSTGRES_DSN\n")
		fmt.Fprintf(os.Stderr, "  3. Verify .env is in .gitignore\n")
		os.Exit(1)
	}
}

// GetPath returns the path to the loaded .env file
func (e *EnvLoader) GetPath() string {
	return e.path
}

// Validate checks that the variables required for a cold start are present.
func (e *EnvLoader) Validate() error {
	required := []string{
		"INGESTD_GATEWAY_URL",
		"INGESTD_KAFKA_BROKERS",
	}

	missing := []string{}
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	return nil
}

// findEnvFile searches for .env file in current and parent directories
func findEnvFile() (string, error) {
	// Try current directory first
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Search up the directory tree (max 5 levels)
	searchPath := cwd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(searchPath, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}

		// Move up one directory
		parent := filepath.Dir(searchPath)
		if parent == searchPath {
			break // Reached root
		}
		searchPath = parent
	}

	return "", fmt.Errorf(".env file not found in %s or parent directories", cwd)
}

// Helper functions for type-safe environment variable access

// GetString returns string value or default
func GetString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// GetInt returns int value or default
func GetInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// GetBool returns bool value or default
func GetBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
