// Package config loads the memos configuration: a YAML file layered over
// DefaultConfig, followed by environment overrides (optionally read from a
// .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backend names.
const (
	BackendSQLite = "sqlite"
	BackendFiles  = "files"
	BackendMemory = "memory"
)

// Environment variables that override file settings.
const (
	EnvBackend        = "MEMOS_STORAGE_BACKEND"
	EnvPath           = "MEMOS_DB_PATH"
	EnvLanguage       = "MEMOS_LANGUAGE"
	EnvSpeechCommand  = "MEMOS_SPEECH_COMMAND"
	EnvInterimResults = "MEMOS_INTERIM_RESULTS"
	EnvLogDir         = "MEMOS_LOG_DIR"
)

// Config is the top-level configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Speech  SpeechConfig  `yaml:"speech"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig selects and locates the storage backend.
type StorageConfig struct {
	// Backend is one of sqlite, files or memory.
	Backend string `yaml:"backend"`
	// Path is the database file (sqlite) or directory (files).
	Path string `yaml:"path"`
}

// SpeechConfig configures dictation.
type SpeechConfig struct {
	Language        string `yaml:"language"`
	Continuous      bool   `yaml:"continuous"`
	InterimResults  bool   `yaml:"interim_results"`
	MaxAlternatives int    `yaml:"max_alternatives"`

	// Command is the external speech-to-text program. Empty disables
	// dictation.
	Command []string `yaml:"command"`
}

// LoggingConfig controls where session logs are written.
type LoggingConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(homeDir(), ".memos", "voice-memos.db"),
		},
		Speech: SpeechConfig{
			Language:        "ru-RU",
			Continuous:      true,
			MaxAlternatives: 1,
		},
	}
}

// DefaultPath returns ~/.memos/config.yaml.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".memos", "config.yaml")
}

// Load reads the configuration like Read and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads the YAML file at path over DefaultConfig and applies
// environment overrides without validating, so callers can layer further
// overrides first. A missing file is not an error.
func Read(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) without overriding ones already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from MEMOS_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvBackend); ok {
		c.Storage.Backend = v
	}
	if v, ok := os.LookupEnv(EnvPath); ok {
		c.Storage.Path = v
	}
	if v, ok := os.LookupEnv(EnvLanguage); ok {
		c.Speech.Language = v
	}
	if v, ok := os.LookupEnv(EnvSpeechCommand); ok {
		c.Speech.Command = strings.Fields(v)
	}
	if v, ok := os.LookupEnv(EnvInterimResults); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvInterimResults, err)
		}
		c.Speech.InterimResults = b
	}
	if v, ok := os.LookupEnv(EnvLogDir); ok {
		c.Logging.Dir = v
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendFiles:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for backend %q", c.Storage.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid storage backend: %s (must be 'sqlite', 'files' or 'memory')", c.Storage.Backend)
	}

	if c.Speech.Language == "" {
		return fmt.Errorf("speech language is required")
	}
	if c.Speech.MaxAlternatives < 1 {
		return fmt.Errorf("speech max_alternatives must be at least 1")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
