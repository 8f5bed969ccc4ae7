// Package config provides centralized configuration for qichat:
// environment variables and the on-disk layout under the qichat home.
package config

import (
	"os"
	"path/filepath"
	"sync"
)

// Env holds all qichat environment variables.
type Env struct {
	// Home overrides the qichat home directory (QICHAT_HOME)
	Home string

	// Model is the default completion model (QICHAT_MODEL)
	Model string

	// NoResume disables resuming the last active chat at launch (QICHAT_NO_RESUME)
	NoResume bool

	// APIKey is the completion API key (OPENAI_API_KEY)
	APIKey string

	// BaseURL overrides the completion API base URL (OPENAI_BASE_URL)
	BaseURL string
}

var (
	env     *Env
	envOnce sync.Once
)

// GetEnv returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func GetEnv() *Env {
	envOnce.Do(func() {
		env = &Env{
			Home:     os.Getenv("QICHAT_HOME"),
			Model:    getEnvDefault("QICHAT_MODEL", "gpt-4o-mini"),
			NoResume: os.Getenv("QICHAT_NO_RESUME") == "1",
			APIKey:   os.Getenv("OPENAI_API_KEY"),
			BaseURL:  os.Getenv("OPENAI_BASE_URL"),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
	paths = nil
	pathsOnce = sync.Once{}
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Paths holds the standard qichat directory layout.
type Paths struct {
	// Home is the qichat home directory (~/.qichat)
	Home string

	// History is the conversation history directory (~/.qichat/history)
	History string

	// SettingsDB is the sqlite settings database (~/.qichat/qichat.db)
	SettingsDB string

	// EnvFile is the .env file path (~/.qichat/.env)
	EnvFile string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
// QICHAT_HOME takes precedence over the default under the user home.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		root := GetEnv().Home
		if root == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				home = "."
			}
			root = filepath.Join(home, ".qichat")
		}

		paths = &Paths{
			Home:       root,
			History:    filepath.Join(root, "history"),
			SettingsDB: filepath.Join(root, "qichat.db"),
			EnvFile:    filepath.Join(root, ".env"),
		}
	})
	return paths
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
