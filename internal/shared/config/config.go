package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const defaultSourceRoot = "./Calls"

// Config holds importer configuration.
type Config struct {
	DatabaseURL string
	SourceRoot  string
	ExtListPath string
	Env         string
	LogLevel    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of a local .env for dev convenience.
	_ = godotenv.Load()

	return Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SourceRoot:  getEnv("CALLS_ROOT_DIR", defaultSourceRoot),
		ExtListPath: getEnv("EXTLIST_PATH", "ExtList.data"),
		Env:         normalizeEnv(getEnv("ENVIRONMENT", "local")),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	default:
		return "local"
	}
}
