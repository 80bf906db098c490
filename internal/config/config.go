// Package config loads server settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
)

const (
	defaultPort          = 8080
	defaultDBPath        = "./data/splits.db"
	defaultMirrorBackend = "sqlite"
)

// Config holds everything the server needs at startup. Ledger and AI
// API keys are supplied per request by callers; the optional defaults
// here only back requests that omit them.
type Config struct {
	Port          int
	MirrorBackend string // "sqlite" or "mongo"
	DBPath        string
	MongoURI      string

	LedgerBaseURL string
	VisionBaseURL string
	VisionModel   string

	DefaultLedgerKey string
	DefaultVisionKey string
}

// Load reads the configuration from the environment, falling back to
// defaults for anything unset. Malformed numeric values are logged and
// replaced with their defaults rather than failing startup.
func Load() *Config {
	return &Config{
		Port:          intEnv("PORT", defaultPort),
		MirrorBackend: getEnv("MIRROR_BACKEND", defaultMirrorBackend),
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		MongoURI:      os.Getenv("MONGO_URI"),

		LedgerBaseURL: os.Getenv("LEDGER_BASE_URL"),
		VisionBaseURL: os.Getenv("VISION_BASE_URL"),
		VisionModel:   os.Getenv("VISION_MODEL"),

		DefaultLedgerKey: os.Getenv("SPLITWISE_API_KEY"),
		DefaultVisionKey: os.Getenv("GEMINI_API_KEY"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid numeric env value, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return parsed
}
