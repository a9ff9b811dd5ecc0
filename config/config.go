// Package config resolves runtime settings from .env files and the
// environment. Command-line flags override what Load returns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Port        int
	DBPath      string
	DataPath    string
	LogDir      string
	RateTable   string // optional YAML rate table
	CORSOrigins []string
	LogLevel    string

	// EnvFiles lists the .env files that were read, in load order. Load runs
	// before logging is configured, so callers log these afterwards.
	EnvFiles []string
}

// Load loads the configuration from .env files and environment variables.
// Variables already set in the environment are never overwritten by a file.
func Load() (*AppConfig, error) {
	var loaded []string

	// 1. Next to the binary
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			loaded = append(loaded, envPath)
		}
	}

	// 2. Current working directory (development)
	if err := godotenv.Load(); err == nil {
		envPath, absErr := filepath.Abs(".env")
		if absErr != nil {
			envPath = ".env"
		}
		loaded = append(loaded, envPath)
	}

	cfg, err := fromEnv(exeDir)
	if err != nil {
		return nil, err
	}
	cfg.EnvFiles = loaded
	return cfg, nil
}

func fromEnv(exeDir string) (*AppConfig, error) {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}

	return &AppConfig{
		Port:        port,
		DBPath:      getEnv("DB_PATH", filepath.Join(dataPath, "progress.db")),
		DataPath:    dataPath,
		LogDir:      getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs")),
		RateTable:   getEnv("RATE_TABLE", ""),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "")),
		LogLevel:    getEnv("LOG_LEVEL", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
