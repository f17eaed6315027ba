package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the tabsense agent.
type Config struct {
	// CDP connection settings
	CDPAddress   string
	CDPPort      int
	TabURLFilter string
	TabPollMS    int

	// HTTP API settings
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Enrichment collaborators
	ClassifierURL         string
	SummarizerAPIKey      string
	SummarizerBaseURL     string
	SummarizerModel       string
	CollaboratorTimeoutMS int

	// Result store
	StoreDSN string

	// Change-detection tuning. Empirically chosen defaults; kept
	// configurable rather than hardcoded in the tracker.
	DebounceMS      int
	QuietIntervalMS int
	BurstThreshold  int

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:            getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:               getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		TabURLFilter:          getEnvOrDefault("TABSENSE_TAB_URL_FILTER", ""),
		TabPollMS:             getEnvIntOrDefault("TABSENSE_TAB_POLL_MS", 2000),
		BindAddr:              getEnvOrDefault("TABSENSE_BIND_ADDR", "127.0.0.1:8377"),
		PortCandidates:        getEnvListOrDefault("TABSENSE_PORT_CANDIDATES", []string{"127.0.0.1:8378", "127.0.0.1:8379"}),
		PortAutoFallback:      getEnvBoolOrDefault("TABSENSE_PORT_AUTO_FALLBACK", true),
		ClassifierURL:         getEnvOrDefault("TABSENSE_CLASSIFIER_URL", "http://127.0.0.1:8000/generate"),
		SummarizerAPIKey:      os.Getenv("TABSENSE_SUMMARIZER_API_KEY"),
		SummarizerBaseURL:     getEnvOrDefault("TABSENSE_SUMMARIZER_BASE_URL", ""),
		SummarizerModel:       getEnvOrDefault("TABSENSE_SUMMARIZER_MODEL", "gpt-4o-mini"),
		CollaboratorTimeoutMS: getEnvIntOrDefault("TABSENSE_COLLABORATOR_TIMEOUT_MS", 30000),
		StoreDSN:              getEnvOrDefault("TABSENSE_STORE_DSN", "file:./tabsense_data"),
		DebounceMS:            getEnvIntOrDefault("TABSENSE_DEBOUNCE_MS", 500),
		QuietIntervalMS:       getEnvIntOrDefault("TABSENSE_QUIET_INTERVAL_MS", 1000),
		BurstThreshold:        getEnvIntOrDefault("TABSENSE_BURST_THRESHOLD", 2),
		LogLevel:              strings.ToLower(getEnvOrDefault("TABSENSE_LOG_LEVEL", "info")),
		LogFile:               getEnvOrDefault("TABSENSE_LOG_FILE", "logs/tabsense.log"),
	}

	if cfg.DebounceMS < 1 {
		cfg.DebounceMS = 1
	}
	if cfg.BurstThreshold < 1 {
		cfg.BurstThreshold = 1
	}

	return cfg, nil
}

// CDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
