package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BackendURL   string
	APIPrefix    string
	HTTPPort     string
	LogLevel     string
	StateDB      string
	AgentURL     string
	PollInterval time.Duration
	ProxyTimeout time.Duration
	CacheTTL     time.Duration
	CacheSize    int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		BackendURL:   strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
		APIPrefix:    getEnv("API_PREFIX", "/api/v1"),
		HTTPPort:     getEnv("HTTP_PORT", "3000"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		StateDB:      getEnv("STATE_DB", "notebook_state.db"),
		AgentURL:     getEnv("AGENT_URL", ""),
		PollInterval: time.Duration(getEnvAsInt("POLL_INTERVAL_SECONDS", 3)) * time.Second,
		ProxyTimeout: time.Duration(getEnvAsInt("PROXY_TIMEOUT_SECONDS", 30)) * time.Second,
		CacheTTL:     time.Duration(getEnvAsInt("VIEW_CACHE_TTL_SECONDS", 5)) * time.Second,
		CacheSize:    getEnvAsInt("VIEW_CACHE_SIZE", 256),
	}

	if AppConfig.BackendURL == "" {
		log.Fatal("BACKEND_URL environment variable is required")
	}
}

// Debug reports whether LOG_LEVEL asks for verbose output.
func (c Config) Debug() bool {
	return strings.EqualFold(c.LogLevel, "DEBUG")
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
