package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Matching
	AgentSelection  string // longest_idle | registration_order
	PromotionMode   string // single | drain
	SLThresholdSecs int
	SLTarget        int

	// Monitoring
	OfferAlertSecs int
	QueueAlertSecs int
	SampleInterval time.Duration

	// Call simulator control API, proxied under /internal/sim
	SimURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AgentSelection: getEnv("AGENT_SELECTION", "longest_idle"),
		PromotionMode:  getEnv("PROMOTION_MODE", "single"),
		SimURL:         getEnv("SIM_URL", "http://localhost:8081"),
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	maxMessageSize, err := strconv.ParseInt(getEnv("WS_MAX_MESSAGE_SIZE", "65536"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_MAX_MESSAGE_SIZE: %w", err)
	}
	config.MaxMessageSize = maxMessageSize

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout

	ints := []struct {
		key  string
		def  string
		dest *int
	}{
		{"SL_THRESHOLD_SECS", "20", &config.SLThresholdSecs},
		{"SL_TARGET", "80", &config.SLTarget},
		{"OFFER_ALERT_SECS", "30", &config.OfferAlertSecs},
		{"QUEUE_ALERT_SECS", "120", &config.QueueAlertSecs},
	}
	for _, v := range ints {
		n, err := strconv.Atoi(getEnv(v.key, v.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dest = n
	}

	sampleMs, err := strconv.Atoi(getEnv("SAMPLE_INTERVAL_MS", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid SAMPLE_INTERVAL_MS: %w", err)
	}
	if sampleMs <= 0 {
		return nil, fmt.Errorf("invalid SAMPLE_INTERVAL_MS: must be positive, got %d", sampleMs)
	}
	config.SampleInterval = time.Duration(sampleMs) * time.Millisecond

	switch config.AgentSelection {
	case "longest_idle", "registration_order":
	default:
		return nil, fmt.Errorf("invalid AGENT_SELECTION: %q", config.AgentSelection)
	}

	switch config.PromotionMode {
	case "single", "drain":
	default:
		return nil, fmt.Errorf("invalid PROMOTION_MODE: %q", config.PromotionMode)
	}

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
