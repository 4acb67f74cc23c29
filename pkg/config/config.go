// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the settings for the gateway and analysis services.
type Config struct {
	APIPort        string
	GatewayPort    string
	GatewayURL     string
	LogLevel       string
	Environment    string
	OTLPEndpoint   string
	SigningKey     string
	ScoringProfile string
	ConfirmTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int
}

// Load reads configuration from FINGUARD_* environment variables, falling
// back to local development defaults.
func Load() *Config {
	apiPort := os.Getenv("FINGUARD_API_PORT")
	if apiPort == "" {
		apiPort = "8000"
	}

	gatewayPort := os.Getenv("FINGUARD_GATEWAY_PORT")
	if gatewayPort == "" {
		gatewayPort = "8001"
	}

	gatewayURL := os.Getenv("FINGUARD_GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:" + gatewayPort
	}

	logLevel := os.Getenv("FINGUARD_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	signingKey := os.Getenv("FINGUARD_SIGNING_KEY")
	if signingKey == "" {
		// Dev fallback only; production deployments must set their own key.
		signingKey = "finguard-dev-signing-key-not-for-production"
	}

	environment := os.Getenv("FINGUARD_ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	return &Config{
		APIPort:        apiPort,
		GatewayPort:    gatewayPort,
		GatewayURL:     gatewayURL,
		LogLevel:       logLevel,
		Environment:    environment,
		OTLPEndpoint:   os.Getenv("FINGUARD_OTLP_ENDPOINT"),
		SigningKey:     signingKey,
		ScoringProfile: os.Getenv("FINGUARD_SCORING_PROFILE"),
		ConfirmTimeout: durationEnv("FINGUARD_CONFIRM_TIMEOUT_SECONDS", 60*time.Second),
		RateLimitRPS:   intEnv("FINGUARD_RATE_LIMIT_RPS", 50),
		RateLimitBurst: intEnv("FINGUARD_RATE_LIMIT_BURST", 100),
	}
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
