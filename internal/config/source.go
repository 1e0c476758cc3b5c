package config

import (
	"strings"
	"time"
)

// SourceConfig holds configuration for the mfa_source dev broadcaster.
type SourceConfig struct {
	BindAddr  string
	Keepalive time.Duration
	LogLevel  string
	LogFile   string
}

// LoadSource reads source configuration from environment variables. Command
// line flags are applied by the caller.
func LoadSource() (*SourceConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	return &SourceConfig{
		BindAddr:  getEnvOrDefault("SOURCE_BIND_ADDR", "127.0.0.1:3500"),
		Keepalive: getEnvMillisOrDefault("SOURCE_KEEPALIVE_MS", 2000, 100),
		LogLevel:  strings.ToLower(getEnvOrDefault("SOURCE_LOG_LEVEL", "info")),
		LogFile:   getEnvOrDefault("SOURCE_LOG_FILE", "logs/mfa_source.log"),
	}, nil
}
