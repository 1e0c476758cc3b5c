package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RelayConfig holds configuration for the mfa_relay daemon.
type RelayConfig struct {
	SourceURL       string
	RetryDelay      time.Duration
	DeliveryTimeout time.Duration

	CDPAddress   string
	CDPPort      int
	TabURLFilter string
	EvalTimeout  time.Duration

	StatusAddr         string
	StatusCandidates   []string
	StatusAutoFallback bool
	StatusCORSOrigins  []string
	LaunchBrowser      bool
	BrowserPath        string
	BrowserProfileDir  string
	BrowserStartURL    string
	SelectorsFile      string
	NtfyURL            string
	LogLevel           string
	LogFile            string
}

// LoadRelay reads relay configuration from environment variables.
func LoadRelay() (*RelayConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &RelayConfig{
		SourceURL:          getEnvOrDefault("RELAY_SOURCE_URL", "ws://localhost:3500/ws"),
		RetryDelay:         getEnvMillisOrDefault("RELAY_RETRY_DELAY_MS", 5000, 100),
		DeliveryTimeout:    getEnvMillisOrDefault("RELAY_DELIVERY_TIMEOUT_MS", 10000, 1000),
		CDPAddress:         getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:            getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		TabURLFilter:       getEnvOrDefault("RELAY_TAB_URL_FILTER", ""),
		EvalTimeout:        getEnvMillisOrDefault("RELAY_EVAL_TIMEOUT_MS", 3000, 500),
		StatusCandidates:   getEnvListOrDefault("RELAY_STATUS_PORT_CANDIDATES", []string{"127.0.0.1:3502", "127.0.0.1:3503"}),
		StatusAutoFallback: getEnvBoolOrDefault("RELAY_STATUS_PORT_AUTO_FALLBACK", true),
		StatusCORSOrigins:  getEnvListOrDefault("RELAY_STATUS_CORS_ORIGINS", nil),
		LaunchBrowser:      getEnvBoolOrDefault("RELAY_LAUNCH_BROWSER", false),
		BrowserPath:        getEnvOrDefault("RELAY_BROWSER_PATH", ""),
		BrowserProfileDir:  getEnvOrDefault("RELAY_BROWSER_PROFILE_DIR", "./browser_profile"),
		BrowserStartURL:    getEnvOrDefault("RELAY_BROWSER_START_URL", "about:blank"),
		SelectorsFile:      getEnvOrDefault("RELAY_SELECTORS_FILE", ""),
		NtfyURL:            getEnvOrDefault("RELAY_NTFY_URL", ""),
		LogLevel:           strings.ToLower(getEnvOrDefault("RELAY_LOG_LEVEL", "info")),
		LogFile:            getEnvOrDefault("RELAY_LOG_FILE", "logs/mfa_relay.log"),
	}

	// An explicitly empty RELAY_STATUS_ADDR disables the status API.
	cfg.StatusAddr = "127.0.0.1:3501"
	if v, ok := os.LookupEnv("RELAY_STATUS_ADDR"); ok {
		cfg.StatusAddr = strings.TrimSpace(v)
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *RelayConfig) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}
