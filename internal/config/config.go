// Package config loads process configuration from environment variables, an
// optional .env file and YAML side files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv reads .env from the working directory when present. Values
// already set in the environment win. A missing file is not an error; it runs
// before logging is set up, so an unreadable one is returned to the caller.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
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

// getEnvMillisOrDefault reads a millisecond count and clamps it to min.
func getEnvMillisOrDefault(key string, defaultMS, minMS int) time.Duration {
	ms := getEnvIntOrDefault(key, defaultMS)
	if ms < minMS {
		ms = minMS
	}
	return time.Duration(ms) * time.Millisecond
}

// getEnvListOrDefault splits a comma separated value, dropping blanks. A
// variable that is set but empty yields an empty list.
func getEnvListOrDefault(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
