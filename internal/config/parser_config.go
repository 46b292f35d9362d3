package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ParserConfig 解析器可调参数
type ParserConfig struct {
	// MinimumSegmentSize in seconds. A trailing template segment shorter than
	// this is taken as a rounding artifact of the period duration.
	MinimumSegmentSize float64 `json:"minimum_segment_size"`

	// MaximumTimeRoundingError in seconds, multiplied by the timescale when
	// comparing segment boundaries
	MaximumTimeRoundingError float64 `json:"maximum_time_rounding_error"`

	// FallbackLifetimeWhenMinimumUpdatePeriodIsZero in seconds
	FallbackLifetimeWhenMinimumUpdatePeriodIsZero float64 `json:"fallback_lifetime"`
}

// DefaultParserConfig 默认配置
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		MinimumSegmentSize:       0.005,
		MaximumTimeRoundingError: 1.0 / 60,
		FallbackLifetimeWhenMinimumUpdatePeriodIsZero: 3,
	}
}

// Load reads .env files into the environment. A missing file is not an
// error worth reporting, callers usually ignore the result.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the variable or fallback when unset or empty
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt 读取整数环境变量
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat 读取浮点环境变量, 非正数视为未设置
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

// ParserConfigFromEnv overrides the defaults with the MPD_* variables
func ParserConfigFromEnv() ParserConfig {
	cfg := DefaultParserConfig()
	cfg.MinimumSegmentSize = GetEnvFloat(MpdMinimumSegmentSize, cfg.MinimumSegmentSize)
	cfg.MaximumTimeRoundingError = GetEnvFloat(MpdMaximumTimeRoundingError, cfg.MaximumTimeRoundingError)
	cfg.FallbackLifetimeWhenMinimumUpdatePeriodIsZero = GetEnvFloat(MpdFallbackLifetime, cfg.FallbackLifetimeWhenMinimumUpdatePeriodIsZero)
	return cfg
}
