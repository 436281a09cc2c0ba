// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetBatchTimeout() time.Duration
	GetBatchMaxRetry() int
}

// AnalyticsConfig provides tunables for the analytics engines.
type AnalyticsConfig interface {
	GetAnalysisDays() int
	GetGracePeriodDays() int
	GetMinSampleSize() int
	GetScoreStalenessHours() int
	GetWorstCaseFloorRate() float64
	GetDefaultStageWinRate() float64
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	BatchTimeout     time.Duration
	BatchMaxRetry    int

	AnalysisDays        int
	GracePeriodDays     int
	MinSampleSize       int
	ScoreStalenessHours int
	WorstCaseFloorRate  float64
	DefaultStageWinRate float64
}

// Load reads configuration from the environment, with .env support for
// local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "analytics"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
		BatchTimeout:     mustDuration(getEnv("BATCH_TIMEOUT", "1h")),
		BatchMaxRetry:    mustInt(getEnv("BATCH_MAX_RETRY", "3")),

		AnalysisDays:        mustInt(getEnv("ANALYSIS_DAYS", "90")),
		GracePeriodDays:     mustInt(getEnv("GRACE_PERIOD_DAYS", "1")),
		MinSampleSize:       mustInt(getEnv("MIN_SAMPLE_SIZE", "5")),
		ScoreStalenessHours: mustInt(getEnv("SCORE_STALENESS_HOURS", "24")),
		WorstCaseFloorRate:  mustFloat(getEnv("WORST_CASE_FLOOR_RATE", "0.10")),
		DefaultStageWinRate: mustFloat(getEnv("DEFAULT_STAGE_WIN_RATE", "0.30")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.MinSampleSize < 1 {
		return nil, fmt.Errorf("MIN_SAMPLE_SIZE must be at least 1")
	}
	if cfg.GracePeriodDays < 0 {
		return nil, fmt.Errorf("GRACE_PERIOD_DAYS cannot be negative")
	}

	return cfg, nil
}

// DatabaseConfig implementation.
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation.
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation.
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetBatchTimeout() time.Duration { return c.BatchTimeout }
func (c *Config) GetBatchMaxRetry() int          { return c.BatchMaxRetry }

// AnalyticsConfig implementation.
func (c *Config) GetAnalysisDays() int             { return c.AnalysisDays }
func (c *Config) GetGracePeriodDays() int          { return c.GracePeriodDays }
func (c *Config) GetMinSampleSize() int            { return c.MinSampleSize }
func (c *Config) GetScoreStalenessHours() int      { return c.ScoreStalenessHours }
func (c *Config) GetWorstCaseFloorRate() float64   { return c.WorstCaseFloorRate }
func (c *Config) GetDefaultStageWinRate() float64  { return c.DefaultStageWinRate }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
