// Package config loads daemon configuration from the environment, with an
// optional .env file for development. Values have working defaults; Validate
// enforces floors that keep the periodic schedules and history caps sane.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	// Service addresses
	NatsURL       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Daemon surfaces
	HealthPort string
	LogLevel   string

	// Periodic schedules
	AlarmInterval     time.Duration
	PruneInterval     time.Duration
	ScanInterval      time.Duration
	ReassemblyTimeout time.Duration

	// History sizing
	HistoryRecentWindow  time.Duration
	HistoryRecentCap     int
	HistoryDownsampleCap int
	HistoryHorizon       time.Duration

	// Ingest
	QueueSize int

	// Widget registrations; empty selects the built-in set
	EquipmentFile string

	// EnvFile is the .env path the loader found, empty when configuration
	// came from the environment alone.
	EnvFile string
}

func Load() (*Config, error) {
	// Try multiple .env locations
	envPaths := []string{
		".env",
		"../.env",
		"/app/.env", // Docker
	}

	envFile := ""
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			envFile = path
			break
		}
	}

	cfg := &Config{
		NatsURL:       getEnvOrDefault("NATS_URL", "nats://localhost:4222"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		HealthPort: getEnvOrDefault("HEALTH_PORT", "8088"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),

		EquipmentFile: os.Getenv("EQUIPMENT_FILE"),
		EnvFile:       envFile,
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.AlarmInterval, err = getEnvDuration("ALARM_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.PruneInterval, err = getEnvDuration("PRUNE_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ScanInterval, err = getEnvDuration("SCAN_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReassemblyTimeout, err = getEnvDuration("REASSEMBLY_TIMEOUT", 750*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.HistoryRecentWindow, err = getEnvDuration("HISTORY_RECENT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.HistoryHorizon, err = getEnvDuration("HISTORY_HORIZON", time.Hour); err != nil {
		return nil, err
	}
	if cfg.HistoryRecentCap, err = getEnvInt("HISTORY_RECENT_CAP", 600); err != nil {
		return nil, err
	}
	if cfg.HistoryDownsampleCap, err = getEnvInt("HISTORY_DOWNSAMPLE_CAP", 240); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getEnvInt("QUEUE_SIZE", 512); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	required := map[string]string{
		"NATS_URL":    c.NatsURL,
		"HEALTH_PORT": c.HealthPort,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative")
	}

	intervals := map[string]time.Duration{
		"ALARM_INTERVAL":     c.AlarmInterval,
		"PRUNE_INTERVAL":     c.PruneInterval,
		"SCAN_INTERVAL":      c.ScanInterval,
		"REASSEMBLY_TIMEOUT": c.ReassemblyTimeout,
	}
	for name, d := range intervals {
		if d < 100*time.Millisecond {
			return fmt.Errorf("%s must be at least 100ms", name)
		}
	}

	if c.HistoryRecentWindow < time.Second {
		return fmt.Errorf("HISTORY_RECENT_WINDOW must be at least 1 second")
	}
	if c.HistoryHorizon < c.HistoryRecentWindow {
		return fmt.Errorf("HISTORY_HORIZON must not be shorter than HISTORY_RECENT_WINDOW")
	}

	caps := map[string]int{
		"HISTORY_RECENT_CAP":     c.HistoryRecentCap,
		"HISTORY_DOWNSAMPLE_CAP": c.HistoryDownsampleCap,
		"QUEUE_SIZE":             c.QueueSize,
	}
	for name, n := range caps {
		if n < 16 {
			return fmt.Errorf("%s must be at least 16", name)
		}
	}

	return nil
}

// Helper function for defaults
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
