package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/helpgrid/fieldtrack/backend/internal/status"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// WebSocket timings
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Tracking thresholds (tenant-configurable defaults)
	OfflineThreshold   time.Duration
	MovingSpeedKmh     float64
	StationarySpeedKmh float64

	// Live map broadcast
	SnapshotInterval time.Duration
	DefaultZoom      int
	SnapshotTenants  []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
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

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	offlineSeconds, err := strconv.Atoi(getEnv("OFFLINE_THRESHOLD_SECONDS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid OFFLINE_THRESHOLD_SECONDS: %w", err)
	}
	config.OfflineThreshold = time.Duration(offlineSeconds) * time.Second

	config.MovingSpeedKmh, err = strconv.ParseFloat(getEnv("MOVING_SPEED_KMH", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MOVING_SPEED_KMH: %w", err)
	}

	config.StationarySpeedKmh, err = strconv.ParseFloat(getEnv("STATIONARY_SPEED_KMH", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid STATIONARY_SPEED_KMH: %w", err)
	}

	snapshotSeconds, err := strconv.Atoi(getEnv("SNAPSHOT_INTERVAL_SECONDS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_INTERVAL_SECONDS: %w", err)
	}
	config.SnapshotInterval = time.Duration(snapshotSeconds) * time.Second

	config.DefaultZoom, err = strconv.Atoi(getEnv("DEFAULT_ZOOM", "12"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_ZOOM: %w", err)
	}

	config.SnapshotTenants = strings.Split(getEnv("SNAPSHOT_TENANTS", "default"), ",")
	for i, tenant := range config.SnapshotTenants {
		config.SnapshotTenants[i] = strings.TrimSpace(tenant)
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

// StatusConfig returns the inference thresholds as a status.Config
func (c *Config) StatusConfig() status.Config {
	return status.Config{
		OfflineThreshold:   c.OfflineThreshold,
		MovingSpeedKmh:     c.MovingSpeedKmh,
		StationarySpeedKmh: c.StationarySpeedKmh,
	}
}
