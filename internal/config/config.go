// Package config loads server settings from an optional TOML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL  string // NOTIFY_DATABASE_URL (optional, empty = in-memory store)
	HTTPAddr     string // NOTIFY_HTTP_ADDR (default ":3003")
	GRPCAddr     string // NOTIFY_GRPC_ADDR (default ":9093", set empty to disable)
	NATSURL      string // NOTIFY_NATS_URL (optional, empty = no events)
	AlertSubject string // NOTIFY_ALERT_SUBJECT (default "alerts.geofence")
	LogLevel     string // NOTIFY_LOG_LEVEL (default "info")
	CORSOrigins  []string

	// Fan-out settings
	SendTimeout       time.Duration // NOTIFY_SEND_TIMEOUT (default 2s)
	FanoutConcurrency int           // NOTIFY_FANOUT_CONCURRENCY (default 16)
	ConnBuffer        int           // NOTIFY_CONN_BUFFER (default 32)

	// Retry settings
	MaxRetries     int           // NOTIFY_MAX_RETRIES (default 3)
	RetrySchedule  string        // NOTIFY_RETRY_SCHEDULE (default "@every 1m")
	PendingTimeout time.Duration // NOTIFY_PENDING_TIMEOUT (default 5m)

	// Retention settings
	CleanupSchedule    string // NOTIFY_CLEANUP_SCHEDULE (default "@daily")
	RetentionDays      int    // NOTIFY_RETENTION_DAYS (default 30)
	ArchiveS3Bucket    string // NOTIFY_ARCHIVE_S3_BUCKET (enables archiving when set)
	ArchiveS3KeyPrefix string // NOTIFY_ARCHIVE_S3_KEY_PREFIX (default "notifications/archive")
	ArchiveS3Region    string // NOTIFY_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Endpoint  string // NOTIFY_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)

	// Collars maps collar ids to pets and owners. Only the config file sets it.
	Collars []Collar
}

// Collar is one [[collar]] entry of the config file.
type Collar struct {
	ID      string `toml:"id"`
	PetID   string `toml:"pet_id"`
	PetName string `toml:"pet_name"`
	OwnerID string `toml:"owner_id"`
}

// File is the TOML config file layout. Every field is optional.
type File struct {
	DatabaseURL       string   `toml:"database_url"`
	HTTPAddr          string   `toml:"http_addr"`
	GRPCAddr          *string  `toml:"grpc_addr"`
	NATSURL           string   `toml:"nats_url"`
	AlertSubject      string   `toml:"alert_subject"`
	LogLevel          string   `toml:"log_level"`
	CORSOrigins       []string `toml:"cors_origins"`
	SendTimeout       string   `toml:"send_timeout"`
	FanoutConcurrency int      `toml:"fanout_concurrency"`
	ConnBuffer        int      `toml:"conn_buffer"`
	MaxRetries        *int     `toml:"max_retries"`
	RetrySchedule     string   `toml:"retry_schedule"`
	PendingTimeout    string   `toml:"pending_timeout"`
	CleanupSchedule   string   `toml:"cleanup_schedule"`
	RetentionDays     int      `toml:"retention_days"`
	Archive           Archive  `toml:"archive"`
	Collars           []Collar `toml:"collar"`
}

// Archive is the [archive] table of the config file.
type Archive struct {
	S3Bucket    string `toml:"s3_bucket"`
	S3KeyPrefix string `toml:"s3_key_prefix"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
}

func defaults() *Config {
	return &Config{
		HTTPAddr:           ":3003",
		GRPCAddr:           ":9093",
		AlertSubject:       "alerts.geofence",
		LogLevel:           "info",
		CORSOrigins:        []string{"http://localhost:5173", "http://localhost:3000"},
		SendTimeout:        2 * time.Second,
		FanoutConcurrency:  16,
		ConnBuffer:         32,
		MaxRetries:         3,
		RetrySchedule:      "@every 1m",
		PendingTimeout:     5 * time.Minute,
		CleanupSchedule:    "@daily",
		RetentionDays:      30,
		ArchiveS3KeyPrefix: "notifications/archive",
		ArchiveS3Region:    "us-east-1",
	}
}

// Load builds the configuration from defaults, the file named by
// NOTIFY_CONFIG_FILE (if any), and the environment, in that order.
func Load() (*Config, error) {
	c := defaults()

	if path := os.Getenv("NOTIFY_CONFIG_FILE"); path != "" {
		var f File
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("NOTIFY_CONFIG_FILE %s: %w", path, err)
		}
		if err := c.apply(&f); err != nil {
			return nil, fmt.Errorf("NOTIFY_CONFIG_FILE %s: %w", path, err)
		}
	}

	c.DatabaseURL = envOrDefault("NOTIFY_DATABASE_URL", c.DatabaseURL)
	c.HTTPAddr = envOrDefault("NOTIFY_HTTP_ADDR", c.HTTPAddr)
	if v, ok := os.LookupEnv("NOTIFY_GRPC_ADDR"); ok {
		c.GRPCAddr = v
	}
	c.NATSURL = envOrDefault("NOTIFY_NATS_URL", c.NATSURL)
	c.AlertSubject = envOrDefault("NOTIFY_ALERT_SUBJECT", c.AlertSubject)
	c.LogLevel = envOrDefault("NOTIFY_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("NOTIFY_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	c.RetrySchedule = envOrDefault("NOTIFY_RETRY_SCHEDULE", c.RetrySchedule)
	c.CleanupSchedule = envOrDefault("NOTIFY_CLEANUP_SCHEDULE", c.CleanupSchedule)
	c.ArchiveS3Bucket = envOrDefault("NOTIFY_ARCHIVE_S3_BUCKET", c.ArchiveS3Bucket)
	c.ArchiveS3KeyPrefix = envOrDefault("NOTIFY_ARCHIVE_S3_KEY_PREFIX", c.ArchiveS3KeyPrefix)
	c.ArchiveS3Region = envOrDefault("NOTIFY_ARCHIVE_S3_REGION", c.ArchiveS3Region)
	c.ArchiveS3Endpoint = envOrDefault("NOTIFY_ARCHIVE_S3_ENDPOINT", c.ArchiveS3Endpoint)

	var err error
	if c.SendTimeout, err = envDuration("NOTIFY_SEND_TIMEOUT", c.SendTimeout); err != nil {
		return nil, err
	}
	if c.PendingTimeout, err = envDuration("NOTIFY_PENDING_TIMEOUT", c.PendingTimeout); err != nil {
		return nil, err
	}
	if c.FanoutConcurrency, err = envInt("NOTIFY_FANOUT_CONCURRENCY", c.FanoutConcurrency); err != nil {
		return nil, err
	}
	if c.ConnBuffer, err = envInt("NOTIFY_CONN_BUFFER", c.ConnBuffer); err != nil {
		return nil, err
	}
	if c.MaxRetries, err = envInt("NOTIFY_MAX_RETRIES", c.MaxRetries); err != nil {
		return nil, err
	}
	if c.RetentionDays, err = envInt("NOTIFY_RETENTION_DAYS", c.RetentionDays); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// apply overlays the non-zero values of f onto c.
func (c *Config) apply(f *File) error {
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&c.DatabaseURL, f.DatabaseURL)
	overlay(&c.HTTPAddr, f.HTTPAddr)
	if f.GRPCAddr != nil {
		c.GRPCAddr = *f.GRPCAddr
	}
	overlay(&c.NATSURL, f.NATSURL)
	overlay(&c.AlertSubject, f.AlertSubject)
	overlay(&c.LogLevel, f.LogLevel)
	if len(f.CORSOrigins) > 0 {
		c.CORSOrigins = f.CORSOrigins
	}
	overlay(&c.RetrySchedule, f.RetrySchedule)
	overlay(&c.CleanupSchedule, f.CleanupSchedule)
	overlay(&c.ArchiveS3Bucket, f.Archive.S3Bucket)
	overlay(&c.ArchiveS3KeyPrefix, f.Archive.S3KeyPrefix)
	overlay(&c.ArchiveS3Region, f.Archive.S3Region)
	overlay(&c.ArchiveS3Endpoint, f.Archive.S3Endpoint)

	if f.FanoutConcurrency > 0 {
		c.FanoutConcurrency = f.FanoutConcurrency
	}
	if f.ConnBuffer > 0 {
		c.ConnBuffer = f.ConnBuffer
	}
	if f.MaxRetries != nil {
		c.MaxRetries = *f.MaxRetries
	}
	if f.RetentionDays > 0 {
		c.RetentionDays = f.RetentionDays
	}
	if f.SendTimeout != "" {
		d, err := time.ParseDuration(f.SendTimeout)
		if err != nil {
			return fmt.Errorf("send_timeout: %w", err)
		}
		c.SendTimeout = d
	}
	if f.PendingTimeout != "" {
		d, err := time.ParseDuration(f.PendingTimeout)
		if err != nil {
			return fmt.Errorf("pending_timeout: %w", err)
		}
		c.PendingTimeout = d
	}

	seen := make(map[string]bool, len(f.Collars))
	for i, col := range f.Collars {
		if col.ID == "" || col.OwnerID == "" {
			return fmt.Errorf("collar[%d]: id and owner_id are required", i)
		}
		if seen[col.ID] {
			return fmt.Errorf("collar[%d]: duplicate id %q", i, col.ID)
		}
		seen[col.ID] = true
	}
	c.Collars = f.Collars
	return nil
}

func (c *Config) validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("NOTIFY_LOG_LEVEL: %w", err)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("NOTIFY_SEND_TIMEOUT must be positive, got %s", c.SendTimeout)
	}
	if c.FanoutConcurrency <= 0 {
		return fmt.Errorf("NOTIFY_FANOUT_CONCURRENCY must be positive, got %d", c.FanoutConcurrency)
	}
	if c.ConnBuffer <= 0 {
		return fmt.Errorf("NOTIFY_CONN_BUFFER must be positive, got %d", c.ConnBuffer)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("NOTIFY_MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("NOTIFY_RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
