package config

import (
	"fmt"
	"time"
)

// Backends.
const (
	BackendMemory   = "memory"
	BackendPebble   = "pebble"
	BackendPostgres = "postgres"

	BlobMemory = "memory"
	BlobLocal  = "local"
	BlobS3     = "s3"
)

// Config holds runtime settings for the chatline client.
type Config struct {
	Backend     string
	DatabaseDSN string
	DataDir     string

	SecretKey               string
	SessionValidityDuration time.Duration

	BlobBackend    string
	S3Region       string
	S3RootUser     string
	S3RootPassword string
	S3BaseEndpoint string
	S3Bucket       string
	S3PublicURL    string

	RedisURL        string
	ProfileCacheTTL time.Duration

	RecordingWindow    time.Duration
	MaxAttachmentBytes int64
	MarkSeenOnOpen     bool

	LogLevel string
}

// LoadDefaults populates c with defaults suited to a single local user.
func (c *Config) LoadDefaults() {
	c.Backend = BackendPebble
	c.DataDir = "./chatline-data"
	c.SecretKey = "chatline-local-secret"
	c.SessionValidityDuration = 30 * 24 * time.Hour
	c.BlobBackend = BlobLocal
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000"
	c.S3Bucket = "chatline"
	c.ProfileCacheTTL = 5 * time.Minute
	c.RecordingWindow = 5 * time.Second
	c.MaxAttachmentBytes = 10 << 20
	c.MarkSeenOnOpen = true
	c.LogLevel = "info"
}

// LoadConfig applies defaults, then JSON, environment and flags; later
// sources win.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate reports settings the backends cannot start with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendPebble:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("backend %q needs a database dsn", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	switch c.BlobBackend {
	case BlobMemory, BlobLocal:
	case BlobS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("blob backend %q needs a bucket", c.BlobBackend)
		}
	default:
		return fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}

	if c.SecretKey == "" {
		return fmt.Errorf("secret key is empty")
	}
	if c.RecordingWindow <= 0 {
		return fmt.Errorf("recording window must be positive, got %s", c.RecordingWindow)
	}
	return nil
}
