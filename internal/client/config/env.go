package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/chatline/internal/flagx"
)

// EnvPrefix prefixes every environment variable the client reads.
const EnvPrefix = "CHATLINE_"

// parseEnv overlays cfg with CHATLINE_* variables. A dotenv file named by
// -env is loaded first; variables already set in the environment win over
// the file. Malformed values panic.
func parseEnv(cfg *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	}

	envString(&cfg.Backend, "BACKEND")
	envString(&cfg.DatabaseDSN, "DATABASE_DSN")
	envString(&cfg.DataDir, "DATA_DIR")
	envString(&cfg.SecretKey, "SECRET_KEY")
	envDuration(&cfg.SessionValidityDuration, "SESSION_VALIDITY")
	envString(&cfg.BlobBackend, "BLOB_BACKEND")
	envString(&cfg.S3Region, "S3_REGION")
	envString(&cfg.S3RootUser, "S3_ROOT_USER")
	envString(&cfg.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&cfg.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&cfg.S3Bucket, "S3_BUCKET")
	envString(&cfg.S3PublicURL, "S3_PUBLIC_URL")
	envString(&cfg.RedisURL, "REDIS_URL")
	envDuration(&cfg.ProfileCacheTTL, "PROFILE_CACHE_TTL")
	envDuration(&cfg.RecordingWindow, "RECORDING_WINDOW")
	if v, ok := os.LookupEnv(EnvPrefix + "MAX_ATTACHMENT_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		cfg.MaxAttachmentBytes = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "MARK_SEEN_ON_OPEN"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		cfg.MarkSeenOnOpen = b
	}
	envString(&cfg.LogLevel, "LOG_LEVEL")
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = v
	}
}

func envDuration(dst *time.Duration, name string) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
