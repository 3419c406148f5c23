package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/chatline/internal/flagx"
	"github.com/dmitrijs2005/chatline/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent keys
// leave the current value alone.
type JsonConfig struct {
	Backend                 string         `json:"backend"`
	DatabaseDSN             string         `json:"database_dsn"`
	DataDir                 string         `json:"data_dir"`
	SecretKey               string         `json:"secret_key"`
	SessionValidityDuration timex.Duration `json:"session_validity_duration"`
	BlobBackend             string         `json:"blob_backend"`
	S3Region                string         `json:"s3_region"`
	S3RootUser              string         `json:"s3_root_user"`
	S3RootPassword          string         `json:"s3_root_password"`
	S3BaseEndpoint          string         `json:"s3_base_endpoint"`
	S3Bucket                string         `json:"s3_bucket"`
	S3PublicURL             string         `json:"s3_public_url"`
	RedisURL                string         `json:"redis_url"`
	ProfileCacheTTL         timex.Duration `json:"profile_cache_ttl"`
	RecordingWindow         timex.Duration `json:"recording_window"`
	MaxAttachmentBytes      int64          `json:"max_attachment_bytes"`
	MarkSeenOnOpen          *bool          `json:"mark_seen_on_open"`
	LogLevel                string         `json:"log_level"`
}

// parseJson overlays cfg with the file named by -c/-config. It panics on
// read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.Backend, jc.Backend)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.SecretKey, jc.SecretKey)
	setDuration(&cfg.SessionValidityDuration, jc.SessionValidityDuration)
	setString(&cfg.BlobBackend, jc.BlobBackend)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3RootUser, jc.S3RootUser)
	setString(&cfg.S3RootPassword, jc.S3RootPassword)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3PublicURL, jc.S3PublicURL)
	setString(&cfg.RedisURL, jc.RedisURL)
	setDuration(&cfg.ProfileCacheTTL, jc.ProfileCacheTTL)
	setDuration(&cfg.RecordingWindow, jc.RecordingWindow)
	if jc.MaxAttachmentBytes > 0 {
		cfg.MaxAttachmentBytes = jc.MaxAttachmentBytes
	}
	if jc.MarkSeenOnOpen != nil {
		cfg.MarkSeenOnOpen = *jc.MarkSeenOnOpen
	}
	setString(&cfg.LogLevel, jc.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
