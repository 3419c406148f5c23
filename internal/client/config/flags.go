package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/chatline/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// os.Args is filtered with flagx.FilterArgs first, so flags owned by other
// stages (-c, -env) do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-b", "-d", "-dir", "-k", "-blob", "-redis", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.Backend, "b", cfg.Backend, "document store backend: memory, pebble or postgres")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&cfg.DataDir, "dir", cfg.DataDir, "local data directory")
	fs.StringVar(&cfg.SecretKey, "k", cfg.SecretKey, "session token signing key")
	fs.StringVar(&cfg.BlobBackend, "blob", cfg.BlobBackend, "blob backend: memory, local or s3")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis URL for the profile cache")
	fs.DurationVar(&cfg.RecordingWindow, "w", cfg.RecordingWindow, "voice recording window")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
