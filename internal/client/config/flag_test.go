package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd", "-b", "postgres", "-d", "postgres://db", "-dir", "/tmp/x", "-k", "key",
			"-blob", "s3", "-redis", "redis://r:6379/0", "-w", "2s", "-l", "debug"},
			expected: &Config{Backend: "postgres", DatabaseDSN: "postgres://db", DataDir: "/tmp/x", SecretKey: "key",
				BlobBackend: "s3", RedisURL: "redis://r:6379/0", RecordingWindow: 2 * time.Second, LogLevel: "debug"}},
		{name: "foreign flags ignored", args: []string{"cmd", "-c", "cfg.json", "-b=memory", "-x", "1"},
			expected: &Config{Backend: "memory"}},
		{name: "bad duration", args: []string{"cmd", "-w", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
