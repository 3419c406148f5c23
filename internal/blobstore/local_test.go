package blobstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chatline/internal/netx"
)

func TestLocal_UploadThenDownload(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "audio")
	require.NoError(t, err)

	url, err := l.Upload(context.Background(), Blob{Name: "voice.webm", Data: []byte("RIFF")})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "file://"), url)
	assert.True(t, strings.HasSuffix(url, ".webm"), url)

	var buf bytes.Buffer
	n, err := netx.Download(context.Background(), nil, url, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, "RIFF", buf.String())

	matches, err := filepath.Glob(filepath.Join(dir, "audio", "*", "*", "*", "*.part"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLocal_UnwritableRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := NewLocal(file, "x")
	assert.Error(t, err)
}
