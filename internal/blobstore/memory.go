package blobstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/chatline/internal/common"
)

// Memory keeps blobs in a map and returns "mem://" URLs.
type Memory struct {
	prefix string

	mu    sync.RWMutex
	blobs map[string]Blob
}

var _ Uploader = (*Memory)(nil)

func NewMemory(prefix string) *Memory {
	return &Memory{prefix: prefix, blobs: make(map[string]Blob)}
}

func (m *Memory) Upload(ctx context.Context, b Blob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}
	url := "mem://" + StorageKey(m.prefix, b)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[url] = Blob{Name: b.Name, ContentType: b.ContentType, Data: append([]byte(nil), b.Data...)}
	return url, nil
}

// Open returns the blob stored under url.
func (m *Memory) Open(url string) (Blob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[url]
	return b, ok
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
