// Package blobstore uploads message attachments and avatars and hands back
// a retrievable URL for each.
package blobstore

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Blob is one object to upload.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stores a blob and returns its URL. Failures wrap
// common.ErrUpload.
type Uploader interface {
	Upload(ctx context.Context, b Blob) (string, error)
}

var now = time.Now

// StorageKey returns a fresh object key under prefix, bucketed by date and
// keeping the original extension: "<prefix>/2024/3/9/<uuid>.png".
func StorageKey(prefix string, b Blob) string {
	d := now()
	return fmt.Sprintf("%s/%d/%d/%d/%v%s", strings.Trim(prefix, "/"), d.Year(), d.Month(), d.Day(), uuid.New(), extension(b))
}

func extension(b Blob) string {
	if ext := filepath.Ext(b.Name); ext != "" {
		return strings.ToLower(ext)
	}
	if b.ContentType != "" {
		if exts, err := mime.ExtensionsByType(b.ContentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}
