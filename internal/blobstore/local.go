package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/filex"
)

// Local writes blobs below a directory and returns file:// URLs, which
// netx.Download can read back.
type Local struct {
	root   string
	prefix string
}

var _ Uploader = (*Local)(nil)

func NewLocal(dir, prefix string) (*Local, error) {
	root, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &Local{root: root, prefix: prefix}, nil
}

func (l *Local) Upload(ctx context.Context, b Blob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}

	path := filepath.Join(l.root, filepath.FromSlash(StorageKey(l.prefix, b)))
	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, b.Data, 0o640); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String(), nil
}
