package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/chatline/internal/client/composer"
	"github.com/dmitrijs2005/chatline/internal/filex"
)

// fileRecorder stands in for a microphone: the "capture" is an audio file
// read from disk within the recording window.
type fileRecorder struct {
	path     string
	maxBytes int64
}

func (r fileRecorder) Record(ctx context.Context) (*composer.Attachment, error) {
	att, err := filex.ReadAttachment(r.path, r.maxBytes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(att.ContentType, "audio/") && att.ContentType != "application/ogg" {
		return nil, fmt.Errorf("%s is not audio (%s)", r.path, att.ContentType)
	}
	return &composer.Attachment{
		Name:        att.Name,
		ContentType: att.ContentType,
		Data:        att.Data,
		Preview:     r.path,
	}, nil
}
