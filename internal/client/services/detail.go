package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/dmitrijs2005/chatline/internal/client/selector"
	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/filex"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/netx"
	"github.com/dmitrijs2005/chatline/internal/repositories/users"
)

// Media kinds listed by SharedMedia.
const (
	MediaImage = "image"
	MediaAudio = "audio"
)

// Media is an attachment reference found in a conversation.
type Media struct {
	MessageID string
	Kind      string
	URL       string
}

// BlockedSetter receives the committed blocked set; profile.Store does.
type BlockedSetter interface {
	ApplyBlocked(ctx context.Context, blocked []string)
	Current() *models.UserProfile
}

// DetailService backs the contact-detail panel.
type DetailService interface {
	// ToggleBlock blocks the counterpart when they are not blocked and
	// unblocks them otherwise, then mirrors the change locally. It returns
	// the new IsReceiverBlocked.
	ToggleBlock(ctx context.Context) (bool, error)
	// SharedMedia lists image and audio references, oldest first.
	SharedMedia(messages []models.Message) []Media
	// Save downloads ref into dir and returns the written path.
	Save(ctx context.Context, ref, dir string) (string, error)
}

type detailService struct {
	store    docstore.Store
	selector *selector.Selector
	profiles BlockedSetter
	client   *http.Client
	logger   logging.Logger
}

// NewDetailService constructs a DetailService. client may be nil.
func NewDetailService(store docstore.Store, sel *selector.Selector, profiles BlockedSetter, client *http.Client, logger logging.Logger) DetailService {
	return &detailService{store: store, selector: sel, profiles: profiles, client: client, logger: logger}
}

func (d *detailService) ToggleBlock(ctx context.Context) (bool, error) {
	st := d.selector.State()
	if st.ConversationID == "" || st.Counterpart == nil {
		return false, common.ErrNoConversation
	}
	self := d.profiles.Current()
	if self == nil {
		return false, common.ErrNotSignedIn
	}

	repo := users.NewDocRepository(d.store)
	var err error
	if st.IsReceiverBlocked {
		err = repo.Unblock(ctx, self.ID, st.Counterpart.ID)
	} else {
		err = repo.Block(ctx, self.ID, st.Counterpart.ID)
	}
	if err != nil {
		return st.IsReceiverBlocked, fmt.Errorf("%w: toggle block: %w", common.ErrWrite, err)
	}

	d.selector.ToggleBlockFlag()

	p, err := repo.Get(ctx, self.ID)
	if err != nil {
		d.logger.Warn(ctx, "failed to reload blocked set", "uid", self.ID, "error", err)
	} else {
		d.profiles.ApplyBlocked(ctx, p.Blocked)
	}
	return d.selector.State().IsReceiverBlocked, nil
}

func (d *detailService) SharedMedia(messages []models.Message) []Media {
	var out []Media
	for _, m := range messages {
		if m.Image != "" {
			out = append(out, Media{MessageID: m.ID, Kind: MediaImage, URL: m.Image})
		}
		if m.Audio != "" {
			out = append(out, Media{MessageID: m.ID, Kind: MediaAudio, URL: m.Audio})
		}
	}
	return out
}

func (d *detailService) Save(ctx context.Context, ref, dir string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", ref, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("%w: no file name in %q", common.ErrValidation, ref)
	}

	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(abs, name)

	f, err := os.Create(dst + ".part")
	if err != nil {
		return "", err
	}
	if _, err := netx.Download(ctx, d.client, ref, f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("download error: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		return "", err
	}
	return dst, nil
}
