// Package composer holds the outgoing message being written and sends it:
// attachments are uploaded first, then one message is appended to the
// conversation log, then both participants' conversation summaries are
// updated together.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatline/internal/blobstore"
	"github.com/dmitrijs2005/chatline/internal/client/selector"
	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/pubsub"
	"github.com/dmitrijs2005/chatline/internal/repositories/chats"
	"github.com/dmitrijs2005/chatline/internal/repositories/userchats"
	"github.com/dmitrijs2005/chatline/internal/timex"
)

// DefaultRecordingWindow bounds a voice capture unless configured.
const DefaultRecordingWindow = 5 * time.Second

// Attachment is a pending binary. Preview is a local reference for the
// view (a file path in the terminal client).
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	Preview     string
}

// Pending is the message being composed.
type Pending struct {
	Text  string
	Image *Attachment
	Audio *Attachment
}

// Empty reports whether there is nothing to send.
func (p Pending) Empty() bool {
	return p.Text == "" && p.Image == nil && p.Audio == nil
}

// Recorder captures audio until ctx is done and returns what it has.
type Recorder interface {
	Record(ctx context.Context) (*Attachment, error)
}

// ConversationSource is satisfied by selector.Selector.
type ConversationSource interface {
	State() selector.State
}

// ProfileSource is satisfied by profile.Store.
type ProfileSource interface {
	Current() *models.UserProfile
}

type Composer struct {
	store    docstore.Store
	blobs    blobstore.Uploader
	selector ConversationSource
	profiles ProfileSource
	window   time.Duration
	logger   logging.Logger

	mu      sync.Mutex
	pending Pending

	sendMu sync.Mutex
	seq    atomic.Uint64
	sent   pubsub.Topic[models.Message]

	now   func() time.Time
	newID func() string
}

func New(store docstore.Store, blobs blobstore.Uploader, sel ConversationSource, profiles ProfileSource, window time.Duration, logger logging.Logger) *Composer {
	if window <= 0 {
		window = DefaultRecordingWindow
	}
	return &Composer{
		store:    store,
		blobs:    blobs,
		selector: sel,
		profiles: profiles,
		window:   window,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

func (c *Composer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Text = text
}

// AppendText inserts s at the end of the text, e.g. a picked emoji.
func (c *Composer) AppendText(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Text += s
}

// Backspace removes the last rune.
func (c *Composer) Backspace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, size := utf8.DecodeLastRuneInString(c.pending.Text)
	c.pending.Text = c.pending.Text[:len(c.pending.Text)-size]
}

// AttachImage replaces the pending image. Only image/* content is accepted.
func (c *Composer) AttachImage(a *Attachment) error {
	if a == nil || len(a.Data) == 0 {
		return fmt.Errorf("%w: empty image", common.ErrValidation)
	}
	if !strings.HasPrefix(a.ContentType, "image/") {
		return fmt.Errorf("%w: %s is not an image", common.ErrValidation, a.ContentType)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Image = cloneAttachment(a)
	return nil
}

// AttachAudio replaces the pending voice note.
func (c *Composer) AttachAudio(a *Attachment) error {
	if a == nil || len(a.Data) == 0 {
		return fmt.Errorf("%w: empty recording", common.ErrValidation)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Audio = cloneAttachment(a)
	return nil
}

func (c *Composer) ClearImage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Image = nil
}

func (c *Composer) ClearAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Audio = nil
}

// Clear drops everything pending.
func (c *Composer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = Pending{}
}

// Pending returns a copy of the message being composed.
func (c *Composer) Pending() Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Pending{
		Text:  c.pending.Text,
		Image: cloneAttachment(c.pending.Image),
		Audio: cloneAttachment(c.pending.Audio),
	}
}

// RecordingWindow is how long RecordVoice lets a recorder run.
func (c *Composer) RecordingWindow() time.Duration {
	return c.window
}

// RecordVoice runs rec for the recording window and attaches the result.
func (c *Composer) RecordVoice(ctx context.Context, rec Recorder) error {
	rctx, cancel := context.WithTimeout(ctx, c.window)
	defer cancel()

	a, err := rec.Record(rctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("record: %w", err)
	}
	return c.AttachAudio(a)
}

// OnSent registers fn for every message this composer appended.
func (c *Composer) OnSent(fn func(models.Message)) (unsubscribe func()) {
	return c.sent.Subscribe(fn)
}

// Send delivers the pending message to the open conversation.
//
// Nothing pending: (nil, nil), no write. Either side blocked:
// common.ErrBlocked, no write. Upload or append failure: error, pending
// state kept for a retry. Once the message is appended the sent items are
// cleared; a failure to update the summaries after that is returned as a
// common.ErrWrite error together with the appended message.
func (c *Composer) Send(ctx context.Context) (*models.Message, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	p := c.Pending()
	if p.Empty() {
		return nil, nil
	}

	st := c.selector.State()
	if st.Blocked() {
		return nil, common.ErrBlocked
	}
	if st.ConversationID == "" || st.Counterpart == nil {
		return nil, common.ErrNoConversation
	}
	self := c.profiles.Current()
	if self == nil {
		return nil, common.ErrNotSignedIn
	}

	var imageURL, audioURL string
	var err error
	if p.Image != nil {
		if imageURL, err = c.upload(ctx, p.Image); err != nil {
			return nil, err
		}
	}
	if p.Audio != nil {
		if audioURL, err = c.upload(ctx, p.Audio); err != nil {
			return nil, err
		}
	}

	now := c.now()
	msg := models.Message{
		ID:        c.newID(),
		Seq:       c.seq.Add(1),
		SenderID:  self.ID,
		Text:      p.Text,
		Image:     imageURL,
		Audio:     audioURL,
		CreatedAt: now.UTC(),
	}

	if err := chats.NewDocRepository(c.store).AppendMessage(ctx, st.ConversationID, msg); err != nil {
		return nil, fmt.Errorf("%w: append message: %w", common.ErrWrite, err)
	}

	c.clearSent(p)
	c.sent.Publish(msg)

	if err := c.touchSummaries(ctx, st.ConversationID, self.ID, st.Counterpart.ID, msg.Text, timex.UnixMilli(now)); err != nil {
		c.logger.Warn(ctx, "message sent but summaries not updated", "chat", st.ConversationID, "error", err)
		return &msg, fmt.Errorf("%w: update summaries: %w", common.ErrWrite, err)
	}
	return &msg, nil
}

func (c *Composer) upload(ctx context.Context, a *Attachment) (string, error) {
	url, err := c.blobs.Upload(ctx, blobstore.Blob{Name: a.Name, ContentType: a.ContentType, Data: a.Data})
	if err != nil {
		if errors.Is(err, common.ErrUpload) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", common.ErrUpload, err)
	}
	return url, nil
}

// touchSummaries updates both participants' index entries in one
// transaction with the same chat id and timestamp.
func (c *Composer) touchSummaries(ctx context.Context, chatID, selfID, otherID, text string, at int64) error {
	return c.store.RunTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		repo := userchats.NewDocRepository(tx)
		if err := repo.Touch(ctx, selfID, models.ConversationSummary{
			ChatID: chatID, ReceiverID: otherID, LastMessage: text, UpdatedAt: at, IsSeen: true,
		}); err != nil {
			return err
		}
		return repo.Touch(ctx, otherID, models.ConversationSummary{
			ChatID: chatID, ReceiverID: selfID, LastMessage: text, UpdatedAt: at, IsSeen: false,
		})
	})
}

// clearSent drops what was sent, keeping anything changed meanwhile.
func (c *Composer) clearSent(sent Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Text == sent.Text {
		c.pending.Text = ""
	}
	if sameAttachment(c.pending.Image, sent.Image) {
		c.pending.Image = nil
	}
	if sameAttachment(c.pending.Audio, sent.Audio) {
		c.pending.Audio = nil
	}
}

func sameAttachment(a, b *Attachment) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && a.ContentType == b.ContentType && string(a.Data) == string(b.Data)
}

func cloneAttachment(a *Attachment) *Attachment {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}
