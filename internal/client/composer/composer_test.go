package composer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chatline/internal/blobstore"
	"github.com/dmitrijs2005/chatline/internal/client/selector"
	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/repositories/chats"
	"github.com/dmitrijs2005/chatline/internal/repositories/userchats"
)

type staticProfile struct{ p *models.UserProfile }

func (s staticProfile) Current() *models.UserProfile { return s.p }

type failingUploader struct{ calls int }

func (f *failingUploader) Upload(context.Context, blobstore.Blob) (string, error) {
	f.calls++
	return "", errors.New("network down")
}

type fixedUploader struct{ url string }

func (f fixedUploader) Upload(context.Context, blobstore.Blob) (string, error) {
	return f.url, nil
}

// txFailStore fails every RunTx; single writes go through.
type txFailStore struct {
	*docstore.Memory
}

func (s txFailStore) RunTx(context.Context, func(context.Context, docstore.Tx) error) error {
	return errors.New("summary write refused")
}

type fixture struct {
	store *docstore.Memory
	sel   *selector.Selector
	alice *models.UserProfile
	bob   *models.UserProfile
}

const chatID = "c1"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: docstore.NewMemory(logging.Discard()),
		alice: &models.UserProfile{ID: "alice", Username: "alice", Blocked: []string{}},
		bob:   &models.UserProfile{ID: "bob", Username: "bob", Blocked: []string{}},
	}
	t.Cleanup(func() { _ = f.store.Close() })

	require.NoError(t, chats.NewDocRepository(f.store).Create(ctx, chatID, time.Now()))
	f.sel = selector.New(staticProfile{f.alice})
	f.sel.ChangeConversation(chatID, f.bob)
	return f
}

func (f *fixture) composer(store docstore.Store, blobs blobstore.Uploader) *Composer {
	c := New(store, blobs, f.sel, staticProfile{f.alice}, time.Second, logging.Discard())
	c.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return c
}

func (f *fixture) messages(t *testing.T) []models.Message {
	t.Helper()
	conv, err := chats.NewDocRepository(f.store).Get(context.Background(), chatID)
	require.NoError(t, err)
	return conv.Messages
}

func TestSend_EmptyIsNoop(t *testing.T) {
	f := newFixture(t)
	up := &failingUploader{}
	c := f.composer(f.store, up)

	msg, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, f.messages(t))
	assert.Zero(t, up.calls)

	_, err = userchats.NewDocRepository(f.store).Get(context.Background(), "alice")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSend_TextOnly(t *testing.T) {
	f := newFixture(t)
	c := f.composer(f.store, blobstore.NewMemory("chat"))
	c.SetText("hello")

	msg, err := c.Send(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg)

	got := f.messages(t)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, "alice", got[0].SenderID)
	assert.Empty(t, got[0].Image)
	assert.Empty(t, got[0].Audio)
	assert.True(t, c.Pending().Empty())

	repo := userchats.NewDocRepository(f.store)
	mine, err := repo.Get(context.Background(), "alice")
	require.NoError(t, err)
	theirs, err := repo.Get(context.Background(), "bob")
	require.NoError(t, err)

	require.Len(t, mine.Chats, 1)
	require.Len(t, theirs.Chats, 1)
	assert.Equal(t, models.ConversationSummary{
		ChatID: chatID, ReceiverID: "bob", LastMessage: "hello", UpdatedAt: 1_700_000_000_000, IsSeen: true,
	}, mine.Chats[0])
	assert.Equal(t, models.ConversationSummary{
		ChatID: chatID, ReceiverID: "alice", LastMessage: "hello", UpdatedAt: 1_700_000_000_000, IsSeen: false,
	}, theirs.Chats[0])
}

func TestSend_WithImage(t *testing.T) {
	f := newFixture(t)
	c := f.composer(f.store, fixedUploader{url: "https://x/img.png"})
	c.SetText("hi")
	require.NoError(t, c.AttachImage(&Attachment{Name: "a.png", ContentType: "image/png", Data: []byte{1, 2}}))

	_, err := c.Send(context.Background())
	require.NoError(t, err)

	got := f.messages(t)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Text)
	assert.Equal(t, "https://x/img.png", got[0].Image)
	assert.Empty(t, got[0].Audio)
	assert.Nil(t, c.Pending().Image)
}

func TestSend_Blocked(t *testing.T) {
	for _, tc := range []struct {
		name  string
		alice []string
		bob   []string
	}{
		{name: "receiver blocked", alice: []string{"bob"}},
		{name: "current user blocked", bob: []string{"alice"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.alice.Blocked = tc.alice
			f.bob.Blocked = tc.bob
			f.sel.ChangeConversation(chatID, f.bob)

			c := f.composer(f.store, blobstore.NewMemory("chat"))
			c.SetText("hello")

			msg, err := c.Send(context.Background())
			assert.ErrorIs(t, err, common.ErrBlocked)
			assert.Nil(t, msg)
			assert.Empty(t, f.messages(t))
			assert.Equal(t, "hello", c.Pending().Text)
		})
	}
}

func TestSend_NoConversation(t *testing.T) {
	f := newFixture(t)
	f.sel.ResetConversation()
	c := f.composer(f.store, blobstore.NewMemory("chat"))
	c.SetText("hello")

	_, err := c.Send(context.Background())
	assert.ErrorIs(t, err, common.ErrNoConversation)
}

func TestSend_NotSignedIn(t *testing.T) {
	f := newFixture(t)
	c := New(f.store, blobstore.NewMemory("chat"), f.sel, staticProfile{}, time.Second, logging.Discard())
	c.SetText("hello")

	_, err := c.Send(context.Background())
	assert.ErrorIs(t, err, common.ErrNotSignedIn)
}

func TestSend_UploadFailureKeepsPending(t *testing.T) {
	f := newFixture(t)
	up := &failingUploader{}
	c := f.composer(f.store, up)
	c.SetText("look")
	require.NoError(t, c.AttachImage(&Attachment{Name: "a.png", ContentType: "image/png", Data: []byte{1}}))

	msg, err := c.Send(context.Background())
	assert.ErrorIs(t, err, common.ErrUpload)
	assert.Nil(t, msg)
	assert.Equal(t, 1, up.calls)
	assert.Empty(t, f.messages(t))

	p := c.Pending()
	assert.Equal(t, "look", p.Text)
	require.NotNil(t, p.Image)
	assert.Equal(t, "a.png", p.Image.Name)
}

func TestSend_AppendFailureKeepsPending(t *testing.T) {
	f := newFixture(t)
	f.sel.ChangeConversation("missing", f.bob)
	c := f.composer(f.store, blobstore.NewMemory("chat"))
	c.SetText("hello")

	msg, err := c.Send(context.Background())
	assert.ErrorIs(t, err, common.ErrWrite)
	assert.Nil(t, msg)
	assert.Equal(t, "hello", c.Pending().Text)
}

func TestSend_SummaryFailureStillClears(t *testing.T) {
	f := newFixture(t)
	c := f.composer(txFailStore{f.store}, blobstore.NewMemory("chat"))
	c.SetText("hello")

	msg, err := c.Send(context.Background())
	assert.ErrorIs(t, err, common.ErrWrite)
	require.NotNil(t, msg)
	assert.Equal(t, "hello", msg.Text)
	assert.Len(t, f.messages(t), 1)
	assert.True(t, c.Pending().Empty())

	_, err = userchats.NewDocRepository(f.store).Get(context.Background(), "bob")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSend_SequenceAndOnSent(t *testing.T) {
	f := newFixture(t)
	c := f.composer(f.store, blobstore.NewMemory("chat"))

	var sent []string
	unsub := c.OnSent(func(m models.Message) { sent = append(sent, m.Text) })
	defer unsub()

	for _, txt := range []string{"one", "two"} {
		c.SetText(txt)
		_, err := c.Send(context.Background())
		require.NoError(t, err)
	}

	got := f.messages(t)
	require.Len(t, got, 2)
	assert.Less(t, got[0].Seq, got[1].Seq)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, []string{"one", "two"}, sent)
}

func TestEditing(t *testing.T) {
	c := New(nil, nil, nil, nil, 0, logging.Discard())
	assert.Equal(t, DefaultRecordingWindow, c.RecordingWindow())

	c.SetText("hi")
	c.AppendText(" 😀")
	assert.Equal(t, "hi 😀", c.Pending().Text)
	c.Backspace()
	assert.Equal(t, "hi ", c.Pending().Text)
	c.Backspace()
	c.Backspace()
	c.Backspace()
	c.Backspace()
	assert.Equal(t, "", c.Pending().Text)

	err := c.AttachImage(&Attachment{Name: "a.txt", ContentType: "text/plain", Data: []byte("x")})
	assert.ErrorIs(t, err, common.ErrValidation)

	require.NoError(t, c.AttachImage(&Attachment{Name: "a.png", ContentType: "image/png", Data: []byte{1}}))
	c.ClearImage()
	assert.Nil(t, c.Pending().Image)

	require.NoError(t, c.AttachAudio(&Attachment{Name: "v.wav", ContentType: "audio/wav", Data: []byte{1}}))
	c.Clear()
	assert.True(t, c.Pending().Empty())
}

type waitingRecorder struct{}

func (waitingRecorder) Record(ctx context.Context) (*Attachment, error) {
	<-ctx.Done()
	return &Attachment{Name: "voice.wav", ContentType: "audio/wav", Data: []byte{9, 9}}, ctx.Err()
}

type brokenRecorder struct{}

func (brokenRecorder) Record(context.Context) (*Attachment, error) {
	return nil, errors.New("no microphone")
}

func TestRecordVoice(t *testing.T) {
	c := New(nil, nil, nil, nil, 20*time.Millisecond, logging.Discard())

	start := time.Now()
	require.NoError(t, c.RecordVoice(context.Background(), waitingRecorder{}))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	p := c.Pending()
	require.NotNil(t, p.Audio)
	assert.Equal(t, []byte{9, 9}, p.Audio.Data)

	c.ClearAudio()
	assert.Error(t, c.RecordVoice(context.Background(), brokenRecorder{}))
	assert.Nil(t, c.Pending().Audio)
}
