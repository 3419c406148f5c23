package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/chatline/internal/client/composer"
	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/filex"
)

var emojis = map[string]string{
	"smile":    "😄",
	"laugh":    "😂",
	"wink":     "😉",
	"sad":      "😢",
	"heart":    "❤️",
	"thumbsup": "👍",
	"fire":     "🔥",
	"party":    "🎉",
	"think":    "🤔",
	"wave":     "👋",
}

func emojiNames() string {
	names := make([]string, 0, len(emojis))
	for n := range emojis {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// composable refuses input while either side of the open conversation has
// blocked the other.
func (a *App) composable() error {
	if a.c.Selector.State().Blocked() {
		return fmt.Errorf("%w, input is disabled", common.ErrBlocked)
	}
	return nil
}

// Type appends text to the pending message.
func (a *App) Type(text string) error {
	if err := a.composable(); err != nil {
		return err
	}
	a.c.Composer.AppendText(text)
	return nil
}

// Write replaces the pending text with a multi-line body.
func (a *App) Write(ctx context.Context) error {
	if err := a.composable(); err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Message", a.out)
	if err != nil {
		return err
	}
	a.c.Composer.SetText(text)
	return nil
}

func (a *App) Emoji(name string) error {
	if err := a.composable(); err != nil {
		return err
	}
	e, ok := emojis[name]
	if !ok {
		return fmt.Errorf("unknown emoji %q, try one of: %s", name, emojiNames())
	}
	a.c.Composer.AppendText(e)
	return nil
}

func (a *App) Backspace() error {
	a.c.Composer.Backspace()
	return nil
}

// Image attaches an image file, replacing any pending one.
func (a *App) Image(path string) error {
	if err := a.composable(); err != nil {
		return err
	}
	att, err := filex.ReadAttachment(path, a.c.Config.MaxAttachmentBytes)
	if err != nil {
		return err
	}
	return a.c.Composer.AttachImage(&composer.Attachment{
		Name:        att.Name,
		ContentType: att.ContentType,
		Data:        att.Data,
		Preview:     path,
	})
}

// Voice records a voice note; the audio is taken from path.
func (a *App) Voice(ctx context.Context, path string) error {
	if err := a.composable(); err != nil {
		return err
	}
	rec := fileRecorder{path: path, maxBytes: a.c.Config.MaxAttachmentBytes}
	if err := a.c.Composer.RecordVoice(ctx, rec); err != nil {
		return err
	}
	a.printf("Voice note attached (window %s)\n", a.c.Composer.RecordingWindow())
	return nil
}

func (a *App) Pending() error {
	p := a.c.Composer.Pending()
	if p.Empty() {
		a.println("Nothing pending")
		return nil
	}
	if p.Text != "" {
		a.printf("text:  %s\n", p.Text)
	}
	if p.Image != nil {
		a.printf("image: %s (%d bytes)\n", p.Image.Preview, len(p.Image.Data))
	}
	if p.Audio != nil {
		a.printf("voice: %s (%d bytes)\n", p.Audio.Preview, len(p.Audio.Data))
	}
	return nil
}

func (a *App) Clear() error {
	a.c.Composer.Clear()
	return nil
}

// Send delivers the pending message to the open conversation.
func (a *App) Send(ctx context.Context) error {
	if err := a.composable(); err != nil {
		return err
	}
	msg, err := a.c.Composer.Send(ctx)
	switch {
	case errors.Is(err, common.ErrBlocked):
		return fmt.Errorf("%w, nothing was sent", common.ErrBlocked)
	case msg != nil && err != nil:
		a.println(noticeStyle.Render("Message sent, but the conversation list could not be updated: " + err.Error()))
		return nil
	case err != nil:
		return err
	case msg == nil:
		a.println("Nothing to send")
	}
	return nil
}
