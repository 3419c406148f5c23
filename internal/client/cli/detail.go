package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/chatline/internal/common"
)

// Show prints the open conversation.
func (a *App) Show(ctx context.Context) error {
	st := a.c.Selector.State()
	if st.ConversationID == "" {
		return common.ErrNoConversation
	}
	msgs := a.c.Thread.Messages()
	if len(msgs) == 0 {
		a.println(metaStyle.Render("No messages yet"))
		return nil
	}
	self := a.c.Profiles.Current()
	for _, m := range msgs {
		a.println(renderMessage(m, self, st.Counterpart))
	}
	return nil
}

// Detail shows the counterpart, the block state and shared media.
func (a *App) Detail(ctx context.Context) error {
	st := a.c.Selector.State()
	if st.Counterpart == nil {
		return common.ErrNoConversation
	}

	var lines []string
	switch {
	case st.IsReceiverBlocked:
		lines = append(lines, noticeStyle.Render("blocked by you")+" (type 'block' to unblock)")
	case st.IsCurrentUserBlocked:
		lines = append(lines, noticeStyle.Render("has blocked you"))
	default:
		lines = append(lines, metaStyle.Render("type 'block' to block"))
	}
	media := a.c.Detail.SharedMedia(a.c.Thread.Messages())
	lines = append(lines, fmt.Sprintf("%d shared files", len(media)))

	a.println(renderProfile(st.Counterpart, lines...))
	return nil
}

// Block toggles the block on the counterpart.
func (a *App) Block(ctx context.Context) error {
	blocked, err := a.c.Detail.ToggleBlock(ctx)
	if err != nil {
		return err
	}
	if blocked {
		a.println("User blocked")
	} else {
		a.println("User unblocked")
	}
	return nil
}

// Media lists images and voice notes of the open conversation.
func (a *App) Media(ctx context.Context) error {
	if a.c.Selector.State().ConversationID == "" {
		return common.ErrNoConversation
	}
	media := a.c.Detail.SharedMedia(a.c.Thread.Messages())

	a.mu.Lock()
	a.media = media
	a.mu.Unlock()

	if len(media) == 0 {
		a.println("No shared media")
		return nil
	}
	for i, m := range media {
		a.printf("%2d %-5s %s\n", i+1, m.Kind, m.URL)
	}
	return nil
}

// Save downloads media item ref (a number from 'media') into dir.
func (a *App) Save(ctx context.Context, ref, dir string) error {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return fmt.Errorf("%w: %q is not a media number", common.ErrValidation, ref)
	}

	a.mu.Lock()
	media := a.media
	a.mu.Unlock()
	if n < 1 || n > len(media) {
		return fmt.Errorf("no media #%d, run 'media' first", n)
	}

	path, err := a.c.Detail.Save(ctx, media[n-1].URL, dir)
	if err != nil {
		return err
	}
	a.printf("Saved to %s\n", path)
	return nil
}
