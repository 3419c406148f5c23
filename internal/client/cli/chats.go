package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/chatline/internal/common"
)

// Chats lists conversations, newest first. Unseen ones are marked.
func (a *App) Chats(ctx context.Context) error {
	entries := a.c.Chats.Entries()
	if len(entries) == 0 {
		a.println("No conversations yet. Use 'search <username>' and 'add'.")
		return nil
	}
	for i, e := range entries {
		a.println(renderEntry(i, e))
	}
	return nil
}

// Open makes a conversation active. ref is a list number or a chat id.
func (a *App) Open(ctx context.Context, ref string) error {
	chatID := ref
	entries := a.c.Chats.Entries()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(entries) {
			return fmt.Errorf("no conversation #%d", n)
		}
		chatID = entries[n-1].ChatID
	}

	if err := a.c.Chats.Open(ctx, chatID); err != nil {
		return err
	}

	st := a.c.Selector.State()
	a.printf("Opened conversation with %s\n", st.Counterpart.Username)
	switch {
	case st.IsCurrentUserBlocked:
		a.println(noticeStyle.Render("You are blocked by this user"))
	case st.IsReceiverBlocked:
		a.println(noticeStyle.Render("You have blocked this user"))
	}
	return nil
}

// Search looks a user up by exact username and remembers the result for
// Add.
func (a *App) Search(ctx context.Context, username string) error {
	p, err := a.c.Directory.SearchUser(ctx, username)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.found = p
	a.mu.Unlock()

	if p == nil {
		a.printf("No user named %q\n", username)
		return nil
	}
	a.println(renderProfile(p, metaStyle.Render("type 'add' to start a conversation")))
	return nil
}

// Add starts a conversation with the last user found.
func (a *App) Add(ctx context.Context) error {
	a.mu.Lock()
	target := a.found
	a.mu.Unlock()
	if target == nil {
		return fmt.Errorf("search for a user first: %w", common.ErrValidation)
	}

	self := a.c.Profiles.Current()
	if self == nil {
		return common.ErrNotSignedIn
	}

	exists, err := a.c.Directory.HasConversationWith(ctx, self.ID, target.ID)
	if err != nil {
		return err
	}
	if exists {
		a.println(noticeStyle.Render("You already have a conversation with " + target.Username + "; starting another one"))
	}

	if _, err := a.c.Directory.StartConversation(ctx, self, target); err != nil {
		return err
	}

	a.mu.Lock()
	a.found = nil
	a.mu.Unlock()
	a.printf("Conversation with %s added\n", target.Username)
	return nil
}
