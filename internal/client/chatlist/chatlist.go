// Package chatlist keeps the signed-in user's conversation index, newest
// first, with each counterpart's profile resolved.
package chatlist

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/chatline/internal/client/profile"
	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/pubsub"
	"github.com/dmitrijs2005/chatline/internal/repositories/userchats"
	"github.com/dmitrijs2005/chatline/internal/repositories/users"
)

// Entry is one row of the list. Counterpart is nil when the other user's
// profile no longer exists.
type Entry struct {
	models.ConversationSummary
	Counterpart *models.UserProfile
}

// Opener is satisfied by selector.Selector.
type Opener interface {
	ChangeConversation(id string, counterpart *models.UserProfile)
	ResetConversation()
}

type List struct {
	store    docstore.Store
	opener   Opener
	markSeen bool
	logger   logging.Logger

	pubMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	uid     string
	active  docstore.Subscription
	entries []Entry
	unbind  func()

	topic pubsub.Topic[[]Entry]
}

// New builds a list. With markSeen, Open flags the opened summary as seen.
func New(store docstore.Store, opener Opener, markSeen bool, logger logging.Logger) *List {
	return &List{store: store, opener: opener, markSeen: markSeen, logger: logger}
}

// Follow watches the index of uid, replacing any previous one. An empty
// uid clears the list.
func (l *List) Follow(ctx context.Context, uid string) error {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	old := l.active
	l.active = nil
	l.uid = uid
	l.entries = nil
	l.mu.Unlock()

	if old != nil {
		old.Cancel()
	}

	l.pubMu.Lock()
	l.topic.Publish(nil)
	l.pubMu.Unlock()

	if uid == "" {
		return nil
	}

	subscription, err := userchats.Watch(ctx, l.store, uid, func(uc *models.UserChats, err error) {
		l.apply(ctx, gen, uc, err)
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		subscription.Cancel()
		return nil
	}
	l.active = subscription
	l.mu.Unlock()
	return nil
}

func (l *List) apply(ctx context.Context, gen uint64, uc *models.UserChats, err error) {
	if err != nil {
		l.logger.Warn(ctx, "dropping unreadable conversation index", "error", err)
		return
	}

	entries := l.resolve(ctx, uc.Chats)
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(b.UpdatedAt, a.UpdatedAt)
	})

	l.pubMu.Lock()
	defer l.pubMu.Unlock()

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.entries = entries
	out := slices.Clone(entries)
	l.mu.Unlock()

	l.topic.Publish(out)
}

func (l *List) resolve(ctx context.Context, summaries []models.ConversationSummary) []Entry {
	repo := users.NewDocRepository(l.store)
	entries := make([]Entry, 0, len(summaries))
	for _, s := range summaries {
		e := Entry{ConversationSummary: s}
		p, err := repo.Get(ctx, s.ReceiverID)
		switch {
		case err == nil:
			e.Counterpart = p
		case errors.Is(err, common.ErrNotFound):
		default:
			l.logger.Warn(ctx, "failed to load counterpart", "user", s.ReceiverID, "error", err)
		}
		entries = append(entries, e)
	}
	return entries
}

// Bind follows the profile store: the list tracks whoever is signed in.
func (l *List) Bind(ctx context.Context, profiles *profile.Store) {
	unbind := profiles.Subscribe(func(st profile.State) {
		uid := ""
		if st.Profile != nil {
			uid = st.Profile.ID
		}
		if st.IsLoading || uid == l.UID() {
			return
		}
		if err := l.Follow(ctx, uid); err != nil {
			l.logger.Error(ctx, "failed to follow conversation index", "user", uid, "error", err)
		}
	})

	l.mu.Lock()
	prev := l.unbind
	l.unbind = unbind
	l.mu.Unlock()
	if prev != nil {
		prev()
	}

	if p := profiles.Current(); p != nil && p.ID != l.UID() {
		if err := l.Follow(ctx, p.ID); err != nil {
			l.logger.Error(ctx, "failed to follow conversation index", "user", p.ID, "error", err)
		}
	}
}

// Open makes chatID the active conversation. The counterpart is re-read so
// the block flags are current; when it is gone the selection is reset and
// common.ErrNotFound returned.
func (l *List) Open(ctx context.Context, chatID string) error {
	l.mu.Lock()
	uid := l.uid
	i := slices.IndexFunc(l.entries, func(e Entry) bool { return e.ChatID == chatID })
	var e Entry
	if i >= 0 {
		e = l.entries[i]
	}
	l.mu.Unlock()

	if i < 0 {
		return fmt.Errorf("chat %s: %w", chatID, common.ErrNotFound)
	}

	p, err := users.NewDocRepository(l.store).Get(ctx, e.ReceiverID)
	if errors.Is(err, common.ErrNotFound) {
		l.opener.ResetConversation()
		return fmt.Errorf("counterpart %s: %w", e.ReceiverID, err)
	}
	if err != nil {
		return err
	}

	l.opener.ChangeConversation(chatID, p)

	if l.markSeen && !e.IsSeen {
		if err := userchats.NewDocRepository(l.store).MarkSeen(ctx, uid, chatID); err != nil {
			l.logger.Warn(ctx, "failed to mark conversation seen", "chat", chatID, "error", err)
		}
	}
	return nil
}

// Entries returns the list, newest first.
func (l *List) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

func (l *List) UID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.uid
}

// Subscribe registers fn for list changes.
func (l *List) Subscribe(fn func([]Entry)) (unsubscribe func()) {
	return l.topic.Subscribe(fn)
}

// Close stops watching and detaches from the profile store.
func (l *List) Close() {
	l.mu.Lock()
	unbind := l.unbind
	l.unbind = nil
	l.gen++
	old := l.active
	l.active = nil
	l.uid = ""
	l.entries = nil
	l.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	if old != nil {
		old.Cancel()
	}
}
