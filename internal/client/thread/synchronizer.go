// Package thread keeps the message list of the open conversation in sync
// with the document store.
//
// One live subscription exists per followed conversation. Each snapshot
// replaces the whole list. Every subscription is tagged with the epoch it
// was opened under; snapshots from an older epoch are discarded, so a
// conversation switch can never be overwritten by a late delivery for the
// previous one.
package thread

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/chatline/internal/client/selector"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/pubsub"
	"github.com/dmitrijs2005/chatline/internal/repositories/chats"
)

// Update is published once per applied snapshot, and once with an empty
// list whenever the followed conversation changes.
type Update struct {
	ChatID   string
	Messages []models.Message
	Epoch    uint64
}

type Synchronizer struct {
	sub    docstore.Subscriber
	logger logging.Logger

	// pubMu serializes apply-and-publish; Follow takes it so that no
	// delivery for an old epoch is still publishing when it returns.
	pubMu sync.Mutex

	mu       sync.Mutex
	epoch    uint64
	chatID   string
	active   docstore.Subscription
	messages []models.Message
	unbind   func()

	topic pubsub.Topic[Update]
}

func New(sub docstore.Subscriber, logger logging.Logger) *Synchronizer {
	return &Synchronizer{sub: sub, logger: logger}
}

// Follow switches to conversation id: the previous subscription is
// cancelled (even when id is unchanged), the list is cleared, and a new
// subscription is opened. An empty id only tears down.
//
// Follow must not be called from an OnUpdate handler.
func (s *Synchronizer) Follow(ctx context.Context, id string) error {
	s.mu.Lock()
	s.epoch++
	ep := s.epoch
	old := s.active
	s.active = nil
	s.chatID = id
	s.messages = nil
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}

	s.pubMu.Lock()
	s.topic.Publish(Update{ChatID: id, Epoch: ep})
	s.pubMu.Unlock()

	if id == "" {
		return nil
	}

	subscription, err := chats.Watch(ctx, s.sub, id, func(conv *models.Conversation, err error) {
		s.apply(ctx, ep, conv, err)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.epoch != ep {
		// superseded while subscribing
		s.mu.Unlock()
		subscription.Cancel()
		return nil
	}
	s.active = subscription
	s.mu.Unlock()

	s.logger.Debug(ctx, "following conversation", "chat", id, "epoch", ep)
	return nil
}

func (s *Synchronizer) apply(ctx context.Context, ep uint64, conv *models.Conversation, err error) {
	if err != nil {
		s.logger.Warn(ctx, "dropping unreadable conversation snapshot", "epoch", ep, "error", err)
		return
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if ep != s.epoch {
		s.mu.Unlock()
		return
	}
	s.messages = slices.Clone(conv.Messages)
	upd := Update{ChatID: s.chatID, Messages: slices.Clone(s.messages), Epoch: ep}
	s.mu.Unlock()

	s.topic.Publish(upd)
}

// Bind follows the selector's conversation from now on.
func (s *Synchronizer) Bind(ctx context.Context, sel *selector.Selector) error {
	unbind := sel.Subscribe(func(st selector.State) {
		if st.ConversationID == s.ChatID() {
			return
		}
		if err := s.Follow(ctx, st.ConversationID); err != nil {
			s.logger.Error(ctx, "failed to follow conversation", "chat", st.ConversationID, "error", err)
		}
	})

	s.mu.Lock()
	prev := s.unbind
	s.unbind = unbind
	s.mu.Unlock()
	if prev != nil {
		prev()
	}

	return s.Follow(ctx, sel.State().ConversationID)
}

// OnUpdate registers fn for list changes.
func (s *Synchronizer) OnUpdate(fn func(Update)) (unsubscribe func()) {
	return s.topic.Subscribe(fn)
}

// Messages returns the materialized list of the followed conversation.
func (s *Synchronizer) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *Synchronizer) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

func (s *Synchronizer) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Close detaches from the selector and the store and publishes a final
// empty update. Nothing is published after it returns.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	unbind := s.unbind
	s.unbind = nil
	s.epoch++
	ep := s.epoch
	old := s.active
	s.active = nil
	s.chatID = ""
	s.messages = nil
	s.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	if old != nil {
		old.Cancel()
	}

	s.pubMu.Lock()
	s.topic.Publish(Update{Epoch: ep})
	s.pubMu.Unlock()
}
