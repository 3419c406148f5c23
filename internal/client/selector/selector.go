// Package selector tracks which conversation is open, who the other
// participant is, and whether either side has blocked the other.
package selector

import (
	"sync"

	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/pubsub"
)

// State is the active conversation. The zero value means none is open.
type State struct {
	ConversationID string
	Counterpart    *models.UserProfile

	// IsCurrentUserBlocked: the counterpart has blocked the signed-in user.
	IsCurrentUserBlocked bool
	// IsReceiverBlocked: the signed-in user has blocked the counterpart.
	IsReceiverBlocked bool
}

// Blocked reports whether either side blocks the other.
func (s State) Blocked() bool {
	return s.IsCurrentUserBlocked || s.IsReceiverBlocked
}

// ProfileSource gives the signed-in user's profile; profile.Store does.
type ProfileSource interface {
	Current() *models.UserProfile
}

type Selector struct {
	profiles ProfileSource

	mu    sync.Mutex
	state State
	topic pubsub.Topic[State]
}

func New(profiles ProfileSource) *Selector {
	return &Selector{profiles: profiles}
}

// ChangeConversation opens id with counterpart and derives both block
// flags from the current profile.
func (s *Selector) ChangeConversation(id string, counterpart *models.UserProfile) {
	self := s.profiles.Current()

	st := State{ConversationID: id, Counterpart: counterpart.Clone()}
	if self != nil && counterpart != nil {
		st.IsCurrentUserBlocked = counterpart.HasBlocked(self.ID)
		st.IsReceiverBlocked = self.HasBlocked(counterpart.ID)
	}

	s.set(st)
}

func (s *Selector) ResetConversation() {
	s.set(State{})
}

// ToggleBlockFlag flips IsReceiverBlocked after the user's blocked set
// was changed in the store.
func (s *Selector) ToggleBlockFlag() {
	s.mu.Lock()
	s.state.IsReceiverBlocked = !s.state.IsReceiverBlocked
	st := s.copyLocked()
	s.mu.Unlock()
	s.topic.Publish(st)
}

func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Selector) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.topic.Subscribe(fn)
}

func (s *Selector) set(st State) {
	s.mu.Lock()
	s.state = st
	st = s.copyLocked()
	s.mu.Unlock()
	s.topic.Publish(st)
}

func (s *Selector) copyLocked() State {
	st := s.state
	st.Counterpart = st.Counterpart.Clone()
	return st
}
