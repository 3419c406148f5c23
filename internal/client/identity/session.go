// Package identity publishes who is signed in. It is the root of the
// client's state: the profile store, and through it every other component,
// follow its changes.
package identity

import (
	"sync"

	"github.com/dmitrijs2005/chatline/internal/auth"
	"github.com/dmitrijs2005/chatline/internal/pubsub"
)

type Session struct {
	provider auth.Provider

	mu      sync.Mutex
	current *auth.Identity
	topic   pubsub.Topic[*auth.Identity]
	detach  func()
}

// NewSession starts observing provider.
func NewSession(provider auth.Provider) *Session {
	s := &Session{provider: provider}
	s.detach = provider.ObserveSession(s.update)
	return s
}

func (s *Session) update(id *auth.Identity) {
	s.mu.Lock()
	if same(s.current, id) {
		s.mu.Unlock()
		return
	}
	s.current = clone(id)
	s.mu.Unlock()

	s.topic.Publish(clone(id))
}

// Current returns the signed-in identity or nil.
func (s *Session) Current() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.current)
}

// OnSessionChange registers fn and calls it with the current identity
// right away. The returned func detaches fn and is idempotent.
func (s *Session) OnSessionChange(fn func(*auth.Identity)) (unsubscribe func()) {
	unsubscribe = s.topic.Subscribe(fn)
	fn(s.Current())
	return unsubscribe
}

// Close stops observing the provider.
func (s *Session) Close() {
	s.detach()
}

func same(a, b *auth.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clone(id *auth.Identity) *auth.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
