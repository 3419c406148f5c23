// Package profile caches the signed-in user's profile for the rest of the
// client.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/chatline/internal/auth"
	"github.com/dmitrijs2005/chatline/internal/cache"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/pubsub"
)

const cacheKeyPrefix = "chatline:profile:"

// State is what subscribers observe. Profile is nil when signed out or
// when the last load failed.
type State struct {
	Profile   *models.UserProfile
	IsLoading bool
}

// Loader reads a profile by id.
type Loader interface {
	Get(ctx context.Context, id string) (*models.UserProfile, error)
}

// SessionSource is satisfied by identity.Session.
type SessionSource interface {
	OnSessionChange(fn func(*auth.Identity)) (unsubscribe func())
}

type Store struct {
	users  Loader
	cache  cache.Cache
	ttl    time.Duration
	logger logging.Logger

	// pubMu orders deliveries: each one reads the state after taking it, so
	// the last delivery always carries the latest state. Handlers must not
	// call FetchUserInfo, Refresh or ApplyBlocked.
	pubMu sync.Mutex

	mu    sync.Mutex
	state State
	uid   string
	gen   uint64
	topic pubsub.Topic[State]
}

// NewStore builds a profile store. c may be nil to read straight from the
// document store.
func NewStore(users Loader, c cache.Cache, ttl time.Duration, logger logging.Logger) *Store {
	return &Store{users: users, cache: c, ttl: ttl, logger: logger}
}

// Bind follows session: every identity change reloads the profile.
func (s *Store) Bind(ctx context.Context, session SessionSource) (unsubscribe func()) {
	return session.OnSessionChange(func(id *auth.Identity) {
		if id == nil {
			s.FetchUserInfo(ctx, nil)
			return
		}
		uid := id.UID
		s.FetchUserInfo(ctx, &uid)
	})
}

// FetchUserInfo loads the profile of uid, or clears it when uid is nil.
// Load failures are logged and leave the profile unset. When calls
// overlap, only the latest one updates the state.
func (s *Store) FetchUserInfo(ctx context.Context, uid *string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if uid == nil {
		s.uid = ""
		s.state = State{}
		s.mu.Unlock()
		s.publish()
		return
	}
	s.uid = *uid
	s.state.IsLoading = true
	s.mu.Unlock()
	s.publish()

	p, err := s.load(ctx, *uid)
	if err != nil {
		s.logger.Error(ctx, "failed to load profile", "uid", *uid, "error", err)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.state = State{Profile: p, IsLoading: false}
	s.mu.Unlock()
	s.publish()
}

// Refresh reloads the current user's profile, bypassing the cache.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	uid := s.uid
	s.mu.Unlock()
	if uid == "" {
		return
	}
	s.invalidate(ctx, uid)
	s.FetchUserInfo(ctx, &uid)
}

// ApplyBlocked mirrors a committed change of the user's blocked set.
func (s *Store) ApplyBlocked(ctx context.Context, blocked []string) {
	s.mu.Lock()
	if s.state.Profile == nil {
		s.mu.Unlock()
		return
	}
	p := s.state.Profile.Clone()
	p.Blocked = slices.Clone(blocked)
	s.state.Profile = p
	uid := p.ID
	s.mu.Unlock()

	s.invalidate(ctx, uid)
	s.publish()
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Profile: s.state.Profile.Clone(), IsLoading: s.state.IsLoading}
}

// Current returns a copy of the profile, or nil.
func (s *Store) Current() *models.UserProfile {
	return s.State().Profile
}

// Subscribe registers fn for state changes.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.topic.Subscribe(fn)
}

func (s *Store) publish() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.topic.Publish(s.State())
}

func (s *Store) load(ctx context.Context, uid string) (*models.UserProfile, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKeyPrefix+uid)
		switch {
		case err == nil:
			p := &models.UserProfile{}
			if err := json.Unmarshal([]byte(raw), p); err == nil {
				return p, nil
			}
			s.logger.Warn(ctx, "dropping undecodable cached profile", "uid", uid)
		case !errors.Is(err, cache.ErrMiss):
			s.logger.Warn(ctx, "profile cache read failed", "uid", uid, "error", err)
		}
	}

	p, err := s.users.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, cacheKeyPrefix+uid, string(raw), s.ttl); err != nil {
				s.logger.Warn(ctx, "profile cache write failed", "uid", uid, "error", err)
			}
		}
	}
	return p, nil
}

func (s *Store) invalidate(ctx context.Context, uid string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Del(ctx, cacheKeyPrefix+uid); err != nil {
		s.logger.Warn(ctx, "profile cache invalidation failed", "uid", uid, "error", err)
	}
}
