package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/cryptox"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/pubsub"
	"github.com/dmitrijs2005/chatline/internal/repositories/accounts"
)

// SessionTokenKey is the metadata key holding the persisted token.
const SessionTokenKey = "session_token"

// TokenStore persists the session token between runs. Get returns nil
// when nothing is stored.
type TokenStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store    docstore.Store
	tokens   TokenStore
	secret   []byte
	validity time.Duration
	logger   logging.Logger

	mu      sync.Mutex
	current *Identity
	topic   pubsub.Topic[*Identity]

	newUID func() string
	now    func() time.Time
}

var _ Provider = (*Service)(nil)

func NewService(store docstore.Store, tokens TokenStore, secret []byte, validity time.Duration, logger logging.Logger) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		secret:   secret,
		validity: validity,
		logger:   logger,
		newUID:   func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

// Restore resumes the session saved by a previous run. An expired or
// invalid token is discarded and leaves the user signed out.
func (s *Service) Restore(ctx context.Context) error {
	tok, err := s.tokens.Get(ctx, SessionTokenKey)
	if err != nil {
		return err
	}
	if len(tok) == 0 {
		s.setCurrent(nil)
		return nil
	}

	id, err := ParseToken(string(tok), s.secret)
	if err != nil {
		s.logger.Info(ctx, "discarding saved session", "error", err)
		if err := s.tokens.Delete(ctx, SessionTokenKey); err != nil {
			return err
		}
		s.setCurrent(nil)
		return nil
	}

	s.setCurrent(&id)
	return nil
}

func (s *Service) ObserveSession(fn func(*Identity)) func() {
	unsubscribe := s.topic.Subscribe(fn)
	fn(s.Current())
	return unsubscribe
}

func (s *Service) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)

	acc, err := accounts.NewDocRepository(s.store).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !cryptox.CheckPassword([]byte(password), acc.Salt, acc.Verifier) {
		return nil, common.ErrInvalidCredentials
	}

	return s.startSession(ctx, Identity{UID: acc.UID, Email: acc.Email})
}

// CreateAccount registers email and signs the new account in.
func (s *Service) CreateAccount(ctx context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	acc := &models.Account{
		UID:       s.newUID(),
		Email:     email,
		Salt:      salt,
		Verifier:  cryptox.PasswordVerifier([]byte(password), salt),
		CreatedAt: s.now().UTC(),
	}

	err := s.store.RunTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return accounts.NewDocRepository(tx).Create(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	return s.startSession(ctx, Identity{UID: acc.UID, Email: acc.Email})
}

func (s *Service) SignOut(ctx context.Context) error {
	if err := s.tokens.Delete(ctx, SessionTokenKey); err != nil {
		return err
	}
	s.setCurrent(nil)
	return nil
}

func (s *Service) startSession(ctx context.Context, id Identity) (*Identity, error) {
	tok, err := GenerateToken(id, s.secret, s.validity)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := s.tokens.Set(ctx, SessionTokenKey, []byte(tok)); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.setCurrent(&id)
	return s.Current(), nil
}

func (s *Service) setCurrent(id *Identity) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	s.topic.Publish(s.Current())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
