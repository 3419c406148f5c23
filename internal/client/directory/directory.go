// Package directory finds other users by username and starts
// conversations with them.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/repositories/chats"
	"github.com/dmitrijs2005/chatline/internal/repositories/userchats"
	"github.com/dmitrijs2005/chatline/internal/repositories/users"
	"github.com/dmitrijs2005/chatline/internal/timex"
)

type Directory struct {
	store  docstore.Store
	logger logging.Logger

	now   func() time.Time
	newID func() string
}

func New(store docstore.Store, logger logging.Logger) *Directory {
	return &Directory{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// SearchUser returns the first profile whose username equals username
// exactly, or nil when there is none.
func (d *Directory) SearchUser(ctx context.Context, username string) (*models.UserProfile, error) {
	p, err := users.NewDocRepository(d.store).FindByUsername(ctx, username)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CheckUsername validates username locally and only then asks the store
// whether it is free.
func (d *Directory) CheckUsername(ctx context.Context, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	p, err := d.SearchUser(ctx, username)
	if err != nil {
		return err
	}
	if p != nil {
		return common.ErrUsernameTaken
	}
	return nil
}

// StartConversation creates an empty chat and adds a summary for it to
// both participants' indexes in one transaction. It returns the chat id.
// Starting a second conversation with the same user is allowed.
func (d *Directory) StartConversation(ctx context.Context, self, target *models.UserProfile) (string, error) {
	if self == nil {
		return "", common.ErrNotSignedIn
	}
	if target == nil || target.ID == "" {
		return "", fmt.Errorf("%w: no user selected", common.ErrValidation)
	}
	if target.ID == self.ID {
		return "", fmt.Errorf("%w: cannot start a conversation with yourself", common.ErrValidation)
	}

	id := d.newID()
	now := d.now()
	at := timex.UnixMilli(now)

	err := d.store.RunTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := chats.NewDocRepository(tx).Create(ctx, id, now.UTC()); err != nil {
			return err
		}
		uc := userchats.NewDocRepository(tx)
		if err := uc.Touch(ctx, target.ID, models.ConversationSummary{
			ChatID: id, ReceiverID: self.ID, UpdatedAt: at,
		}); err != nil {
			return err
		}
		return uc.Touch(ctx, self.ID, models.ConversationSummary{
			ChatID: id, ReceiverID: target.ID, UpdatedAt: at, IsSeen: true,
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: start conversation: %w", common.ErrWrite, err)
	}

	d.logger.Info(ctx, "conversation started", "chat", id, "with", target.ID)
	return id, nil
}

// HasConversationWith reports whether uid's index already holds a
// conversation with other.
func (d *Directory) HasConversationWith(ctx context.Context, uid, other string) (bool, error) {
	uc, err := userchats.NewDocRepository(d.store).Get(ctx, uid)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, s := range uc.Chats {
		if s.ReceiverID == other {
			return true, nil
		}
	}
	return false, nil
}
