// Package userchats stores each user's conversation index in
// userchats/{uid}.
package userchats

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/models"
)

type Repository interface {
	Create(ctx context.Context, uid string) error
	Get(ctx context.Context, uid string) (*models.UserChats, error)
	Add(ctx context.Context, uid string, s models.ConversationSummary) error
	Touch(ctx context.Context, uid string, s models.ConversationSummary) error
	MarkSeen(ctx context.Context, uid, chatID string) error
}

type DocRepository struct {
	db docstore.Tx
}

var _ Repository = (*DocRepository)(nil)

func NewDocRepository(db docstore.Tx) *DocRepository {
	return &DocRepository{db: db}
}

type txRunner interface {
	RunTx(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error
}

// atomic runs fn in a transaction when r wraps a Store. A repository built
// on a running transaction is already atomic.
func (r *DocRepository) atomic(ctx context.Context, fn func(ctx context.Context, r *DocRepository) error) error {
	if s, ok := r.db.(txRunner); ok {
		return s.RunTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
			return fn(ctx, NewDocRepository(tx))
		})
	}
	return fn(ctx, r)
}

func (r *DocRepository) Create(ctx context.Context, uid string) error {
	if err := r.db.Set(ctx, models.CollectionUserChats, uid, models.UserChats{Chats: []models.ConversationSummary{}}); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *DocRepository) Get(ctx context.Context, uid string) (*models.UserChats, error) {
	doc, err := r.db.Get(ctx, models.CollectionUserChats, uid)
	if err != nil {
		return nil, err
	}
	return Decode(doc)
}

// Add appends s to the index.
func (r *DocRepository) Add(ctx context.Context, uid string, s models.ConversationSummary) error {
	return r.db.Update(ctx, models.CollectionUserChats, uid, docstore.ArrayUnion("chats", s))
}

// Touch overwrites the lastMessage, updatedAt and isSeen of the entry for
// s.ChatID. A missing entry, or a missing index, is created from s.
func (r *DocRepository) Touch(ctx context.Context, uid string, s models.ConversationSummary) error {
	return r.atomic(ctx, func(ctx context.Context, r *DocRepository) error {
		return r.touch(ctx, uid, s)
	})
}

func (r *DocRepository) touch(ctx context.Context, uid string, s models.ConversationSummary) error {
	uc, err := r.Get(ctx, uid)
	if errors.Is(err, common.ErrNotFound) {
		uc = &models.UserChats{}
		err = nil
	}
	if err != nil {
		return err
	}

	if i := uc.Find(s.ChatID); i >= 0 {
		uc.Chats[i].LastMessage = s.LastMessage
		uc.Chats[i].UpdatedAt = s.UpdatedAt
		uc.Chats[i].IsSeen = s.IsSeen
		if uc.Chats[i].ReceiverID == "" {
			uc.Chats[i].ReceiverID = s.ReceiverID
		}
	} else {
		uc.Chats = append(uc.Chats, s)
	}

	if err := r.db.Set(ctx, models.CollectionUserChats, uid, uc); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// MarkSeen sets isSeen on the entry for chatID.
func (r *DocRepository) MarkSeen(ctx context.Context, uid, chatID string) error {
	return r.atomic(ctx, func(ctx context.Context, r *DocRepository) error {
		return r.markSeen(ctx, uid, chatID)
	})
}

func (r *DocRepository) markSeen(ctx context.Context, uid, chatID string) error {
	uc, err := r.Get(ctx, uid)
	if err != nil {
		return err
	}
	i := uc.Find(chatID)
	if i < 0 {
		return fmt.Errorf("chat %s in index of %s: %w", chatID, uid, common.ErrNotFound)
	}
	if uc.Chats[i].IsSeen {
		return nil
	}
	uc.Chats[i].IsSeen = true
	return r.db.Update(ctx, models.CollectionUserChats, uid, docstore.SetField("chats", uc.Chats))
}

func Decode(doc docstore.Document) (*models.UserChats, error) {
	uc := &models.UserChats{}
	if err := doc.Decode(uc); err != nil {
		return nil, fmt.Errorf("decode userchats %s: %w", doc.ID, err)
	}
	return uc, nil
}

// Watch subscribes to userchats/{uid}. A missing index is reported as
// empty.
func Watch(ctx context.Context, sub docstore.Subscriber, uid string, fn func(*models.UserChats, error)) (docstore.Subscription, error) {
	return sub.Subscribe(ctx, models.CollectionUserChats, uid, func(s docstore.Snapshot) {
		if !s.Exists {
			fn(&models.UserChats{}, nil)
			return
		}
		fn(Decode(s.Document))
	})
}
