// Package chats stores conversation logs in chats/{id}.
package chats

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/models"
)

type Repository interface {
	Create(ctx context.Context, id string, createdAt time.Time) error
	Get(ctx context.Context, id string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, id string, msg models.Message) error
}

type DocRepository struct {
	db docstore.Tx
}

var _ Repository = (*DocRepository)(nil)

func NewDocRepository(db docstore.Tx) *DocRepository {
	return &DocRepository{db: db}
}

// Create writes an empty log.
func (r *DocRepository) Create(ctx context.Context, id string, createdAt time.Time) error {
	conv := models.Conversation{CreatedAt: createdAt, Messages: []models.Message{}}
	if err := r.db.Set(ctx, models.CollectionChats, id, conv); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *DocRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	doc, err := r.db.Get(ctx, models.CollectionChats, id)
	if err != nil {
		return nil, err
	}
	return Decode(doc)
}

// AppendMessage adds msg at the end of the log. Message ids are unique, so
// the set-union never collapses two messages.
func (r *DocRepository) AppendMessage(ctx context.Context, id string, msg models.Message) error {
	return r.db.Update(ctx, models.CollectionChats, id, docstore.ArrayUnion("messages", msg))
}

// Decode reads a conversation document.
func Decode(doc docstore.Document) (*models.Conversation, error) {
	conv := &models.Conversation{}
	if err := doc.Decode(conv); err != nil {
		return nil, fmt.Errorf("decode chat %s: %w", doc.ID, err)
	}
	return conv, nil
}

// Watch subscribes to chats/{id}. A missing document is reported as an
// empty conversation.
func Watch(ctx context.Context, sub docstore.Subscriber, id string, fn func(*models.Conversation, error)) (docstore.Subscription, error) {
	return sub.Subscribe(ctx, models.CollectionChats, id, func(s docstore.Snapshot) {
		if !s.Exists {
			fn(&models.Conversation{}, nil)
			return
		}
		fn(Decode(s.Document))
	})
}
