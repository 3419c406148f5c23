// Package users stores public user profiles in users/{id}.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.UserProfile) error
	Get(ctx context.Context, id string) (*models.UserProfile, error)
	FindByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	Block(ctx context.Context, id, target string) error
	Unblock(ctx context.Context, id, target string) error
}

// DocRepository works on a Store or on a transaction. FindByUsername needs
// a handle that can query.
type DocRepository struct {
	db docstore.Tx
}

var _ Repository = (*DocRepository)(nil)

func NewDocRepository(db docstore.Tx) *DocRepository {
	return &DocRepository{db: db}
}

func (r *DocRepository) Create(ctx context.Context, p *models.UserProfile) error {
	if p.Blocked == nil {
		p.Blocked = []string{}
	}
	if err := r.db.Set(ctx, models.CollectionUsers, p.ID, p); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *DocRepository) Get(ctx context.Context, id string) (*models.UserProfile, error) {
	doc, err := r.db.Get(ctx, models.CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	return decode(doc)
}

// FindByUsername returns the first profile with an exactly matching
// username, or common.ErrNotFound.
func (r *DocRepository) FindByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	q, ok := r.db.(docstore.Querier)
	if !ok {
		return nil, errors.New("username lookup needs a querying store")
	}
	docs, err := q.Query(ctx, models.CollectionUsers, "username", username)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("username %q: %w", username, common.ErrNotFound)
	}
	return decode(docs[0])
}

func (r *DocRepository) Block(ctx context.Context, id, target string) error {
	return r.db.Update(ctx, models.CollectionUsers, id, docstore.ArrayUnion("blocked", target))
}

func (r *DocRepository) Unblock(ctx context.Context, id, target string) error {
	return r.db.Update(ctx, models.CollectionUsers, id, docstore.ArrayRemove("blocked", target))
}

func decode(doc docstore.Document) (*models.UserProfile, error) {
	p := &models.UserProfile{}
	if err := doc.Decode(p); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	if p.ID == "" {
		p.ID = doc.ID
	}
	return p, nil
}
