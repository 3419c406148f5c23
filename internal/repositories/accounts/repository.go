// Package accounts stores credential records in accounts/{email}. Only the
// auth service reads them.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
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

// Create fails with common.ErrEmailTaken when the email is registered. The
// check and the write share one transaction.
func (r *DocRepository) Create(ctx context.Context, a *models.Account) error {
	if s, ok := r.db.(txRunner); ok {
		return s.RunTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
			return NewDocRepository(tx).create(ctx, a)
		})
	}
	return r.create(ctx, a)
}

func (r *DocRepository) create(ctx context.Context, a *models.Account) error {
	_, err := r.db.Get(ctx, models.CollectionAccounts, a.Email)
	if err == nil {
		return common.ErrEmailTaken
	}
	if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("db error: %w", err)
	}
	if err := r.db.Set(ctx, models.CollectionAccounts, a.Email, a); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *DocRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	doc, err := r.db.Get(ctx, models.CollectionAccounts, email)
	if err != nil {
		return nil, err
	}
	a := &models.Account{}
	if err := doc.Decode(a); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return a, nil
}
