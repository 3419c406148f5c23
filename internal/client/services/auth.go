// Package services contains the application services behind the chatline
// REPL. This file defines the account service: registration with pre-flight
// validation, login and logout.
package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chatline/internal/auth"
	"github.com/dmitrijs2005/chatline/internal/blobstore"
	"github.com/dmitrijs2005/chatline/internal/client/directory"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/filex"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
	"github.com/dmitrijs2005/chatline/internal/repositories/userchats"
	"github.com/dmitrijs2005/chatline/internal/repositories/users"
)

// AccountService defines account operations for the CLI.
//
// Contract:
//   - Register: validate locally, check the username is free, create the
//     account, upload the avatar and write the profile and an empty
//     conversation index. The new account is signed in.
//   - Login / Logout: start or end the session.
//
// Validation failures match common.ErrValidation and happen before any
// account is created.
type AccountService interface {
	Register(ctx context.Context, username, email, password string, avatar *filex.Attachment) (*auth.Identity, error)
	Login(ctx context.Context, email, password string) (*auth.Identity, error)
	Logout(ctx context.Context) error
}

// ProfileRefresher reloads the signed-in user's profile once it exists;
// profile.Store does.
type ProfileRefresher interface {
	Refresh(ctx context.Context)
}

type accountService struct {
	provider  auth.Provider
	store     docstore.Store
	blobs     blobstore.Uploader
	dir       *directory.Directory
	refresher ProfileRefresher
	logger    logging.Logger
}

// NewAccountService constructs an AccountService. refresher may be nil.
func NewAccountService(provider auth.Provider, store docstore.Store, blobs blobstore.Uploader,
	dir *directory.Directory, refresher ProfileRefresher, logger logging.Logger) AccountService {
	return &accountService{
		provider:  provider,
		store:     store,
		blobs:     blobs,
		dir:       dir,
		refresher: refresher,
		logger:    logger,
	}
}

func (a *accountService) Register(ctx context.Context, username, email, password string, avatar *filex.Attachment) (*auth.Identity, error) {
	if err := directory.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := directory.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := directory.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := a.dir.CheckUsername(ctx, username); err != nil {
		return nil, err
	}

	id, err := a.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("create account error: %w", err)
	}

	var avatarURL string
	if avatar != nil {
		avatarURL, err = a.blobs.Upload(ctx, blobstore.Blob{Name: avatar.Name, ContentType: avatar.ContentType, Data: avatar.Data})
		if err != nil {
			// the account exists; a profile without avatar is still usable
			a.logger.Warn(ctx, "avatar upload failed", "uid", id.UID, "error", err)
			avatarURL = ""
		}
	}

	p := &models.UserProfile{
		ID:       id.UID,
		Username: username,
		Email:    id.Email,
		Avatar:   avatarURL,
		Blocked:  []string{},
	}
	err = a.store.RunTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := users.NewDocRepository(tx).Create(ctx, p); err != nil {
			return err
		}
		return userchats.NewDocRepository(tx).Create(ctx, id.UID)
	})
	if err != nil {
		return nil, fmt.Errorf("profile saving error: %w", err)
	}

	if a.refresher != nil {
		a.refresher.Refresh(ctx)
	}
	a.logger.Info(ctx, "account registered", "uid", id.UID, "username", username)
	return id, nil
}

func (a *accountService) Login(ctx context.Context, email, password string) (*auth.Identity, error) {
	id, err := a.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	return id, nil
}

func (a *accountService) Logout(ctx context.Context) error {
	return a.provider.SignOut(ctx)
}
