package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/chatline/internal/auth"
	"github.com/dmitrijs2005/chatline/internal/blobstore"
	"github.com/dmitrijs2005/chatline/internal/cache"
	"github.com/dmitrijs2005/chatline/internal/client/chatlist"
	"github.com/dmitrijs2005/chatline/internal/client/composer"
	"github.com/dmitrijs2005/chatline/internal/client/config"
	"github.com/dmitrijs2005/chatline/internal/client/directory"
	"github.com/dmitrijs2005/chatline/internal/client/identity"
	"github.com/dmitrijs2005/chatline/internal/client/profile"
	"github.com/dmitrijs2005/chatline/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/chatline/internal/client/selector"
	"github.com/dmitrijs2005/chatline/internal/client/services"
	"github.com/dmitrijs2005/chatline/internal/client/thread"
	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/filex"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/repositories/users"
)

// Client owns the backends and every client-side component.
type Client struct {
	Config *config.Config
	Logger logging.Logger

	Store docstore.Store
	Blobs blobstore.Uploader
	Cache cache.Cache
	DB    *sql.DB

	Auth      *auth.Service
	Session   *identity.Session
	Profiles  *profile.Store
	Selector  *selector.Selector
	Thread    *thread.Synchronizer
	Composer  *composer.Composer
	Directory *directory.Directory
	Chats     *chatlist.List

	Accounts services.AccountService
	Detail   services.DetailService

	closers []func() error
}

// New opens the configured backends, restores a saved session and binds
// the components. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (_ *Client, err error) {
	c := &Client{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	dir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if c.DB, err = InitDatabase(ctx, filepath.Join(dir, LocalDBName)); err != nil {
		return nil, fmt.Errorf("local database error: %w", err)
	}
	c.closers = append(c.closers, c.DB.Close)

	if c.Store, err = OpenStore(ctx, cfg, logger); err != nil {
		return nil, fmt.Errorf("document store error: %w", err)
	}
	c.closers = append(c.closers, c.Store.Close)

	if c.Blobs, err = OpenBlobs(ctx, cfg); err != nil {
		return nil, fmt.Errorf("blob store error: %w", err)
	}

	if c.Cache, err = OpenCache(ctx, cfg); err != nil {
		return nil, fmt.Errorf("cache error: %w", err)
	}
	if c.Cache != nil {
		c.closers = append(c.closers, c.Cache.Close)
	}

	c.Auth = auth.NewService(c.Store, metadata.NewSQLiteRepository(c.DB), []byte(cfg.SecretKey), cfg.SessionValidityDuration, logger)
	if err := c.Auth.Restore(ctx); err != nil {
		logger.Warn(ctx, "saved session not restored", "error", err)
	}

	c.Session = identity.NewSession(c.Auth)
	c.closers = append(c.closers, func() error { c.Session.Close(); return nil })

	c.Profiles = profile.NewStore(users.NewDocRepository(c.Store), c.Cache, cfg.ProfileCacheTTL, logger)
	unbindProfiles := c.Profiles.Bind(ctx, c.Session)
	c.closers = append(c.closers, func() error { unbindProfiles(); return nil })

	c.Selector = selector.New(c.Profiles)

	c.Thread = thread.New(c.Store, logger)
	if err := c.Thread.Bind(ctx, c.Selector); err != nil {
		return nil, fmt.Errorf("conversation sync error: %w", err)
	}
	c.closers = append(c.closers, func() error { c.Thread.Close(); return nil })

	c.Directory = directory.New(c.Store, logger)

	c.Chats = chatlist.New(c.Store, c.Selector, cfg.MarkSeenOnOpen, logger)
	c.Chats.Bind(ctx, c.Profiles)
	c.closers = append(c.closers, func() error { c.Chats.Close(); return nil })

	c.Composer = composer.New(c.Store, c.Blobs, c.Selector, c.Profiles, cfg.RecordingWindow, logger)

	// a new identity never inherits the previous user's conversation or draft
	unbindReset := c.Session.OnSessionChange(func(*auth.Identity) {
		c.Selector.ResetConversation()
		c.Composer.Clear()
	})
	c.closers = append(c.closers, func() error { unbindReset(); return nil })
	c.Accounts = services.NewAccountService(c.Auth, c.Store, c.Blobs, c.Directory, c.Profiles, logger)
	c.Detail = services.NewDetailService(c.Store, c.Selector, c.Profiles, &http.Client{Timeout: time.Minute}, logger)

	return c, nil
}

// Close releases components in reverse order of creation.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && !errors.Is(err, common.ErrClosed) {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
