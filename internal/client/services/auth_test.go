package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chatline/internal/auth"
	"github.com/dmitrijs2005/chatline/internal/blobstore"
	"github.com/dmitrijs2005/chatline/internal/client/directory"
	"github.com/dmitrijs2005/chatline/internal/client/migrations"
	"github.com/dmitrijs2005/chatline/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/filex"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/repositories/accounts"
	"github.com/dmitrijs2005/chatline/internal/repositories/userchats"
	"github.com/dmitrijs2005/chatline/internal/repositories/users"

	_ "modernc.org/sqlite"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Run(context.Background(), db))
	return db
}

type countingRefresher struct{ calls int }

func (c *countingRefresher) Refresh(context.Context) { c.calls++ }

type accountFixture struct {
	store     *docstore.Memory
	blobs     *blobstore.Memory
	provider  *auth.Service
	refresher *countingRefresher
	svc       AccountService
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	store := docstore.NewMemory(logging.Discard())
	t.Cleanup(func() { _ = store.Close() })

	tokens := metadata.NewSQLiteRepository(setupDB(t))
	provider := auth.NewService(store, tokens, []byte("test-secret"), time.Hour, logging.Discard())

	f := &accountFixture{
		store:     store,
		blobs:     blobstore.NewMemory("avatars"),
		provider:  provider,
		refresher: &countingRefresher{},
	}
	f.svc = NewAccountService(provider, store, f.blobs, directory.New(store, logging.Discard()), f.refresher, logging.Discard())
	return f
}

// ---- tests ----

func TestRegister_OK(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	avatar := &filex.Attachment{Name: "me.png", ContentType: "image/png", Data: []byte{1, 2, 3}}

	id, err := f.svc.Register(ctx, "alice1", "Alice@Example.com", "secret1", avatar)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, id, f.provider.Current())
	assert.Equal(t, 1, f.refresher.calls)

	p, err := users.NewDocRepository(f.store).Get(ctx, id.UID)
	require.NoError(t, err)
	assert.Equal(t, "alice1", p.Username)
	assert.Equal(t, []string{}, p.Blocked)
	blob, ok := f.blobs.Open(p.Avatar)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, blob.Data)

	uc, err := userchats.NewDocRepository(f.store).Get(ctx, id.UID)
	require.NoError(t, err)
	assert.Empty(t, uc.Chats)
}

func TestRegister_WithoutAvatar(t *testing.T) {
	f := newAccountFixture(t)
	id, err := f.svc.Register(context.Background(), "bob42", "bob@example.com", "secret1", nil)
	require.NoError(t, err)

	p, err := users.NewDocRepository(f.store).Get(context.Background(), id.UID)
	require.NoError(t, err)
	assert.Empty(t, p.Avatar)
}

func TestRegister_ValidationBeforeAccount(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{"short username", "ab", "a@example.com", "secret1", common.ErrUsernameTooShort},
		{"numeric username", "123", "a@example.com", "secret1", common.ErrUsernameNumeric},
		{"markup username", "<i>x</i>", "a@example.com", "secret1", common.ErrUsernameMarkup},
		{"bad email", "alice1", "nope", "secret1", common.ErrInvalidEmail},
		{"weak password", "alice1", "a@example.com", "12345", common.ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccountFixture(t)
			_, err := f.svc.Register(context.Background(), tt.username, tt.email, tt.password, nil)
			require.ErrorIs(t, err, tt.wantErr)

			_, err = accounts.NewDocRepository(f.store).GetByEmail(context.Background(), tt.email)
			assert.ErrorIs(t, err, common.ErrNotFound)
			assert.Nil(t, f.provider.Current())
		})
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice1", "a@example.com", "secret1", nil)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "alice1", "b@example.com", "secret1", nil)
	assert.ErrorIs(t, err, common.ErrUsernameTaken)
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice1", "a@example.com", "secret1", nil)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "alice2", "a@example.com", "secret1", nil)
	assert.ErrorIs(t, err, common.ErrEmailTaken)
}

func TestLoginLogout(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, "alice1", "a@example.com", "secret1", nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx))
	assert.Nil(t, f.provider.Current())

	_, err = f.svc.Login(ctx, "a@example.com", "wrong-pass")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	id, err := f.svc.Login(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.UID, id.UID)
}
