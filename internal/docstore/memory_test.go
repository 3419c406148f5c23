package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/logging"
)

func TestMemory(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		m := NewMemory(logging.Discard())
		t.Cleanup(func() { _ = m.Close() })
		return m
	})
}

func TestMemory_QueryKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(logging.Discard())
	defer m.Close()

	require.NoError(t, m.Set(ctx, "users", "zed", profile{ID: "zed", Username: "x"}))
	require.NoError(t, m.Set(ctx, "users", "amy", profile{ID: "amy", Username: "x"}))
	require.NoError(t, m.Set(ctx, "users", "zed", profile{ID: "zed", Username: "x"}))

	docs, err := m.Query(ctx, "users", "username", "x")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "zed", docs[0].ID)
	assert.Equal(t, "amy", docs[1].ID)
}

func TestMemory_Closed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(logging.Discard())
	sub, err := m.Subscribe(ctx, "chats", "c1", func(Snapshot) {})
	require.NoError(t, err)
	require.Equal(t, 1, m.hub.size())

	require.NoError(t, m.Close())
	assert.Equal(t, 0, m.hub.size())
	sub.Cancel()

	assert.ErrorIs(t, m.Set(ctx, "chats", "c1", map[string]any{}), common.ErrClosed)
	_, err = m.Subscribe(ctx, "chats", "c1", func(Snapshot) {})
	assert.ErrorIs(t, err, common.ErrClosed)
}

func TestMemory_CancelFromCallback(t *testing.T) {
	m := NewMemory(logging.Discard())
	defer m.Close()

	done := make(chan struct{})
	var sub Subscription
	ready := make(chan struct{})
	sub, err := m.Subscribe(context.Background(), "chats", "c1", func(Snapshot) {
		<-ready
		sub.Cancel()
		close(done)
	})
	require.NoError(t, err)
	close(ready)
	<-done
	assert.Equal(t, 0, m.hub.size())
}
