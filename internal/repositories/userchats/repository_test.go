package userchats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/docstore"
	"github.com/dmitrijs2005/chatline/internal/logging"
	"github.com/dmitrijs2005/chatline/internal/models"
)

func newRepo(t *testing.T) *DocRepository {
	t.Helper()
	store := docstore.NewMemory(logging.Discard())
	t.Cleanup(func() { _ = store.Close() })
	return NewDocRepository(store)
}

func TestAddAndTouch(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	require.NoError(t, r.Create(ctx, "u1"))
	require.NoError(t, r.Add(ctx, "u1", models.ConversationSummary{ChatID: "c1", ReceiverID: "u2", UpdatedAt: 10}))
	require.NoError(t, r.Add(ctx, "u1", models.ConversationSummary{ChatID: "c2", ReceiverID: "u3", UpdatedAt: 20}))

	require.NoError(t, r.Touch(ctx, "u1", models.ConversationSummary{ChatID: "c1", ReceiverID: "u2", LastMessage: "hey", UpdatedAt: 30, IsSeen: true}))

	uc, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	want := []models.ConversationSummary{
		{ChatID: "c1", ReceiverID: "u2", LastMessage: "hey", UpdatedAt: 30, IsSeen: true},
		{ChatID: "c2", ReceiverID: "u3", UpdatedAt: 20},
	}
	if diff := cmp.Diff(want, uc.Chats); diff != "" {
		t.Fatalf("summaries mismatch (-want +got):\n%s", diff)
	}
}

func TestTouch_RepairsMissingEntryAndIndex(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	s := models.ConversationSummary{ChatID: "c9", ReceiverID: "u2", LastMessage: "x", UpdatedAt: 5}
	require.NoError(t, r.Touch(ctx, "u1", s))

	uc, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.ConversationSummary{s}, uc.Chats)
}

func TestMarkSeen(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	require.NoError(t, r.Create(ctx, "u1"))
	require.NoError(t, r.Add(ctx, "u1", models.ConversationSummary{ChatID: "c1", ReceiverID: "u2"}))

	require.NoError(t, r.MarkSeen(ctx, "u1", "c1"))
	require.NoError(t, r.MarkSeen(ctx, "u1", "c1"))
	uc, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, uc.Chats[0].IsSeen)

	assert.ErrorIs(t, r.MarkSeen(ctx, "u1", "nope"), common.ErrNotFound)
	assert.ErrorIs(t, r.MarkSeen(ctx, "ghost", "c1"), common.ErrNotFound)
}

// interleavingStore calls afterRead once, right after the first read made
// inside a transaction.
type interleavingStore struct {
	*docstore.Memory
	once      sync.Once
	afterRead func()
}

func (s *interleavingStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	return s.Memory.RunTx(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &readHookTx{Tx: tx, s: s})
	})
}

type readHookTx struct {
	docstore.Tx
	s *interleavingStore
}

func (t *readHookTx) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	doc, err := t.Tx.Get(ctx, collection, id)
	t.s.once.Do(t.s.afterRead)
	return doc, err
}

func TestMarkSeen_ConcurrentTouchSurvives(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemory(logging.Discard())
	t.Cleanup(func() { _ = mem.Close() })

	base := NewDocRepository(mem)
	require.NoError(t, base.Create(ctx, "bob"))
	require.NoError(t, base.Add(ctx, "bob", models.ConversationSummary{ChatID: "c1", ReceiverID: "alice", UpdatedAt: 1}))

	touched := make(chan error, 1)
	s := &interleavingStore{Memory: mem}
	s.afterRead = func() {
		go func() {
			touched <- base.Touch(ctx, "bob", models.ConversationSummary{ChatID: "c1", ReceiverID: "alice", LastMessage: "new msg", UpdatedAt: 99})
		}()
		// give the writer time to reach the store
		time.Sleep(20 * time.Millisecond)
	}

	require.NoError(t, NewDocRepository(s).MarkSeen(ctx, "bob", "c1"))
	require.NoError(t, <-touched)

	uc, err := base.Get(ctx, "bob")
	require.NoError(t, err)
	want := []models.ConversationSummary{
		{ChatID: "c1", ReceiverID: "alice", LastMessage: "new msg", UpdatedAt: 99},
	}
	if diff := cmp.Diff(want, uc.Chats); diff != "" {
		t.Fatalf("summaries mismatch (-want +got):\n%s", diff)
	}
}
