package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chatline/internal/common"
)

type profile struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Blocked  []string `json:"blocked"`
}

// runStoreSuite checks the behaviour every Store adapter must share.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, "users", "nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, "users", "u1", profile{ID: "u1", Username: "alice"}))

		doc, err := s.Get(ctx, "users", "u1")
		require.NoError(t, err)
		var p profile
		require.NoError(t, doc.Decode(&p))
		assert.Equal(t, "alice", p.Username)
		assert.Equal(t, "u1", doc.ID)
		assert.Equal(t, "users", doc.Collection)
	})

	t.Run("update missing", func(t *testing.T) {
		s := open(t)
		err := s.Update(ctx, "users", "ghost", SetField("username", "x"))
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("array mutations", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, "users", "u1", profile{ID: "u1", Blocked: []string{}}))
		require.NoError(t, s.Update(ctx, "users", "u1", ArrayUnion("blocked", "u2")))
		require.NoError(t, s.Update(ctx, "users", "u1", ArrayUnion("blocked", "u2", "u3")))

		var p profile
		doc, err := s.Get(ctx, "users", "u1")
		require.NoError(t, err)
		require.NoError(t, doc.Decode(&p))
		assert.Equal(t, []string{"u2", "u3"}, p.Blocked)

		require.NoError(t, s.Update(ctx, "users", "u1", ArrayRemove("blocked", "u2")))
		doc, err = s.Get(ctx, "users", "u1")
		require.NoError(t, err)
		require.NoError(t, doc.Decode(&p))
		assert.Equal(t, []string{"u3"}, p.Blocked)
	})

	t.Run("query", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, "users", "a1", profile{ID: "a1", Username: "bob"}))
		require.NoError(t, s.Set(ctx, "users", "a2", profile{ID: "a2", Username: "carol"}))
		require.NoError(t, s.Set(ctx, "users", "a3", profile{ID: "a3", Username: "bob"}))
		require.NoError(t, s.Set(ctx, "chats", "a4", map[string]string{"username": "bob"}))

		docs, err := s.Query(ctx, "users", "username", "bob")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a1", docs[0].ID)
		assert.Equal(t, "a3", docs[1].ID)

		docs, err = s.Query(ctx, "users", "username", "dave")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("transaction is all or nothing", func(t *testing.T) {
		s := open(t)
		boom := errors.New("boom")

		err := s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.Set(ctx, "userchats", "u1", map[string]any{"chats": []any{}}); err != nil {
				return err
			}
			if err := tx.Set(ctx, "userchats", "u2", map[string]any{"chats": []any{}}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.Get(ctx, "userchats", "u1")
		assert.ErrorIs(t, err, common.ErrNotFound)
		_, err = s.Get(ctx, "userchats", "u2")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("transaction reads its own writes", func(t *testing.T) {
		s := open(t)
		err := s.RunTx(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.Set(ctx, "users", "u1", profile{ID: "u1"}); err != nil {
				return err
			}
			if err := tx.Update(ctx, "users", "u1", ArrayUnion("blocked", "u9")); err != nil {
				return err
			}
			doc, err := tx.Get(ctx, "users", "u1")
			if err != nil {
				return err
			}
			var p profile
			if err := doc.Decode(&p); err != nil {
				return err
			}
			assert.Equal(t, []string{"u9"}, p.Blocked)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("subscribe delivers initial and later snapshots", func(t *testing.T) {
		s := open(t)
		snaps := make(chan Snapshot, 16)
		sub, err := s.Subscribe(ctx, "chats", "c1", func(snap Snapshot) { snaps <- snap })
		require.NoError(t, err)
		defer sub.Cancel()

		first := receive(t, snaps)
		assert.False(t, first.Exists)

		require.NoError(t, s.Set(ctx, "chats", "c1", map[string]any{"messages": []string{"hi"}}))
		var got Snapshot
		require.Eventually(t, func() bool {
			select {
			case got = <-snaps:
				return got.Exists
			default:
				return false
			}
		}, 2*time.Second, 5*time.Millisecond)
		assert.JSONEq(t, `{"messages":["hi"]}`, string(got.Data))
	})

	t.Run("cancel stops deliveries", func(t *testing.T) {
		s := open(t)
		snaps := make(chan Snapshot, 16)
		sub, err := s.Subscribe(ctx, "chats", "c1", func(snap Snapshot) { snaps <- snap })
		require.NoError(t, err)
		receive(t, snaps)

		sub.Cancel()
		sub.Cancel()

		require.NoError(t, s.Set(ctx, "chats", "c1", map[string]any{"messages": []string{}}))
		select {
		case snap := <-snaps:
			t.Fatalf("unexpected delivery after cancel: %+v", snap)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("subscribers see latest state", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, "users", "u1", profile{ID: "u1", Blocked: []string{}}))

		snaps := make(chan Snapshot, 64)
		sub, err := s.Subscribe(ctx, "users", "u1", func(snap Snapshot) { snaps <- snap })
		require.NoError(t, err)
		defer sub.Cancel()

		for _, id := range []string{"a", "b", "c", "d"} {
			require.NoError(t, s.Update(ctx, "users", "u1", ArrayUnion("blocked", id)))
		}

		require.Eventually(t, func() bool {
			for {
				select {
				case snap := <-snaps:
					var p profile
					require.NoError(t, snap.Decode(&p))
					if len(p.Blocked) == 4 {
						return true
					}
				default:
					return false
				}
			}
		}, 2*time.Second, 5*time.Millisecond)
	})
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return Snapshot{}
	}
}
