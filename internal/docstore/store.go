// Package docstore is the document-database contract the chat client is
// written against, plus three adapters:
//
//   - Memory:   process-local, used by tests and the demo backend.
//   - Pebble:   embedded single-node store on local disk.
//   - Postgres: shared store; realtime delivery through LISTEN/NOTIFY.
//
// Documents are JSON objects addressed by (collection, id). Writes are whole
// document Sets or field Mutations (SetField, ArrayUnion, ArrayRemove).
// Subscriptions deliver full snapshots, never deltas: every delivery is the
// document's state at the time it was read.
package docstore

import (
	"context"
	"encoding/json"
)

// Document is one stored JSON object.
type Document struct {
	Collection string
	ID         string
	Data       json.RawMessage
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Snapshot is what a subscription delivers. Exists is false when the
// document is absent (never created, or not yet visible).
type Snapshot struct {
	Document
	Exists bool
}

// Subscription is a live document listener. Cancel detaches it without
// waiting for a delivery in progress; no further delivery is read after it
// returns. Cancel is idempotent and safe to call from inside the callback.
type Subscription interface {
	Cancel()
}

// Tx is the read/write surface shared by a Store and a running transaction.
// Get returns common.ErrNotFound for a missing document; Update on a missing
// document also returns common.ErrNotFound.
type Tx interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, data any) error
	Update(ctx context.Context, collection, id string, mutations ...Mutation) error
}

// Subscriber opens live listeners on single documents. fn receives an
// initial snapshot shortly after subscribing and one per committed change.
// Deliveries for one subscription are sequential.
type Subscriber interface {
	Subscribe(ctx context.Context, collection, id string, fn func(Snapshot)) (Subscription, error)
}

// Querier finds documents by field value. Query returns the documents of
// collection whose top-level field equals value, in the store's natural
// order. Transactions do not query.
type Querier interface {
	Query(ctx context.Context, collection, field string, value any) ([]Document, error)
}

// Store is a document database.
type Store interface {
	Tx
	Querier
	Subscriber

	// RunTx runs fn atomically. Writes made through tx become visible, and
	// subscribers are notified, only if fn returns nil. fn must use tx, not
	// the Store, and may be run more than once.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close() error
}

// encode turns a Set payload into raw JSON, passing raw messages through.
func encode(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(v)
	}
}
