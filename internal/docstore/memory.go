package docstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/logging"
)

// Memory is a process-local Store. Query returns documents in insertion
// order.
type Memory struct {
	writeMu sync.Mutex

	mu     sync.RWMutex
	docs   map[docKey]json.RawMessage
	ids    map[string][]string
	closed bool

	hub *hub
}

var _ Store = (*Memory)(nil)

func NewMemory(logger logging.Logger) *Memory {
	m := &Memory{
		docs: make(map[docKey]json.RawMessage),
		ids:  make(map[string][]string),
	}
	m.hub = newHub(m.snapshot, logger)
	return m
}

func (m *Memory) read(_ context.Context, key docKey) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, common.ErrClosed
	}
	data, ok := m.docs[key]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), data...), true, nil
}

func (m *Memory) snapshot(ctx context.Context, key docKey) (Snapshot, error) {
	data, ok, err := m.read(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Document: Document{Collection: key.collection, ID: key.id, Data: data},
		Exists:   ok,
	}, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	return newStaged(m.read).Get(ctx, collection, id)
}

func (m *Memory) Set(ctx context.Context, collection, id string, data any) error {
	return m.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Set(ctx, collection, id, data)
	})
}

func (m *Memory) Update(ctx context.Context, collection, id string, mutations ...Mutation) error {
	return m.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Update(ctx, collection, id, mutations...)
	})
}

func (m *Memory) Query(_ context.Context, collection, field string, value any) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, common.ErrClosed
	}

	var out []Document
	for _, id := range m.ids[collection] {
		data := m.docs[docKey{collection, id}]
		ok, err := fieldEquals(data, field, value)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, Document{
				Collection: collection,
				ID:         id,
				Data:       append(json.RawMessage(nil), data...),
			})
		}
	}
	return out, nil
}

func (m *Memory) Subscribe(_ context.Context, collection, id string, fn func(Snapshot)) (Subscription, error) {
	return m.hub.subscribe(docKey{collection, id}, fn)
}

func (m *Memory) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tx := newStaged(m.read)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return common.ErrClosed
	}
	for _, key := range tx.order {
		if _, ok := m.docs[key]; !ok {
			m.ids[key.collection] = append(m.ids[key.collection], key.id)
		}
		m.docs[key] = tx.writes[key]
	}
	m.mu.Unlock()

	m.hub.notify(tx.order...)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.close()
	return nil
}
