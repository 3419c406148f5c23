package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/chatline/internal/common"
)

// readFunc reads the committed body of one document. ok is false when the
// document does not exist.
type readFunc func(ctx context.Context, key docKey) (data json.RawMessage, ok bool, err error)

// staged is a write set layered over committed state. The key-value backends
// run every write, transactional or not, through one.
type staged struct {
	read   readFunc
	writes map[docKey]json.RawMessage
	order  []docKey
}

func newStaged(read readFunc) *staged {
	return &staged{read: read, writes: make(map[docKey]json.RawMessage)}
}

func (s *staged) Get(ctx context.Context, collection, id string) (Document, error) {
	key := docKey{collection, id}
	data, ok, err := s.lookup(ctx, key)
	if err != nil {
		return Document{}, err
	}
	if !ok {
		return Document{}, fmt.Errorf("%s: %w", key, common.ErrNotFound)
	}
	return Document{Collection: collection, ID: id, Data: data}, nil
}

func (s *staged) Set(_ context.Context, collection, id string, data any) error {
	raw, err := encode(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("encode %s/%s: invalid json", collection, id)
	}
	s.put(docKey{collection, id}, raw)
	return nil
}

func (s *staged) Update(ctx context.Context, collection, id string, mutations ...Mutation) error {
	key := docKey{collection, id}
	data, ok, err := s.lookup(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", key, common.ErrNotFound)
	}
	next, err := Apply(data, mutations...)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	s.put(key, next)
	return nil
}

func (s *staged) lookup(ctx context.Context, key docKey) (json.RawMessage, bool, error) {
	if data, ok := s.writes[key]; ok {
		return data, true, nil
	}
	return s.read(ctx, key)
}

func (s *staged) put(key docKey, data json.RawMessage) {
	if _, ok := s.writes[key]; !ok {
		s.order = append(s.order, key)
	}
	s.writes[key] = data
}
