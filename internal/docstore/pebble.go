package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble/v2"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/logging"
)

const pebblePrefix = "doc/"

// Pebble is a Store on an embedded Pebble database. Keys are
// "doc/<collection>/<id>", so Query walks a collection in id order. Writers
// are serialized in-process; a batch commit makes a transaction visible at
// once.
type Pebble struct {
	writeMu   sync.Mutex
	db        *pebble.DB
	hub       *hub
	logger    logging.Logger
	closeOnce sync.Once
}

var _ Store = (*Pebble)(nil)

func OpenPebble(dir string, logger logging.Logger) (*Pebble, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create pebble dir: %w", err)
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	p := &Pebble{db: db, logger: logger}
	p.hub = newHub(p.snapshot, logger)
	return p, nil
}

func pebbleKey(key docKey) []byte {
	return []byte(pebblePrefix + key.collection + "/" + key.id)
}

func collectionBounds(collection string) (lower, upper []byte) {
	lower = []byte(pebblePrefix + collection + "/")
	upper = append(bytes.Clone(lower[:len(lower)-1]), '/'+1)
	return lower, upper
}

func (p *Pebble) read(_ context.Context, key docKey) (json.RawMessage, bool, error) {
	val, closer, err := p.db.Get(pebbleKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()
	return bytes.Clone(val), true, nil
}

func (p *Pebble) snapshot(ctx context.Context, key docKey) (Snapshot, error) {
	data, ok, err := p.read(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Document: Document{Collection: key.collection, ID: key.id, Data: data},
		Exists:   ok,
	}, nil
}

func (p *Pebble) Get(ctx context.Context, collection, id string) (Document, error) {
	return newStaged(p.read).Get(ctx, collection, id)
}

func (p *Pebble) Set(ctx context.Context, collection, id string, data any) error {
	return p.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Set(ctx, collection, id, data)
	})
}

func (p *Pebble) Update(ctx context.Context, collection, id string, mutations ...Mutation) error {
	return p.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Update(ctx, collection, id, mutations...)
	})
}

func (p *Pebble) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	lower, upper := collectionBounds(collection)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer func() { _ = it.Close() }()

	var out []Document
	for it.First(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := strings.TrimPrefix(string(it.Key()), string(lower))
		// nested ids would share the prefix
		if strings.Contains(id, "/") {
			continue
		}
		data := bytes.Clone(it.Value())
		ok, err := fieldEquals(data, field, value)
		if err != nil {
			p.logger.Warn(ctx, "skipping undecodable document", "collection", collection, "id", id, "error", err)
			continue
		}
		if ok {
			out = append(out, Document{Collection: collection, ID: id, Data: data})
		}
	}
	return out, it.Error()
}

func (p *Pebble) Subscribe(_ context.Context, collection, id string, fn func(Snapshot)) (Subscription, error) {
	return p.hub.subscribe(docKey{collection, id}, fn)
}

func (p *Pebble) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	tx := newStaged(p.read)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(tx.order) == 0 {
		return nil
	}

	b := p.db.NewBatch()
	defer b.Close()
	for _, key := range tx.order {
		if err := b.Set(pebbleKey(key), tx.writes[key], nil); err != nil {
			return fmt.Errorf("pebble batch set %s: %w", key, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}

	p.hub.notify(tx.order...)
	return nil
}

func (p *Pebble) Close() error {
	err := common.ErrClosed
	p.closeOnce.Do(func() {
		p.hub.close()
		p.writeMu.Lock()
		defer p.writeMu.Unlock()
		err = p.db.Close()
	})
	return err
}
