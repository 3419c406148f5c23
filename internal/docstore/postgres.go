package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/dbx"
	"github.com/dmitrijs2005/chatline/internal/docstore/migrations"
	"github.com/dmitrijs2005/chatline/internal/logging"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying "<collection>/<id>"
// payloads for every committed write.
const NotifyChannel = "docstore"

var (
	gooseUpContext = goose.UpContext
	withTxRetry    = dbx.WithTxRetry
)

// txOptions makes read-modify-write transactions safe across processes;
// conflicting ones fail with 40001 and are retried.
var txOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}

// Postgres is a Store on a single PostgreSQL table of JSONB documents.
// Commits are announced with pg_notify, so subscribers in every process
// sharing the database see each other's writes.
type Postgres struct {
	db       *sql.DB
	hub      *hub
	logger   logging.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closeErr error
	once     sync.Once
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects with the pgx driver and starts a LISTEN loop on its
// own connection.
func OpenPostgres(ctx context.Context, dsn string, logger logging.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return NewPostgres(db, NewPgxListener(dsn, logger), logger), nil
}

// NewPostgres wraps an open database. listener may be nil, in which case
// only writes made through this Postgres reach its subscribers.
func NewPostgres(db *sql.DB, listener Listener, logger logging.Logger) *Postgres {
	p := &Postgres{db: db, logger: logger}
	p.hub = newHub(p.snapshot, logger)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	if listener != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			err := listener.Listen(ctx, NotifyChannel, p.onNotification)
			if err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error(ctx, "docstore listener stopped", "error", err)
			}
		}()
	}
	return p
}

// Migrate brings the documents schema up to date.
func (p *Postgres) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseUpContext(ctx, p.db, ".")
}

func (p *Postgres) onNotification(payload string) {
	if payload == "" {
		p.hub.notifyAll()
		return
	}
	collection, id, ok := strings.Cut(payload, "/")
	if !ok {
		p.logger.Warn(context.Background(), "malformed docstore notification", "payload", payload)
		return
	}
	p.hub.notify(docKey{collection, id})
}

func (p *Postgres) snapshot(ctx context.Context, key docKey) (Snapshot, error) {
	doc, err := getDocument(ctx, p.db, key.collection, key.id)
	if errors.Is(err, common.ErrNotFound) {
		return Snapshot{Document: Document{Collection: key.collection, ID: key.id}}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Document: doc, Exists: true}, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	return getDocument(ctx, p.db, collection, id)
}

func (p *Postgres) Set(ctx context.Context, collection, id string, data any) error {
	return p.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Set(ctx, collection, id, data)
	})
}

func (p *Postgres) Update(ctx context.Context, collection, id string, mutations ...Mutation) error {
	return p.RunTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Update(ctx, collection, id, mutations...)
	})
}

func (p *Postgres) Query(ctx context.Context, collection, field string, value any) ([]Document, error) {
	want, err := encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode query value: %w", err)
	}

	query :=
		`SELECT id, data FROM documents
		 WHERE collection = $1 AND data -> $2 = $3::jsonb
		 ORDER BY seq
		 `

	rows, err := p.db.QueryContext(ctx, query, collection, field, string(want))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc := Document{Collection: collection}
		var data []byte
		if err := rows.Scan(&doc.ID, &data); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		doc.Data = data
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (p *Postgres) Subscribe(_ context.Context, collection, id string, fn func(Snapshot)) (Subscription, error) {
	return p.hub.subscribe(docKey{collection, id}, fn)
}

// RunTx runs fn in a serializable transaction, retried on serialization
// failures, so fn may run more than once.
func (p *Postgres) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var touched []docKey
	err := withTxRetry(ctx, p.db, txOptions, func(ctx context.Context, db dbx.DBTX) error {
		tx := &pgTx{db: db}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		touched = tx.touched
		return nil
	})
	if err != nil {
		return err
	}
	p.hub.notify(touched...)
	return nil
}

func (p *Postgres) Close() error {
	err := common.ErrClosed
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.hub.close()
		err = p.db.Close()
	})
	return err
}

type pgTx struct {
	db      dbx.DBTX
	touched []docKey
}

func (t *pgTx) Get(ctx context.Context, collection, id string) (Document, error) {
	return getDocument(ctx, t.db, collection, id)
}

func (t *pgTx) Set(ctx context.Context, collection, id string, data any) error {
	raw, err := encode(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	query :=
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE
		 SET data = EXCLUDED.data, updated_at = now()
		 `

	if _, err := t.db.ExecContext(ctx, query, collection, id, string(raw)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return t.announce(ctx, docKey{collection, id})
}

func (t *pgTx) Update(ctx context.Context, collection, id string, mutations ...Mutation) error {
	query :=
		`SELECT data FROM documents
		 WHERE collection = $1 AND id = $2
		 FOR UPDATE
		 `

	var data []byte
	err := t.db.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	next, err := Apply(data, mutations...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	query =
		`UPDATE documents SET data = $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2
		 `

	if _, err := t.db.ExecContext(ctx, query, collection, id, string(next)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return t.announce(ctx, docKey{collection, id})
}

// announce queues a notification; PostgreSQL delivers it on commit only.
func (t *pgTx) announce(ctx context.Context, key docKey) error {
	if _, err := t.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, key.String()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	t.touched = append(t.touched, key)
	return nil
}

func getDocument(ctx context.Context, db dbx.DBTX, collection, id string) (Document, error) {
	query :=
		`SELECT data FROM documents
		 WHERE collection = $1 AND id = $2
		 `

	var data []byte
	err := db.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
		}
		return Document{}, fmt.Errorf("db error: %w", err)
	}
	return Document{Collection: collection, ID: id, Data: json.RawMessage(data)}, nil
}
