package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrijs2005/chatline/internal/logging"
)

// Listener receives PostgreSQL notifications. Listen blocks until ctx is
// done. An empty payload asks for a full resync, sent after every
// (re)connect since notifications may have been missed in between.
type Listener interface {
	Listen(ctx context.Context, channel string, fn func(payload string)) error
}

// PgxListener holds a dedicated pgx connection in LISTEN mode and reconnects
// with capped backoff when it drops.
type PgxListener struct {
	dsn        string
	logger     logging.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewPgxListener(dsn string, logger logging.Logger) *PgxListener {
	return &PgxListener{
		dsn:        dsn,
		logger:     logger,
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
}

func (l *PgxListener) Listen(ctx context.Context, channel string, fn func(payload string)) error {
	backoff := l.minBackoff
	for {
		err := l.listenOnce(ctx, channel, fn, func() { backoff = l.minBackoff })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn(ctx, "listen connection lost", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, l.maxBackoff)
	}
}

func (l *PgxListener) listenOnce(ctx context.Context, channel string, fn func(string), connected func()) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	connected()
	fn("")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		fn(n.Payload)
	}
}
