package client

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/chatline/internal/client/migrations"

	_ "modernc.org/sqlite"
)

// LocalDBName is the SQLite file kept in the data directory.
const LocalDBName = "chatline.db"

// RunMigrations applies the embedded schema to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrations.Run(ctx, db)
}

// InitDatabase opens (creating if needed) the SQLite file at dsn and
// migrates it.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer keeps modernc's sqlite free of "database is locked"
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
