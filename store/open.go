package store

import (
	"context"
	"log"
)

// Store is a repository set the process owns and must close.
type Store interface {
	DBStorer
	Init(ctx context.Context) error
	Close() error
}

var _ Store = (*MemoryStore)(nil)

// Open connects to Postgres and creates the schema.
// Without a DSN it falls back to an in-process store.
func Open(ctx context.Context, dsn string, embeddingDim int) (Store, error) {
	if dsn == "" {
		log.Println("PG_HOST is not set, using in-memory store")
		return NewMemoryStore(), nil
	}

	pg, err := NewPostgresStore(ctx, dsn, embeddingDim)
	if err != nil {
		return nil, err
	}
	if err := pg.Init(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
