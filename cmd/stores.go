package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ecoforum/pkg/config"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/gateway/memstore"
	"ecoforum/pkg/gateway/mongostore"
	"ecoforum/pkg/gateway/sqlstore"
	"ecoforum/pkg/tables"
)

const connectTimeout = 5 * time.Second

// backends holds the open connections; close releases them in reverse order.
type backends struct {
	users *sql.DB
	forum gateway.Gateway

	closers []func(context.Context) error
}

func (b *backends) close(ctx context.Context) error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openBackends connects to Postgres for accounts and to the configured forum store.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	db, err := sqlstore.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func(context.Context) error { return db.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = b.close(ctx)
		return nil, fmt.Errorf("main: unable to reach PostgreSQL: %w", err)
	}
	sqlStore := sqlstore.New(db)
	if err := sqlStore.Migrate(ctx); err != nil {
		_ = b.close(ctx)
		return nil, err
	}
	b.users = db

	switch cfg.Store {
	case config.StoreMemory:
		b.forum = memstore.New(tables.Unique)
	case config.StorePostgres:
		b.forum = sqlStore
	case config.StoreMongo:
		store, disconnect, err := openMongo(ctx, cfg)
		if err != nil {
			_ = b.close(ctx)
			return nil, err
		}
		b.closers = append(b.closers, disconnect)
		b.forum = store
	default:
		_ = b.close(ctx)
		return nil, fmt.Errorf("main: unknown store %q", cfg.Store)
	}
	return b, nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*mongostore.Store, func(context.Context) error, error) {
	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("main: can't connect to MongoDB: %w", err)
	}
	if err := client.Ping(connCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("main: unable to reach MongoDB: %w", err)
	}

	store := mongostore.NewFromDatabase(client.Database(cfg.MongoDB))
	if err := store.EnsureIndexes(connCtx, tables.Unique); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return store, client.Disconnect, nil
}
