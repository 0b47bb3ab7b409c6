package repomanager

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultMongoDatabase = "auth"

// databaseName takes the database from the DSN path, e.g.
// mongodb://host:27017/auth.
func databaseName(u *url.URL) string {
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}

func openMongo(ctx context.Context, dsn, database string, logger logging.Logger) (*Manager, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("open mongo: %w", err)
	}

	ping := func(ctx context.Context) error { return client.Ping(ctx, nil) }

	if err := waitFor(ctx, logger, BackendMongo, ping); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo unreachable: %w", err)
	}

	repo := accounts.NewMongoRepository(client.Database(database))
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}

	logger.Info(ctx, "mongo account store ready", "database", database)

	return &Manager{
		backend:  BackendMongo,
		accounts: repo,
		ping:     ping,
		close:    client.Disconnect,
	}, nil
}
