// Package mongostore реализует репозитории поверх MongoDB.
// Атомарность изменений обеспечивается FindOneAndUpdate / UpdateOne с условием в фильтре.
package mongostore

import (
	"SHLink/internal/repo"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Имена коллекций.
const (
	collLinks      = "links"
	collContents   = "contents"
	collTokens     = "download_tokens"
	collAccessLogs = "access_logs"
	collBlobs      = "blobs"
)

// Connect подключается к MongoDB, проверяет соединение и создаёт индексы.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	if err := EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, db, nil
}

// EnsureIndexes создаёт индексы; повторный вызов безопасен.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		collLinks: {
			{Keys: bson.D{{Key: "manifest_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		collContents: {
			{Keys: bson.D{{Key: "shl_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		collTokens: {
			// истёкшие токены удаляет сама MongoDB
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		collAccessLogs: {
			{Keys: bson.D{{Key: "shl_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// NewRepositories собирает Mongo-реализации всех репозиториев.
func NewRepositories(db *mongo.Database) *repo.Repositories {
	return &repo.Repositories{
		Links:       NewLinkRepository(db),
		Contents:    NewContentRepository(db),
		Tokens:      NewTokenRepository(db),
		AccessLogs:  NewAccessLogRepository(db),
		Blobs:       NewBlobRepository(db),
		SelfPurging: true,
	}
}

// mapErr приводит ошибки драйвера к ошибкам пакета repo.
func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repo.ErrNotFound
	}
	return err
}

func pageOptions(offset, limit int) *options.FindOptions {
	opts := options.Find()
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
