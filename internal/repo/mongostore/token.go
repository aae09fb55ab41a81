package mongostore

import (
	"SHLink/internal/model"
	"SHLink/internal/repo"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type tokenRepo struct {
	coll *mongo.Collection
}

func NewTokenRepository(db *mongo.Database) repo.TokenRepository {
	return &tokenRepo{coll: db.Collection(collTokens)}
}

func (r *tokenRepo) Create(ctx context.Context, t *model.DownloadToken) error {
	_, err := r.coll.InsertOne(ctx, t)
	return err
}

func (r *tokenRepo) Consume(ctx context.Context, id string) (*model.DownloadToken, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t model.DownloadToken
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "consumed": false},
		bson.M{"$set": bson.M{"consumed": true}},
		opts,
	).Decode(&t)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

// DeleteExpired дублирует работу TTL-индекса; нужен для принудительной очистки.
func (r *tokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
