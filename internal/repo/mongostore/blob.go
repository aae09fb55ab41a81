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

type blobRepo struct {
	coll *mongo.Collection
}

func NewBlobRepository(db *mongo.Database) repo.BlobRepository {
	return &blobRepo{coll: db.Collection(collBlobs)}
}

// CreateIfAbsent — upsert с $setOnInsert: существующий документ не трогается.
func (r *blobRepo) CreateIfAbsent(ctx context.Context, key, contentType string, data []byte) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$setOnInsert": bson.M{
			"content_type": contentType,
			"data":         data,
			"created_at":   time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *blobRepo) Get(ctx context.Context, key string) (*model.Blob, error) {
	var b model.Blob
	if err := r.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&b); err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (r *blobRepo) Delete(ctx context.Context, key string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
