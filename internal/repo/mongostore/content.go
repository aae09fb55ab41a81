package mongostore

import (
	"SHLink/internal/model"
	"SHLink/internal/repo"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type contentRepo struct {
	coll *mongo.Collection
}

func NewContentRepository(db *mongo.Database) repo.ContentRepository {
	return &contentRepo{coll: db.Collection(collContents)}
}

func (r *contentRepo) Create(ctx context.Context, c *model.Content) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, c)
	return err
}

func (r *contentRepo) GetByID(ctx context.Context, id string) (*model.Content, error) {
	var c model.Content
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *contentRepo) ListByLink(ctx context.Context, shlID string) ([]model.Content, error) {
	opts := pageOptions(0, 0).SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"shl_id": shlID}, opts)
	if err != nil {
		return nil, err
	}
	var out []model.Content
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentRepo) CountByLink(ctx context.Context, shlID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"shl_id": shlID})
}
