package mongostore

import (
	"SHLink/internal/model"
	"SHLink/internal/repo"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type accessLogRepo struct {
	coll *mongo.Collection
}

func NewAccessLogRepository(db *mongo.Database) repo.AccessLogRepository {
	return &accessLogRepo{coll: db.Collection(collAccessLogs)}
}

func (r *accessLogRepo) Create(ctx context.Context, e *model.AccessLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, e)
	return err
}

func (r *accessLogRepo) ListByLink(ctx context.Context, shlID string, offset, limit int) ([]model.AccessLog, error) {
	opts := pageOptions(offset, limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"shl_id": shlID}, opts)
	if err != nil {
		return nil, err
	}
	var out []model.AccessLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *accessLogRepo) CountSuccessful(ctx context.Context, shlID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"shl_id": shlID, "success": true})
}
