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

type linkRepo struct {
	coll *mongo.Collection
}

func NewLinkRepository(db *mongo.Database) repo.LinkRepository {
	return &linkRepo{coll: db.Collection(collLinks)}
}

func (r *linkRepo) Create(ctx context.Context, link *model.Link) error {
	now := time.Now().UTC()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, link)
	return err
}

func (r *linkRepo) findOne(ctx context.Context, filter bson.M) (*model.Link, error) {
	var l model.Link
	if err := r.coll.FindOne(ctx, filter).Decode(&l); err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (r *linkRepo) GetByID(ctx context.Context, id string) (*model.Link, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *linkRepo) GetByManifestID(ctx context.Context, manifestID string) (*model.Link, error) {
	return r.findOne(ctx, bson.M{"manifest_id": manifestID})
}

func activeFilter(active *bool) bson.M {
	f := bson.M{}
	if active != nil {
		f["active"] = *active
	}
	return f
}

func (r *linkRepo) List(ctx context.Context, f repo.LinkFilter) ([]model.Link, error) {
	opts := pageOptions(f.Offset, f.Limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.coll.Find(ctx, activeFilter(f.Active), opts)
	if err != nil {
		return nil, err
	}
	var out []model.Link
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *linkRepo) Count(ctx context.Context, active *bool) (int64, error) {
	return r.coll.CountDocuments(ctx, activeFilter(active))
}

func (r *linkRepo) DecrementPasscodeAttempts(ctx context.Context, id string) (*model.Link, error) {
	filter := bson.M{"_id": id, "passcode_attempts_remaining": bson.M{"$gt": 0}}
	update := bson.M{
		"$inc": bson.M{"passcode_attempts_remaining": -1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var l model.Link
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&l); err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (r *linkRepo) RestorePasscodeAttempt(ctx context.Context, id string) error {
	filter := bson.M{"_id": id, "passcode_attempts_remaining": bson.M{"$exists": true}}
	update := bson.M{
		"$inc": bson.M{"passcode_attempts_remaining": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *linkRepo) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}
