package repo

import (
	"SHLink/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlobRepository минимальный контракт доступа к Blob.
type BlobRepository interface {
	// CreateIfAbsent пытается создать запись. Если существует — ничего не делает.
	// Возвращает created=true если запись была создана в этой операции.
	CreateIfAbsent(ctx context.Context, key, contentType string, data []byte) (created bool, err error)
	Get(ctx context.Context, key string) (*model.Blob, error)
	Delete(ctx context.Context, key string) error
}

type blobRepo struct {
	db *gorm.DB
}

// NewBlobRepository создаёт реализацию репозитория для Blob.
func NewBlobRepository(db *gorm.DB) BlobRepository {
	return &blobRepo{db: db}
}

// CreateIfAbsent создает Blob в БД, если его ещё нет.
func (r *blobRepo) CreateIfAbsent(ctx context.Context, key, contentType string, data []byte) (bool, error) {
	b := &model.Blob{Key: key, ContentType: contentType, Data: data}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(b)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *blobRepo) Get(ctx context.Context, key string) (*model.Blob, error) {
	var b model.Blob
	if err := r.db.WithContext(ctx).Where(&model.Blob{Key: key}).Take(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *blobRepo) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where(&model.Blob{Key: key}).Delete(&model.Blob{}).Error
}
