package repo

import (
	"SHLink/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

// TokenRepository — одноразовые токены скачивания.
type TokenRepository interface {
	Create(ctx context.Context, t *model.DownloadToken) error
	// Consume атомарно помечает токен использованным, только если он ещё не использован.
	// Возвращает токен или ErrNotFound (не существует или уже использован).
	Consume(ctx context.Context, id string) (*model.DownloadToken, error)
	// DeleteExpired физически удаляет токены с истёкшим сроком.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type tokenRepo struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepo{db: db}
}

func (r *tokenRepo) Create(ctx context.Context, t *model.DownloadToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *tokenRepo) Consume(ctx context.Context, id string) (*model.DownloadToken, error) {
	var out model.DownloadToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.DownloadToken{}).
			Where("id = ? AND consumed = ?", id, false).
			Update("consumed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", id).Take(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&model.DownloadToken{})
	return res.RowsAffected, res.Error
}
