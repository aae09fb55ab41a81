package repo

import (
	"SHLink/internal/model"
	"context"

	"gorm.io/gorm"
)

// ContentRepository — доступ к зашифрованному содержимому ссылок.
type ContentRepository interface {
	Create(ctx context.Context, c *model.Content) error
	GetByID(ctx context.Context, id string) (*model.Content, error)
	// ListByLink возвращает содержимое ссылки в порядке добавления.
	ListByLink(ctx context.Context, shlID string) ([]model.Content, error)
	CountByLink(ctx context.Context, shlID string) (int64, error)
}

type contentRepo struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepo{db: db}
}

func (r *contentRepo) Create(ctx context.Context, c *model.Content) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *contentRepo) GetByID(ctx context.Context, id string) (*model.Content, error) {
	var c model.Content
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *contentRepo) ListByLink(ctx context.Context, shlID string) ([]model.Content, error) {
	var out []model.Content
	err := r.db.WithContext(ctx).
		Where("shl_id = ?", shlID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentRepo) CountByLink(ctx context.Context, shlID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Content{}).Where("shl_id = ?", shlID).Count(&n).Error
	return n, err
}
