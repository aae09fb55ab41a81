package repo

import (
	"SHLink/internal/model"
	"context"

	"gorm.io/gorm"
)

// AccessLogRepository — журнал доступа: только вставка и чтение.
type AccessLogRepository interface {
	Create(ctx context.Context, e *model.AccessLog) error
	// ListByLink — записи ссылки, новые первыми.
	ListByLink(ctx context.Context, shlID string, offset, limit int) ([]model.AccessLog, error)
	CountSuccessful(ctx context.Context, shlID string) (int64, error)
}

type accessLogRepo struct {
	db *gorm.DB
}

func NewAccessLogRepository(db *gorm.DB) AccessLogRepository {
	return &accessLogRepo{db: db}
}

func (r *accessLogRepo) Create(ctx context.Context, e *model.AccessLog) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *accessLogRepo) ListByLink(ctx context.Context, shlID string, offset, limit int) ([]model.AccessLog, error) {
	q := r.db.WithContext(ctx).Where("shl_id = ?", shlID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []model.AccessLog
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *accessLogRepo) CountSuccessful(ctx context.Context, shlID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AccessLog{}).
		Where("shl_id = ? AND success = ?", shlID, true).
		Count(&n).Error
	return n, err
}
