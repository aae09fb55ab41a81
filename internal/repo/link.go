package repo

import (
	"SHLink/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

// LinkFilter — параметры выборки ссылок для списка.
type LinkFilter struct {
	Active *bool
	Offset int
	Limit  int
}

// LinkRepository — доступ к Link. Все изменения состояния выполняются
// одним условным UPDATE, без чтения-изменения-записи.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id string) (*model.Link, error)
	GetByManifestID(ctx context.Context, manifestID string) (*model.Link, error)
	List(ctx context.Context, f LinkFilter) ([]model.Link, error)
	Count(ctx context.Context, active *bool) (int64, error)

	// DecrementPasscodeAttempts уменьшает счётчик попыток, только если он > 0.
	// Возвращает ссылку после изменения или ErrNotFound, если условие не выполнено.
	DecrementPasscodeAttempts(ctx context.Context, id string) (*model.Link, error)
	// RestorePasscodeAttempt возвращает попытку, списанную при верном пасскоде.
	RestorePasscodeAttempt(ctx context.Context, id string) error
	// Deactivate выставляет active=false, если ссылка ещё активна.
	// deactivated=true означает, что переход выполнил именно этот вызов.
	Deactivate(ctx context.Context, id string) (deactivated bool, err error)
}

type linkRepo struct {
	db *gorm.DB
}

// NewLinkRepository создаёт gorm-реализацию LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepo{db: db}
}

func (r *linkRepo) Create(ctx context.Context, link *model.Link) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *linkRepo) GetByID(ctx context.Context, id string) (*model.Link, error) {
	var l model.Link
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *linkRepo) GetByManifestID(ctx context.Context, manifestID string) (*model.Link, error) {
	var l model.Link
	if err := r.db.WithContext(ctx).Where("manifest_id = ?", manifestID).Take(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *linkRepo) List(ctx context.Context, f LinkFilter) ([]model.Link, error) {
	q := r.db.WithContext(ctx).Model(&model.Link{})
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []model.Link
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *linkRepo) Count(ctx context.Context, active *bool) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Link{})
	if active != nil {
		q = q.Where("active = ?", *active)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (r *linkRepo) DecrementPasscodeAttempts(ctx context.Context, id string) (*model.Link, error) {
	var out model.Link
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Link{}).
			Where("id = ? AND passcode_attempts_remaining > 0", id).
			Updates(map[string]any{
				"passcode_attempts_remaining": gorm.Expr("passcode_attempts_remaining - 1"),
				"updated_at":                  time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		// строка заблокирована нашей транзакцией — читаем собственное изменение
		return tx.Where("id = ?", id).Take(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *linkRepo) RestorePasscodeAttempt(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&model.Link{}).
		Where("id = ? AND passcode_attempts_remaining IS NOT NULL", id).
		Updates(map[string]any{
			"passcode_attempts_remaining": gorm.Expr("passcode_attempts_remaining + 1"),
			"updated_at":                  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *linkRepo) Deactivate(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Link{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{
			"active":     false,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
