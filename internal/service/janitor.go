package service

import (
	"SHLink/internal/repo"
	"context"
	"time"

	"go.uber.org/zap"
)

// TokenJanitor периодически удаляет истёкшие токены скачивания
// для хранилищ без собственного TTL-механизма.
type TokenJanitor struct {
	tokens   repo.TokenRepository
	interval time.Duration
	settings Settings
	logger   *zap.SugaredLogger
}

func NewTokenJanitor(tokens repo.TokenRepository, interval time.Duration, settings Settings, logger *zap.SugaredLogger) *TokenJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &TokenJanitor{tokens: tokens, interval: interval, settings: settings.withDefaults(), logger: logger}
}

// PurgeOnce удаляет токены, истёкшие к текущему моменту.
func (j *TokenJanitor) PurgeOnce(ctx context.Context) (int64, error) {
	n, err := j.tokens.DeleteExpired(ctx, j.settings.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		tokensPurgedTotal.Add(float64(n))
		j.logger.Infow("expired download tokens purged", "count", n)
	}
	return n, nil
}

// Run блокируется до отмены ctx.
func (j *TokenJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.PurgeOnce(ctx); err != nil && ctx.Err() == nil {
				j.logger.Errorw("token purge failed", "error", err)
			}
		}
	}
}
