package service

import (
	"SHLink/internal/model"
	"SHLink/internal/repo"
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientInfo — сведения о вызывающем клиенте для журнала доступа.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// AccessLogService ведёт журнал доступа к ссылкам.
type AccessLogService struct {
	repo     repo.AccessLogRepository
	settings Settings
	logger   *zap.SugaredLogger
}

func NewAccessLogService(r repo.AccessLogRepository, settings Settings, logger *zap.SugaredLogger) *AccessLogService {
	return &AccessLogService{repo: r, settings: settings.withDefaults(), logger: logger}
}

// Record добавляет запись в журнал. Ошибка записи не прерывает основную операцию, только логируется.
func (s *AccessLogService) Record(ctx context.Context, shlID string, action model.AccessAction,
	recipient string, client ClientInfo, success bool, reason string) {
	entry := &model.AccessLog{
		ID:            uuid.NewString(),
		ShlID:         shlID,
		Action:        action,
		Recipient:     recipient,
		IPAddress:     client.IP,
		UserAgent:     client.UserAgent,
		Success:       success,
		FailureReason: reason,
		CreatedAt:     s.settings.now(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Errorw("failed to write access log",
			"shl_id", shlID, "action", action, "success", success, "error", err)
		return
	}
	s.logger.Debugw("access logged", "shl_id", shlID, "action", action, "success", success)
}

// List возвращает страницу журнала (page с нуля), новые записи первыми.
func (s *AccessLogService) List(ctx context.Context, shlID string, page, size int) ([]model.AccessLog, error) {
	page, size = NormalizePage(page, size)
	return s.repo.ListByLink(ctx, shlID, page*size, size)
}

// CountSuccessful — число успешных обращений к ссылке.
func (s *AccessLogService) CountSuccessful(ctx context.Context, shlID string) (int64, error) {
	return s.repo.CountSuccessful(ctx, shlID)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NormalizePage приводит page/size к допустимым значениям: страницы с нуля, размер 1..100.
func NormalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
