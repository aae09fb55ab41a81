package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы разрешения манифеста для метрик.
const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeInactive    = "inactive"
	outcomeExpired     = "expired"
	outcomePasscode    = "passcode"
	outcomeNotEnabled  = "not_enabled"
	outcomeTokenReused = "token_not_found"
	outcomeTokenExpiry = "token_expired"
	outcomeError       = "error"
)

var (
	linksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shl_links_created_total",
		Help: "Количество созданных ссылок.",
	})
	contentStoredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shl_content_stored_bytes_total",
		Help: "Суммарный размер сохранённых зашифрованных конвертов в байтах.",
	})
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shl_resolutions_total",
		Help: "Количество обращений к ссылкам по типу и исходу.",
	}, []string{"kind", "outcome"})
	passcodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shl_passcode_failures_total",
		Help: "Количество неудачных проверок пасскода.",
	})
	linksDeactivatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shl_links_deactivated_total",
		Help: "Количество деактивированных ссылок по причине.",
	}, []string{"reason"})
	tokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shl_download_tokens_issued_total",
		Help: "Количество выданных токенов скачивания.",
	})
	tokensPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shl_download_tokens_purged_total",
		Help: "Количество удалённых истёкших токенов.",
	})
)

// Виды обращений.
const (
	kindManifest = "manifest"
	kindDirect   = "direct"
	kindFile     = "file"
)
