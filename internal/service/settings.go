package service

import (
	"strings"
	"time"
)

// Значения по умолчанию.
const (
	DefaultPasscodeAttempts = 10
	DefaultFileTokenTTL     = 60 * time.Minute

	// maxManifestURLLength — рекомендуемый предел длины URL манифеста (QR-коды).
	maxManifestURLLength = 128
)

// Settings — параметры протокола, общие для сервисов.
type Settings struct {
	// PublicURL — внешний адрес сервера, без завершающего "/".
	PublicURL  string
	ViewerPath string
	BlobPrefix string

	DefaultPasscodeAttempts int
	FileTokenTTL            time.Duration

	// Now — источник времени; nil означает time.Now.
	Now func() time.Time
}

func (s Settings) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Settings) withDefaults() Settings {
	s.PublicURL = strings.TrimRight(s.PublicURL, "/")
	if s.DefaultPasscodeAttempts <= 0 {
		s.DefaultPasscodeAttempts = DefaultPasscodeAttempts
	}
	if s.FileTokenTTL <= 0 {
		s.FileTokenTTL = DefaultFileTokenTTL
	}
	return s
}

// ManifestURL — адрес манифеста ссылки.
func (s Settings) ManifestURL(manifestID string) string {
	return s.PublicURL + "/api/shl/manifest/" + manifestID
}

// FileURL — адрес одноразового скачивания по токену.
func (s Settings) FileURL(tokenID string) string {
	return s.PublicURL + "/api/shl/file/" + tokenID
}

// ManagementURL — адрес ссылки в API управления.
func (s Settings) ManagementURL(id string) string {
	return s.PublicURL + "/api/shl/" + id
}
