package model

import "time"

// MaxLabelLength — максимальная длина подписи ссылки.
const MaxLabelLength = 80

// Link — серверная модель SMART Health Link.
// Физически не удаляется: деактивация выставляет Active=false.
type Link struct {
	ID         string `gorm:"primaryKey;type:uuid" bson:"_id" json:"id"`
	ManifestID string `gorm:"not null;uniqueIndex;size:64" bson:"manifest_id" json:"-"`

	Label string `gorm:"size:80" bson:"label,omitempty" json:"label,omitempty"`

	// EncryptionKey отдаётся клиенту ровно один раз, при создании ссылки.
	EncryptionKey string `gorm:"not null" bson:"encryption_key" json:"-"`

	Flags Flags `gorm:"type:varchar(3);not null;default:''" bson:"flags" json:"flags"`

	PasscodeHash              *string `bson:"passcode_hash,omitempty" json:"-"`
	PasscodeAttemptsRemaining *int    `bson:"passcode_attempts_remaining,omitempty" json:"passcode_attempts_remaining,omitempty"`

	ExpiresAt *time.Time `gorm:"index" bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	Active    bool       `gorm:"not null;index" bson:"active" json:"active"`
	SingleUse bool       `gorm:"not null" bson:"single_use" json:"single_use"`

	CreatedAt time.Time `gorm:"autoCreateTime" bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" bson:"updated_at" json:"updated_at"`
}

// IsExpired сообщает, истёк ли срок действия ссылки к моменту now.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// RemainingAttempts возвращает оставшиеся попытки ввода пасскода (0, если пасскода нет).
func (l *Link) RemainingAttempts() int {
	if l.PasscodeAttemptsRemaining == nil {
		return 0
	}
	return *l.PasscodeAttemptsRemaining
}
