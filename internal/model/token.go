package model

import "time"

// DownloadToken — одноразовое право на скачивание Content.
type DownloadToken struct {
	ID        string    `gorm:"primaryKey;size:64" bson:"_id"`
	ContentID string    `gorm:"type:uuid;not null" bson:"content_id"`
	ShlID     string    `gorm:"type:uuid;not null;index" bson:"shl_id"`
	ExpiresAt time.Time `gorm:"not null;index" bson:"expires_at"`
	Consumed  bool      `gorm:"not null;default:false" bson:"consumed"`
}
