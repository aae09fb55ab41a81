package model

import "time"

// Content — зашифрованное содержимое, привязанное к Link. Неизменяемо после сохранения.
type Content struct {
	ID    string `gorm:"primaryKey;type:uuid" bson:"_id" json:"id"`
	ShlID string `gorm:"type:uuid;not null;index" bson:"shl_id" json:"shl_id"`

	// ContentType — тип, который объявляется в манифесте.
	ContentType string `gorm:"not null" bson:"content_type" json:"content_type"`
	BlobRef     string `gorm:"not null" bson:"blob_ref" json:"-"`

	OriginalFileName    string `bson:"original_file_name,omitempty" json:"original_file_name,omitempty"`
	OriginalContentType string `bson:"original_content_type,omitempty" json:"original_content_type,omitempty"`

	// ContentLength — размер зашифрованного конверта в байтах.
	ContentLength int64 `gorm:"not null" bson:"content_length" json:"content_length"`

	CreatedAt time.Time `gorm:"autoCreateTime" bson:"created_at" json:"created_at"`
}
