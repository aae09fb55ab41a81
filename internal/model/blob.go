package model

import "time"

// Blob — зашифрованный конверт, хранимый в БД (драйвер хранилища "db").
type Blob struct {
	Key         string `gorm:"primaryKey;size:255" bson:"_id"`
	ContentType string `bson:"content_type"`
	Data        []byte `gorm:"not null" bson:"data"`

	CreatedAt time.Time `gorm:"autoCreateTime" bson:"created_at"`
}
