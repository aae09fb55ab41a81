package model

import "time"

// AccessAction — тип события в журнале доступа.
type AccessAction string

const (
	ActionManifestRequest AccessAction = "MANIFEST_REQUEST"
	ActionPasscodeFailure AccessAction = "PASSCODE_FAILURE"
	ActionDirectAccess    AccessAction = "DIRECT_ACCESS"
	ActionFileDownload    AccessAction = "FILE_DOWNLOAD"
)

// AccessLog — запись журнала доступа. Только добавляется, никогда не изменяется.
type AccessLog struct {
	ID    string `gorm:"primaryKey;type:uuid" bson:"_id" json:"id"`
	ShlID string `gorm:"type:uuid;not null;index:idx_access_logs_shl_created" bson:"shl_id" json:"-"`

	Action    AccessAction `gorm:"type:varchar(32);not null" bson:"action" json:"action"`
	Recipient string       `bson:"recipient,omitempty" json:"recipient,omitempty"`
	IPAddress string       `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent string       `bson:"user_agent,omitempty" json:"user_agent,omitempty"`

	Success       bool   `gorm:"not null;index" bson:"success" json:"success"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_access_logs_shl_created" bson:"created_at" json:"created_at"`
}
