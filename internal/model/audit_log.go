package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 审计日志 — 对应 audit_logs（只追加）
type AuditLog struct {
	AuditLogID string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"audit_log_id"`
	OccurredAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"occurred_at"`
	UserID     string         `gorm:"type:varchar(64);not null"                      json:"user_id"`
	Action     string         `gorm:"type:varchar(50);not null"                      json:"action"`
	EntityType string         `gorm:"type:varchar(50);not null"                      json:"entity_type"`
	EntityID   string         `gorm:"type:varchar(64);not null"                      json:"entity_id"`
	Details    datatypes.JSON `gorm:"type:jsonb"                                     json:"details,omitempty"`
}

func (AuditLog) TableName() string { return "audit_logs" }
