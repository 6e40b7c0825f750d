package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction 审计动作
type AuditAction string

const (
	AuditActionBind   AuditAction = "BIND"
	AuditActionUnbind AuditAction = "UNBIND"
)

// AuditLog 绑定审计日志，只追加
type AuditLog struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Action      AuditAction `gorm:"size:20;not null;index" json:"action"`
	UserID      string      `gorm:"size:36;not null;index" json:"userId"`
	FigurineID  string      `gorm:"size:36;not null;index" json:"figurineId"`
	CharacterID *string     `gorm:"size:36" json:"characterId"`
	Metadata    JSONMap     `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt   time.Time   `gorm:"index" json:"createdAt"`
}

// TableName 表名
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate 创建前生成主键
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// BeforeUpdate 审计日志不允许修改
func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrInvalidData
}
